// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package api

import (
	"net/http"

	"github.com/tomtom215/plexdigest/internal/models"
)

// GetRecipients returns the global recipient list.
func (h *Handler) GetRecipients(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Recipients()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load recipients", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

// PutRecipients replaces the global recipient list. Invalid addresses are
// dropped and duplicates collapsed; the saved list is echoed back.
func (h *Handler) PutRecipients(w http.ResponseWriter, r *http.Request) {
	var list []models.Recipient
	if err := decodeJSON(w, r, &list); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid recipient list", err)
		return
	}

	saved, err := h.store.SaveRecipients(list)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save recipients", err)
		return
	}
	respondData(w, http.StatusOK, saved)
}

// GetOwnerRecommendation returns the curated recommendation.
func (h *Handler) GetOwnerRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.OwnerRecommendation()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load recommendation", err)
		return
	}
	respondData(w, http.StatusOK, rec)
}

// PutOwnerRecommendation replaces the curated recommendation. An empty body
// object clears it.
func (h *Handler) PutOwnerRecommendation(w http.ResponseWriter, r *http.Request) {
	var rec models.OwnerRecommendation
	if err := decodeJSON(w, r, &rec); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid recommendation body", err)
		return
	}

	if err := h.store.SaveOwnerRecommendation(&rec); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save recommendation", err)
		return
	}
	respondData(w, http.StatusOK, rec)
}
