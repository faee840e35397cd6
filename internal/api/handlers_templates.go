// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/store"
	"github.com/tomtom215/plexdigest/internal/validation"
)

// ListTemplates returns every template sorted by name.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Templates()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load templates", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

// CreateTemplate stores a new template.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl models.Template
	if err := decodeJSON(w, r, &tpl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid template body", err)
		return
	}
	tpl.Name = strings.TrimSpace(tpl.Name)
	if err := validation.Struct(&tpl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.UpdatedAt = time.Now()

	if err := h.store.SaveTemplate(&tpl); err != nil {
		if strings.Contains(err.Error(), "already in use") {
			respondError(w, http.StatusConflict, codeConflict, err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save template", err)
		return
	}
	respondData(w, http.StatusCreated, tpl)
}

// GetTemplate returns one template by ID.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.store.GetTemplate(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "template not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load template", err)
		return
	}
	respondData(w, http.StatusOK, tpl)
}

// UpdateTemplate replaces an existing template.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetTemplate(id); errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "template not found", nil)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load template", err)
		return
	}

	var tpl models.Template
	if err := decodeJSON(w, r, &tpl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid template body", err)
		return
	}
	tpl.Name = strings.TrimSpace(tpl.Name)
	if err := validation.Struct(&tpl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	tpl.ID = id
	tpl.UpdatedAt = time.Now()

	if err := h.store.SaveTemplate(&tpl); err != nil {
		if strings.Contains(err.Error(), "already in use") {
			respondError(w, http.StatusConflict, codeConflict, err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save template", err)
		return
	}
	respondData(w, http.StatusOK, tpl)
}

// DeleteTemplate removes a template by ID.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTemplate(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to delete template", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"deleted": true})
}

// previewRequest is the body of the template preview endpoint.
type previewRequest struct {
	HTML         string `json:"html"`
	LookbackDays int    `json:"lookbackDays,omitempty"`
}

// PreviewTemplate renders arbitrary template HTML with live data, without
// persisting anything or touching the mail transport.
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid preview body", err)
		return
	}
	if req.HTML == "" {
		respondError(w, http.StatusBadRequest, codeBadRequest, "html is required", nil)
		return
	}

	days := req.LookbackDays
	if days < 1 || days > 90 {
		days = h.cfg.Config().Newsletter.LookbackDays
	}
	if days < 1 || days > 90 {
		days = 7
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"html":         h.previewer.Render(r.Context(), req.HTML, days),
		"lookbackDays": days,
	})
}
