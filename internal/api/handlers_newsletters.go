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
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/newsletter"
	"github.com/tomtom215/plexdigest/internal/store"
	"github.com/tomtom215/plexdigest/internal/validation"
)

// ListNewsletters returns every newsletter sorted by name.
func (h *Handler) ListNewsletters(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Newsletters()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletters", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

// CreateNewsletter stores a new newsletter, assigning an ID when the request
// carries none.
func (h *Handler) CreateNewsletter(w http.ResponseWriter, r *http.Request) {
	var nl models.Newsletter
	if err := decodeJSON(w, r, &nl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid newsletter body", err)
		return
	}
	nl.Name = strings.TrimSpace(nl.Name)
	if err := validation.Struct(&nl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	if nl.ID == "" {
		nl.ID = uuid.NewString()
	}
	nl.LastSentAt = time.Time{}

	if err := h.store.SaveNewsletter(&nl); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save newsletter", err)
		return
	}
	respondData(w, http.StatusCreated, nl)
}

// GetNewsletter returns one newsletter by ID.
func (h *Handler) GetNewsletter(w http.ResponseWriter, r *http.Request) {
	nl, err := h.store.GetNewsletter(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "newsletter not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletter", err)
		return
	}
	respondData(w, http.StatusOK, nl)
}

// UpdateNewsletter replaces an existing newsletter. LastSentAt is owned by
// the scheduler and survives edits.
func (h *Handler) UpdateNewsletter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.store.GetNewsletter(id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "newsletter not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletter", err)
		return
	}

	var nl models.Newsletter
	if err := decodeJSON(w, r, &nl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid newsletter body", err)
		return
	}
	nl.Name = strings.TrimSpace(nl.Name)
	if err := validation.Struct(&nl); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	nl.ID = id
	nl.LastSentAt = existing.LastSentAt

	if err := h.store.SaveNewsletter(&nl); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to save newsletter", err)
		return
	}
	respondData(w, http.StatusOK, nl)
}

// DeleteNewsletter removes a newsletter by ID.
func (h *Handler) DeleteNewsletter(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteNewsletter(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to delete newsletter", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"deleted": true})
}

// addressList accepts either a JSON array of addresses or one
// comma-separated string.
type addressList []string

func (a *addressList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = store.SplitAddressList(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

// sendNowRequest is the body of the on-demand dispatch endpoint. Empty To
// and Bcc fall back to the newsletter's recipients, then the global list.
type sendNowRequest struct {
	To      addressList `json:"to,omitempty"`
	Bcc     addressList `json:"bcc,omitempty"`
	Subject string      `json:"subject,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Text    string      `json:"text,omitempty"`
	Raw     bool        `json:"raw,omitempty"`
	DryRun  bool        `json:"dryRun,omitempty"`
}

// SendNow dispatches one newsletter immediately.
func (h *Handler) SendNow(w http.ResponseWriter, r *http.Request) {
	nl, err := h.store.GetNewsletter(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, codeNotFound, "newsletter not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletter", err)
		return
	}

	var req sendNowRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, codeBadRequest, "invalid send request", err)
			return
		}
	}

	res, err := h.sender.Send(r.Context(), nl, newsletter.SendOptions{
		To:      []string(req.To),
		Bcc:     []string(req.Bcc),
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
		Raw:     req.Raw,
		DryRun:  req.DryRun,
		Manual:  true,
	})
	switch {
	case errors.Is(err, newsletter.ErrSMTPNotConfigured):
		respondError(w, http.StatusPreconditionFailed, codeNotConfigured, "smtp is not configured", err)
		return
	case errors.Is(err, newsletter.ErrNoRecipients):
		respondError(w, http.StatusBadRequest, codeBadRequest, "no recipients resolved", err)
		return
	case errors.Is(err, newsletter.ErrVerificationFailed):
		respondError(w, http.StatusBadGateway, codeUpstream, "smtp verification failed", err)
		return
	case err != nil:
		respondError(w, http.StatusBadGateway, codeUpstream, "send failed", err)
		return
	}

	if !res.DryRun {
		nl.LastSentAt = time.Now()
		if err := h.store.SaveNewsletter(nl); err != nil {
			logging.Error().Err(err).Str("newsletter_id", nl.ID).Msg("failed to stamp last sent time")
		}
	}
	respondData(w, http.StatusOK, res)
}

// Schedule lists every scheduled newsletter as a job snapshot.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	newsletters, err := h.store.Newsletters()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletters", err)
		return
	}

	jobs := make([]models.ScheduledJob, 0, len(newsletters))
	for i := range newsletters {
		nl := &newsletters[i]
		if !nl.Enabled || nl.Schedule == nil {
			continue
		}
		jobs = append(jobs, models.ScheduledJob{
			ID:         nl.ID,
			Name:       nl.Name,
			Frequency:  describeSchedule(nl.Schedule),
			LastSentAt: nl.LastSentAt,
			Recipients: len(nl.Recipients),
			TemplateID: nl.TemplateID,
		})
	}
	respondData(w, http.StatusOK, jobs)
}

func describeSchedule(s *models.Schedule) string {
	if s.UsesCron() {
		return "cron: " + strings.TrimSpace(s.Cron)
	}
	if s.Frequency == "" {
		return "none"
	}
	return s.Frequency
}
