// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package api

import (
	"io"
	"net/http"
	"time"
)

// statusResponse is the service status payload.
type statusResponse struct {
	Version            string `json:"version"`
	UptimeSeconds      int64  `json:"uptimeSeconds"`
	PlexConfigured     bool   `json:"plexConfigured"`
	TautulliConfigured bool   `json:"tautulliConfigured"`
	SMTPConfigured     bool   `json:"smtpConfigured"`
	SchedulerEnabled   bool   `json:"schedulerEnabled"`
	Newsletters        int    `json:"newsletters"`
	Templates          int    `json:"templates"`
}

// Healthz is the unauthenticated liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Status reports configuration state and object counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Config()

	newsletters, err := h.store.Newsletters()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load newsletters", err)
		return
	}
	templates, err := h.store.Templates()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load templates", err)
		return
	}

	respondData(w, http.StatusOK, statusResponse{
		Version:            h.version,
		UptimeSeconds:      int64(time.Since(h.startedAt).Seconds()),
		PlexConfigured:     cfg.Plex.URL != "" && cfg.Plex.Token != "",
		TautulliConfigured: cfg.Tautulli.URL != "" && cfg.Tautulli.APIKey != "",
		SMTPConfigured:     cfg.SMTP.Configured(),
		SchedulerEnabled:   cfg.Newsletter.SchedulerEnabled,
		Newsletters:        len(newsletters),
		Templates:          len(templates),
	})
}

// TestPlex probes Plex connectivity with the current configuration.
func (h *Handler) TestPlex(w http.ResponseWriter, r *http.Request) {
	if !h.plex.Configured() {
		respondError(w, http.StatusPreconditionFailed, codeNotConfigured, "plex url and token are not configured", nil)
		return
	}
	if err := h.plex.Ping(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, codeUpstream, "plex is unreachable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"reachable": true})
}

// TestTautulli probes Tautulli connectivity with the current configuration.
func (h *Handler) TestTautulli(w http.ResponseWriter, r *http.Request) {
	if err := h.tautulli.Ping(r.Context()); err != nil {
		respondError(w, http.StatusBadGateway, codeUpstream, "tautulli is unreachable", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"reachable": true})
}

// TestSMTP performs a full SMTP handshake without sending mail.
func (h *Handler) TestSMTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Config()
	if !cfg.SMTP.Configured() {
		respondError(w, http.StatusPreconditionFailed, codeNotConfigured, "smtp host, port, and from_address are not configured", nil)
		return
	}
	if err := h.smtp.Verify(r.Context(), cfg.SMTP); err != nil {
		respondError(w, http.StatusBadGateway, codeUpstream, "smtp verification failed", err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"verified": true})
}

// PlexImage proxies artwork so mail clients never talk to the media server.
// A relative path rides on ?path=, an absolute URL on ?u=.
func (h *Handler) PlexImage(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	raw := r.URL.Query().Get("u")
	if path == "" && raw == "" {
		respondError(w, http.StatusBadRequest, codeBadRequest, "path or u query parameter is required", nil)
		return
	}

	body, contentType, err := h.plex.Image(r.Context(), path, raw)
	if err != nil {
		respondError(w, http.StatusBadGateway, codeUpstream, "image fetch failed", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// PlexServerID returns the cached server identity; ?refresh=true forces a
// new fetch.
func (h *Handler) PlexServerID(w http.ResponseWriter, r *http.Request) {
	if !h.plex.Configured() {
		respondError(w, http.StatusPreconditionFailed, codeNotConfigured, "plex url and token are not configured", nil)
		return
	}

	fetch := h.plex.Identity
	if r.URL.Query().Get("refresh") == "true" {
		fetch = h.plex.RefreshIdentity
	}
	identity, err := fetch(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, codeUpstream, "identity fetch failed", err)
		return
	}
	respondData(w, http.StatusOK, identity)
}
