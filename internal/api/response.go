// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package api provides the HTTP surface: recipients, templates, newsletters,
// dispatch, schedule inspection, connectivity probes, and the image proxy.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/models"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Error codes used across handlers.
const (
	codeBadRequest    = "BAD_REQUEST"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeUpstream      = "UPSTREAM_ERROR"
	codeInternal      = "INTERNAL_ERROR"
	codeNotConfigured = "NOT_CONFIGURED"
)

// respondJSON writes the envelope with the given status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write response")
	}
}

// respondData writes a success envelope around data.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError writes an error envelope. The underlying error is logged,
// never echoed to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Str("code", code).Err(err).Msg("api error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Error:    &models.APIError{Code: code, Message: message},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// decodeJSON reads a bounded JSON body into out.
func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
