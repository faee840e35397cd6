// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/plexdigest/internal/logging"
)

// HTTPService adapts an http.Server to suture.Service with graceful
// shutdown on context cancellation.
type HTTPService struct {
	server *http.Server

	// ShutdownTimeout bounds the drain on stop.
	ShutdownTimeout time.Duration
}

// NewHTTPService wraps the server.
func NewHTTPService(server *http.Server) *HTTPService {
	return &HTTPService{server: server, ShutdownTimeout: 10 * time.Second}
}

// Serve runs the listener until the context is canceled, then drains.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http server shutdown incomplete")
		}
		<-errCh
		return ctx.Err()
	}
}
