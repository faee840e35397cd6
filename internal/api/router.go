// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/newsletter"
	"github.com/tomtom215/plexdigest/internal/store"
	mediasync "github.com/tomtom215/plexdigest/internal/sync"
)

// PlexAPI is the slice of the Plex client the handlers use.
type PlexAPI interface {
	Configured() bool
	Ping(ctx context.Context) error
	Identity(ctx context.Context) (*mediasync.ServerIdentity, error)
	RefreshIdentity(ctx context.Context) (*mediasync.ServerIdentity, error)
	Image(ctx context.Context, path, raw string) (io.ReadCloser, string, error)
}

// TautulliAPI is the slice of the Tautulli client the handlers use.
type TautulliAPI interface {
	Ping(ctx context.Context) error
}

// Sender dispatches a newsletter on demand.
type Sender interface {
	Send(ctx context.Context, nl *models.Newsletter, opts newsletter.SendOptions) (*models.DispatchResult, error)
}

// Previewer renders template HTML for the preview endpoint.
type Previewer interface {
	Render(ctx context.Context, templateHTML string, lookbackDays int) string
}

// SMTPVerifier performs the transport handshake for the smtp probe.
type SMTPVerifier interface {
	Verify(ctx context.Context, cfg config.SMTPConfig) error
}

// Handler carries the dependencies of every endpoint.
type Handler struct {
	cfg       newsletter.ConfigProvider
	store     *store.Store
	sender    Sender
	previewer Previewer
	plex      PlexAPI
	tautulli  TautulliAPI
	smtp      SMTPVerifier

	version   string
	startedAt time.Time
}

// NewHandler wires the API handler.
func NewHandler(cfg newsletter.ConfigProvider, st *store.Store, sender Sender, previewer Previewer, plex PlexAPI, tautulli TautulliAPI, smtp SMTPVerifier, version string) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     st,
		sender:    sender,
		previewer: previewer,
		plex:      plex,
		tautulli:  tautulli,
		smtp:      smtp,
		version:   version,
		startedAt: time.Now(),
	}
}

// Routes assembles the HTTP handler tree.
func (h *Handler) Routes() http.Handler {
	cfg := h.cfg.Config()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Healthz)

	rateLimit := cfg.Server.RateLimit
	if rateLimit <= 0 {
		rateLimit = 300
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
		r.Use(prometheusMetrics)

		r.Get("/status", h.Status)

		// Both verbs replace the whole list; POST kept for older clients.
		r.Get("/recipients", h.GetRecipients)
		r.Put("/recipients", h.PutRecipients)
		r.Post("/recipients", h.PutRecipients)

		r.Get("/owner-recommendation", h.GetOwnerRecommendation)
		r.Put("/owner-recommendation", h.PutOwnerRecommendation)
		r.Post("/owner-recommendation", h.PutOwnerRecommendation)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Post("/preview", h.PreviewTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/newsletters", func(r chi.Router) {
			r.Get("/", h.ListNewsletters)
			r.Post("/", h.CreateNewsletter)
			r.Get("/{id}", h.GetNewsletter)
			r.Put("/{id}", h.UpdateNewsletter)
			r.Delete("/{id}", h.DeleteNewsletter)
			r.Post("/{id}/send-now", h.SendNow)
		})

		r.Get("/schedule", h.Schedule)

		r.Post("/test/plex", h.TestPlex)
		r.Post("/test/tautulli", h.TestTautulli)
		r.Post("/test/smtp", h.TestSMTP)

		r.Get("/plex/image", h.PlexImage)
		r.Get("/plex/server-id", h.PlexServerID)
	})

	return r
}

// NewHTTPServer wraps the routes in a configured http.Server.
func NewHTTPServer(cfg *config.Config, routes http.Handler) *http.Server {
	readTimeout := cfg.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}
