// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package main is the entry point for the Plexdigest server.
//
// Plexdigest is a self-hosted newsletter service for Plex households. It
// pulls watch statistics from Tautulli and library metadata from Plex,
// renders operator-composed HTML digests, and emails them to a recipient
// list on cron or frequency-based schedules.
//
// The server initializes in order: configuration (koanf, YAML file plus
// PLEXDIGEST_ environment variables), structured logging (zerolog), the
// BadgerDB document store, the upstream clients (Tautulli behind a circuit
// breaker, Plex behind a rate limiter), the render and dispatch pipeline,
// and finally a suture supervisor tree running the scheduler loop and the
// HTTP API as isolated services.
//
// Graceful shutdown on SIGINT and SIGTERM drains in-flight requests, stops
// the scheduler, and closes the store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/plexdigest/internal/api"
	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/newsletter"
	"github.com/tomtom215/plexdigest/internal/newsletter/delivery"
	"github.com/tomtom215/plexdigest/internal/newsletter/scheduler"
	"github.com/tomtom215/plexdigest/internal/store"
	"github.com/tomtom215/plexdigest/internal/supervisor"
	"github.com/tomtom215/plexdigest/internal/sync"
)

// version is stamped by the build via -ldflags "-X main.version=...".
var version = "dev"

// staticConfigProvider hands the loaded configuration to components that
// take a ConfigProvider.
type staticConfigProvider struct {
	cfg *config.Config
}

func (p *staticConfigProvider) Config() *config.Config { return p.cfg }

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_dir", cfg.Data.Dir).
		Int("port", cfg.Server.Port).
		Bool("scheduler", cfg.Newsletter.SchedulerEnabled).
		Msg("starting plexdigest")

	st, err := store.Open(cfg.Data.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	provider := &staticConfigProvider{cfg: cfg}

	tautulliClient := sync.NewCircuitBreakerClient(cfg)
	if cfg.Tautulli.URL != "" {
		if err := tautulliClient.Ping(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("tautulli unreachable at startup, will retry on use")
		} else {
			logging.Info().Msg("connected to tautulli")
		}
	}

	plexClient := sync.NewPlexClient(cfg)
	if plexClient.Configured() {
		if id, err := plexClient.Identity(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("plex unreachable at startup, will retry on use")
		} else {
			logging.Info().
				Str("machine_id", id.MachineIdentifier).
				Str("server", id.FriendlyName).
				Msg("connected to plex")
		}
	}

	renderer := newsletter.NewRenderer(
		tautulliClient,
		plexClient,
		st,
		cfg.Server.PublicBaseURL,
		cfg.Newsletter.BlockedSeries,
	)
	transport := delivery.NewSMTPTransport()
	dispatcher := newsletter.NewDispatcher(provider, st, renderer, transport)

	handler := api.NewHandler(provider, st, dispatcher, renderer, plexClient, tautulliClient, transport, version)
	httpServer := api.NewHTTPServer(cfg, handler.Routes())

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(httpServer))

	if cfg.Newsletter.SchedulerEnabled {
		loop := scheduler.New(st, dispatcher, cfg.Newsletter.TickInterval, cfg.Newsletter.SuppressionWindow)
		tree.AddJobService(loop)
	} else {
		logging.Info().Msg("scheduler disabled, newsletters send on demand only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited")
	}
	logging.Info().Msg("plexdigest stopped")
}
