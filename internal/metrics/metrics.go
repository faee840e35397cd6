// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package metrics exposes Prometheus instrumentation for the digest pipeline:
// newsletter sends, template renders, upstream API calls, scheduler ticks,
// and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Newsletter dispatch metrics
	NewsletterSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_sends_total",
			Help: "Total newsletter send attempts by outcome and content mode",
		},
		[]string{"result", "mode"}, // result: success|failure|verify_failed, mode: template|raw
	)

	// Render metrics
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_render_duration_seconds",
			Help:    "Duration of template token rendering in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CardRenderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_card_render_failures_total",
			Help: "Card resolutions degraded to a placeholder due to upstream failure",
		},
		[]string{"card"},
	)

	// Upstream client metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total requests to upstream services by outcome",
		},
		[]string{"service", "result"}, // service: tautulli|plex|smtp, result: success|failure
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Scheduler metrics
	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total scheduler loop ticks",
		},
	)

	SchedulerTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_skipped_total",
			Help: "Ticks skipped because the previous tick was still running",
		},
	)

	SchedulerNewslettersDue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_newsletters_due_total",
			Help: "Newsletters observed as due across all ticks",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // result: success|failure|rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests by method, path pattern, and status code",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
