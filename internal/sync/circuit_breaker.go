// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/metrics"
	"github.com/tomtom215/plexdigest/internal/models/tautulli"
)

// CircuitBreakerClient wraps TautulliClient with a circuit breaker so a slow
// or down Tautulli cannot stall every render.
//
// The breaker uses real time for its interval and timeout windows. Tests
// exercise the wrapped client directly rather than mocking the breaker.
type CircuitBreakerClient struct {
	client *TautulliClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient creates a Tautulli client with circuit breaker:
// max 3 requests in half-open state, 1 minute measurement window, 2 minute
// open period, trips at a 60% failure rate over at least 10 requests.
func NewCircuitBreakerClient(cfg *config.Config) *CircuitBreakerClient {
	client := NewTautulliClient(cfg)
	cbName := "tautulli-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening Tautulli circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Tautulli circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps one API call with circuit breaker accounting.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("Tautulli request rejected by circuit breaker")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// Ping checks connectivity through the breaker.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// GetHomeStats fetches home statistics through the breaker.
func (cbc *CircuitBreakerClient) GetHomeStats(ctx context.Context, timeRange int) (*tautulli.HomeStats, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetHomeStats(ctx, timeRange)
	})
	if err != nil {
		return nil, err
	}
	return result.(*tautulli.HomeStats), nil
}

// GetPlaysByDate fetches the per-day series through the breaker.
func (cbc *CircuitBreakerClient) GetPlaysByDate(ctx context.Context, timeRange int, yAxis string) (*tautulli.PlaysByDate, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetPlaysByDate(ctx, timeRange, yAxis)
	})
	if err != nil {
		return nil, err
	}
	return result.(*tautulli.PlaysByDate), nil
}

// GetRecentlyAdded fetches the recently-added feed through the breaker.
func (cbc *CircuitBreakerClient) GetRecentlyAdded(ctx context.Context, timeRange, count int) (*tautulli.RecentlyAdded, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetRecentlyAdded(ctx, timeRange, count)
	})
	if err != nil {
		return nil, err
	}
	return result.(*tautulli.RecentlyAdded), nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
