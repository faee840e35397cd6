// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package sync provides the upstream data source adapters: the Tautulli
// statistics client (with circuit breaker protection) and the Plex Media
// Server client (with rate limiting and a machine-identifier cache).
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/metrics"
	"github.com/tomtom215/plexdigest/internal/models/tautulli"
)

// maxErrorBodySize limits how much of an error response body is read back
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// readBodyForError reads up to maxErrorBodySize of the body for error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// TautulliClientInterface defines the Tautulli operations the digest pipeline
// needs. Implemented by TautulliClient for production and by mocks in tests.
//
// All methods accept a context for cancellation and return typed response
// structs from internal/models/tautulli.
type TautulliClientInterface interface {
	// Ping checks connectivity using get_activity.
	Ping(ctx context.Context) error

	// GetHomeStats fetches the home statistics aggregate for the window.
	GetHomeStats(ctx context.Context, timeRange int) (*tautulli.HomeStats, error)

	// GetPlaysByDate fetches the per-day series. yAxis is "plays" or "duration".
	GetPlaysByDate(ctx context.Context, timeRange int, yAxis string) (*tautulli.PlaysByDate, error)

	// GetRecentlyAdded fetches the recently-added feed.
	GetRecentlyAdded(ctx context.Context, timeRange, count int) (*tautulli.RecentlyAdded, error)
}

// TautulliClient is the HTTP client for Tautulli's /api/v2 endpoint.
type TautulliClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewTautulliClient creates a Tautulli API client from configuration.
func NewTautulliClient(cfg *config.Config) *TautulliClient {
	timeout := cfg.Tautulli.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &TautulliClient{
		baseURL: cfg.TrimmedTautulliURL(),
		apiKey:  cfg.Tautulli.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// Ping checks connectivity via get_activity.
func (c *TautulliClient) Ping(ctx context.Context) error {
	var result tautulli.Activity
	return c.makeRequest(ctx, "get_activity", nil, &result)
}

// GetHomeStats fetches the home statistics aggregate.
// Matches the upstream call shape: stats_type=0 (plays), stats_count=25,
// grouping=0.
func (c *TautulliClient) GetHomeStats(ctx context.Context, timeRange int) (*tautulli.HomeStats, error) {
	params := url.Values{}
	params.Set("time_range", strconv.Itoa(timeRange))
	params.Set("stats_type", "0")
	params.Set("stats_count", "25")
	params.Set("grouping", "0")

	var result tautulli.HomeStats
	if err := c.makeRequest(ctx, "get_home_stats", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPlaysByDate fetches the per-day plays or duration series.
func (c *TautulliClient) GetPlaysByDate(ctx context.Context, timeRange int, yAxis string) (*tautulli.PlaysByDate, error) {
	params := url.Values{}
	params.Set("time_range", strconv.Itoa(timeRange))
	params.Set("y_axis", yAxis)

	var result tautulli.PlaysByDate
	if err := c.makeRequest(ctx, "get_plays_by_date", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRecentlyAdded fetches the recently-added feed.
func (c *TautulliClient) GetRecentlyAdded(ctx context.Context, timeRange, count int) (*tautulli.RecentlyAdded, error) {
	params := url.Values{}
	params.Set("time_range", strconv.Itoa(timeRange))
	params.Set("count", strconv.Itoa(count))

	var result tautulli.RecentlyAdded
	if err := c.makeRequest(ctx, "get_recently_added", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doRequestWithRateLimit performs a GET with automatic HTTP 429 handling.
// Backoff doubles each attempt (1s, 2s, 4s, 8s, 16s) and honors Retry-After.
func (c *TautulliClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// makeRequest performs a Tautulli API call and decodes the response into result.
func (c *TautulliClient) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.UpstreamRequestDuration.WithLabelValues("tautulli").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("tautulli", "failure").Inc()
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("tautulli", "failure").Inc()
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", cmd, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("tautulli", "failure").Inc()
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}

	if err := validateTautulliResponse(result, cmd); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("tautulli", "failure").Inc()
		return err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("tautulli", "success").Inc()
	return nil
}

// validateTautulliResponse checks the common response.result wrapper field.
// Uses reflection since every Tautulli response type carries the same shape.
func validateTautulliResponse(result interface{}, cmd string) error {
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	responseField := v.FieldByName("Response")
	if !responseField.IsValid() {
		return nil
	}
	resultField := responseField.FieldByName("Result")
	if !resultField.IsValid() || resultField.Kind() != reflect.String {
		return nil
	}

	if resultField.String() != "success" {
		msg := "unknown error"
		if messageField := responseField.FieldByName("Message"); messageField.IsValid() && !messageField.IsNil() {
			if s, ok := messageField.Elem().Interface().(string); ok {
				msg = s
			}
		}
		return fmt.Errorf("%s API error: %s", cmd, msg)
	}
	return nil
}
