// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/metrics"
)

var (
	machineIDPattern    = regexp.MustCompile(`machineIdentifier="([^"]+)"`)
	friendlyNamePattern = regexp.MustCompile(`friendlyName="([^"]+)"`)
)

// ServerIdentity is the cached machine identifier with its fetch timestamp.
// The explicit holder lets callers observe staleness and force a refresh,
// instead of a populate-once process global.
type ServerIdentity struct {
	MachineIdentifier string    `json:"machineIdentifier"`
	FriendlyName      string    `json:"friendlyName,omitempty"`
	FetchedAt         time.Time `json:"fetchedAt"`
}

// PlexItem is one metadata entry from a library lookup.
type PlexItem struct {
	RatingKey        string `json:"ratingKey,omitempty"`
	Title            string `json:"title,omitempty"`
	GrandparentTitle string `json:"grandparentTitle,omitempty"`
	ParentTitle      string `json:"parentTitle,omitempty"`
	Type             string `json:"type,omitempty"`
	Year             int    `json:"year,omitempty"`
	Summary          string `json:"summary,omitempty"`
	Tagline          string `json:"tagline,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
	GrandparentThumb string `json:"grandparentThumb,omitempty"`
	ParentThumb      string `json:"parentThumb,omitempty"`
	Art              string `json:"art,omitempty"`
}

// LibraryTotals holds whole-library item counts by section type.
type LibraryTotals struct {
	Movies   int `json:"movies"`
	Shows    int `json:"shows"`
	Episodes int `json:"episodes"`
}

// plexMediaContainer is the generic JSON envelope Plex wraps responses in.
type plexMediaContainer struct {
	MediaContainer struct {
		Size      *int       `json:"size,omitempty"`
		TotalSize *int       `json:"totalSize,omitempty"`
		Metadata  []PlexItem `json:"Metadata,omitempty"`
		Directory []struct {
			Key  string `json:"key"`
			Type string `json:"type"`
		} `json:"Directory,omitempty"`
	} `json:"MediaContainer"`
}

// PlexClient is the HTTP client for the Plex Media Server, with per-request
// rate limiting and a machine-identifier cache.
type PlexClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter

	mu       sync.RWMutex
	identity *ServerIdentity
}

// NewPlexClient creates a Plex client from configuration.
func NewPlexClient(cfg *config.Config) *PlexClient {
	timeout := cfg.Plex.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	rps := cfg.Plex.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &PlexClient{
		baseURL: cfg.TrimmedPlexURL(),
		token:   cfg.Plex.Token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// Configured reports whether URL and token are both set.
func (c *PlexClient) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// buildURL constructs a token-carrying URL for a server-relative path.
func (c *PlexClient) buildURL(rel string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("X-Plex-Token", c.token)
	return c.baseURL + rel + "?" + params.Encode()
}

// doGet performs a rate-limited GET.
func (c *PlexClient) doGet(ctx context.Context, reqURL string, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("plex").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("plex", "failure").Inc()
		return nil, fmt.Errorf("plex request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestsTotal.WithLabelValues("plex", "failure").Inc()
		body := readBodyForError(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("plex request failed with status %d: %s", resp.StatusCode, string(body))
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("plex", "success").Inc()
	return resp, nil
}

// Ping verifies connectivity by fetching /identity.
func (c *PlexClient) Ping(ctx context.Context) error {
	_, err := c.RefreshIdentity(ctx)
	return err
}

// Identity returns the cached server identity, fetching it on first use.
func (c *PlexClient) Identity(ctx context.Context) (*ServerIdentity, error) {
	c.mu.RLock()
	cached := c.identity
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return c.RefreshIdentity(ctx)
}

// MachineIdentifier returns the cached machine identifier, fetching it on
// first use.
func (c *PlexClient) MachineIdentifier(ctx context.Context) (string, error) {
	id, err := c.Identity(ctx)
	if err != nil {
		return "", err
	}
	return id.MachineIdentifier, nil
}

// RefreshIdentity fetches /identity and replaces the cache. The identity
// endpoint answers XML regardless of Accept, so the machine identifier is
// parsed with a pattern match, matching upstream behavior.
func (c *PlexClient) RefreshIdentity(ctx context.Context) (*ServerIdentity, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("plex is not configured")
	}

	resp, err := c.doGet(ctx, c.buildURL("/identity", nil), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, fmt.Errorf("read identity response: %w", err)
	}

	m := machineIDPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("unable to parse machineIdentifier from identity response")
	}

	identity := &ServerIdentity{
		MachineIdentifier: string(m[1]),
		FetchedAt:         time.Now(),
	}
	if fn := friendlyNamePattern.FindSubmatch(body); fn != nil {
		identity.FriendlyName = string(fn[1])
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
	return identity, nil
}

// Item looks up one metadata item by rating key.
func (c *PlexClient) Item(ctx context.Context, ratingKey string) (*PlexItem, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("plex is not configured")
	}
	if ratingKey == "" {
		return nil, fmt.Errorf("rating key must not be empty")
	}

	reqURL := c.buildURL("/library/metadata/"+url.PathEscape(ratingKey), nil)
	resp, err := c.doGet(ctx, reqURL, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var container plexMediaContainer
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("item %s not found", ratingKey)
	}
	return &container.MediaContainer.Metadata[0], nil
}

// LibraryTotals counts movies, shows, and episodes across all library
// sections. Section listings with container size zero return only the
// totalSize header field, keeping the calls cheap.
func (c *PlexClient) LibraryTotals(ctx context.Context) (*LibraryTotals, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("plex is not configured")
	}

	resp, err := c.doGet(ctx, c.buildURL("/library/sections", nil), "application/json")
	if err != nil {
		return nil, err
	}
	var sections plexMediaContainer
	decodeErr := json.NewDecoder(resp.Body).Decode(&sections)
	_ = resp.Body.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("decode sections response: %w", decodeErr)
	}

	totals := &LibraryTotals{}
	for _, dir := range sections.MediaContainer.Directory {
		switch dir.Type {
		case "movie":
			totals.Movies += c.sectionCount(ctx, dir.Key, 1)
		case "show":
			totals.Shows += c.sectionCount(ctx, dir.Key, 2)
			totals.Episodes += c.sectionCount(ctx, dir.Key, 4)
		}
	}
	return totals, nil
}

// sectionCount returns the item count of one section for a Plex item type
// (1=movie, 2=show, 4=episode). Failures count as zero so a single bad
// section never sinks the totals card.
func (c *PlexClient) sectionCount(ctx context.Context, sectionKey string, itemType int) int {
	params := url.Values{}
	params.Set("type", strconv.Itoa(itemType))
	params.Set("X-Plex-Container-Start", "0")
	params.Set("X-Plex-Container-Size", "0")

	reqURL := c.buildURL("/library/sections/"+url.PathEscape(sectionKey)+"/all", params)
	resp, err := c.doGet(ctx, reqURL, "application/json")
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	var container plexMediaContainer
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return 0
	}
	if container.MediaContainer.TotalSize != nil {
		return *container.MediaContainer.TotalSize
	}
	if container.MediaContainer.Size != nil {
		return *container.MediaContainer.Size
	}
	return 0
}

// Image fetches artwork for the image proxy. Exactly one of path (a
// server-relative path) or raw (an absolute URL) should be set. The caller
// must close the returned body.
func (c *PlexClient) Image(ctx context.Context, path, raw string) (io.ReadCloser, string, error) {
	var reqURL string
	switch {
	case path != "":
		if !c.Configured() {
			return nil, "", fmt.Errorf("plex is not configured")
		}
		reqURL = c.buildURL(path, nil)
	case raw != "":
		reqURL = raw
	default:
		return nil, "", fmt.Errorf("missing image path or url")
	}

	resp, err := c.doGet(ctx, reqURL, "")
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return resp.Body, contentType, nil
}
