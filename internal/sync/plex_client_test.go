// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/plexdigest/internal/config"
)

func newPlexTestClient(t *testing.T, handler http.HandlerFunc) *PlexClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Plex.URL = srv.URL
	cfg.Plex.Token = "plex-token"
	cfg.Plex.Timeout = 5 * time.Second
	cfg.Plex.RequestsPerSecond = 100
	return NewPlexClient(cfg)
}

const identityXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="0" machineIdentifier="abc123def" friendlyName="Living Room" version="1.40.0"/>`

func TestIdentityParseAndCache(t *testing.T) {
	calls := 0
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("X-Plex-Token"); got != "plex-token" {
			t.Errorf("token = %q", got)
		}
		calls++
		_, _ = w.Write([]byte(identityXML))
	})

	id, err := client.Identity(context.Background())
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.MachineIdentifier != "abc123def" {
		t.Errorf("machine id = %q", id.MachineIdentifier)
	}
	if id.FriendlyName != "Living Room" {
		t.Errorf("friendly name = %q", id.FriendlyName)
	}
	if id.FetchedAt.IsZero() {
		t.Error("FetchedAt should be stamped")
	}

	// Second call hits the cache.
	if _, err := client.MachineIdentifier(context.Background()); err != nil {
		t.Fatalf("MachineIdentifier: %v", err)
	}
	if calls != 1 {
		t.Errorf("identity fetched %d times, want 1", calls)
	}

	// Explicit refresh bypasses the cache.
	if _, err := client.RefreshIdentity(context.Background()); err != nil {
		t.Fatalf("RefreshIdentity: %v", err)
	}
	if calls != 2 {
		t.Errorf("identity fetched %d times after refresh, want 2", calls)
	}
}

func TestIdentityUnparseable(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer size="0"/>`))
	})
	if _, err := client.Identity(context.Background()); err == nil {
		t.Error("expected parse error for missing machineIdentifier")
	}
}

func TestItemLookup(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/metadata/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"42","title":"Blade Runner","year":1982,"summary":"A blade runner must pursue replicants.","thumb":"/library/metadata/42/thumb"}]}}`))
	})

	item, err := client.Item(context.Background(), "42")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if item.Title != "Blade Runner" || item.Year != 1982 {
		t.Errorf("item = %+v", item)
	}
}

func TestItemNotFound(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
	})
	if _, err := client.Item(context.Background(), "999"); err == nil {
		t.Error("expected error for empty metadata")
	}
}

func TestLibraryTotals(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/library/sections":
			_, _ = w.Write([]byte(`{"MediaContainer":{"Directory":[{"key":"1","type":"movie"},{"key":"2","type":"show"},{"key":"3","type":"photo"}]}}`))
		case r.URL.Path == "/library/sections/1/all":
			_, _ = w.Write([]byte(`{"MediaContainer":{"totalSize":321,"size":0}}`))
		case r.URL.Path == "/library/sections/2/all" && r.URL.Query().Get("type") == "2":
			// No totalSize, falls back to size
			_, _ = w.Write([]byte(`{"MediaContainer":{"size":45}}`))
		case r.URL.Path == "/library/sections/2/all" && r.URL.Query().Get("type") == "4":
			_, _ = w.Write([]byte(`{"MediaContainer":{"totalSize":1234}}`))
		default:
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	totals, err := client.LibraryTotals(context.Background())
	if err != nil {
		t.Fatalf("LibraryTotals: %v", err)
	}
	if totals.Movies != 321 || totals.Shows != 45 || totals.Episodes != 1234 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestImageProxyFetch(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/metadata/42/thumb" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	body, contentType, err := client.Image(context.Background(), "/library/metadata/42/thumb", "")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	defer body.Close()
	if contentType != "image/png" {
		t.Errorf("content type = %q", contentType)
	}
}

func TestImageRequiresPathOrURL(t *testing.T) {
	client := newPlexTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, _, err := client.Image(context.Background(), "", ""); err == nil {
		t.Error("expected error for missing path and url")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewPlexClient(&config.Config{})
	if client.Configured() {
		t.Error("empty client should not report configured")
	}
	if _, err := client.Identity(context.Background()); err == nil {
		t.Error("expected configuration error")
	}
}
