// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingService struct {
	started atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	c.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	tree := NewTree(quietLogger(), DefaultTreeConfig())

	job := &countingService{}
	apiSvc := &countingService{}
	tree.AddJobService(job)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for job.started.Load() == 0 || apiSvc.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("services did not start: job=%d api=%d", job.started.Load(), apiSvc.started.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.FailureBackoff != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
