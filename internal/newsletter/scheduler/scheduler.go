// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/metrics"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/newsletter"
)

// Sender dispatches one due newsletter.
type Sender interface {
	Send(ctx context.Context, nl *models.Newsletter, opts newsletter.SendOptions) (*models.DispatchResult, error)
}

// LoopStore is the slice of persistence the loop reads and stamps.
type LoopStore interface {
	Newsletters() ([]models.Newsletter, error)
	SaveNewsletter(nl *models.Newsletter) error
}

// Loop polls the stored newsletters and dispatches the due ones. It loads
// the list fresh on every tick, so schedule edits take effect without a
// restart. A single-flight guard drops ticks that arrive while a previous
// evaluation is still sending.
type Loop struct {
	store       LoopStore
	sender      Sender
	interval    time.Duration
	suppression time.Duration

	// clock is swapped in tests.
	clock func() time.Time

	inFlight atomic.Bool
}

// New creates a scheduler loop.
func New(store LoopStore, sender Sender, interval, suppression time.Duration) *Loop {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if suppression <= 0 {
		suppression = 2 * time.Minute
	}
	return &Loop{
		store:       store,
		sender:      sender,
		interval:    interval,
		suppression: suppression,
		clock:       time.Now,
	}
}

// Serve runs the tick loop until the context is canceled. It implements
// suture.Service.
func (l *Loop) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", l.interval).
		Dur("suppression", l.suppression).
		Msg("scheduler started")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick evaluates every enabled newsletter once. Overlapping ticks are
// skipped rather than queued.
func (l *Loop) tick(ctx context.Context) {
	if !l.inFlight.CompareAndSwap(false, true) {
		metrics.SchedulerTicksSkipped.Inc()
		logging.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer l.inFlight.Store(false)

	metrics.SchedulerTicksTotal.Inc()
	now := l.clock()

	newsletters, err := l.store.Newsletters()
	if err != nil {
		logging.Error().Err(err).Msg("scheduler failed to load newsletters")
		return
	}

	for i := range newsletters {
		nl := &newsletters[i]
		if !nl.Enabled || nl.Schedule == nil {
			continue
		}
		if !IsDue(nl.Schedule, now) {
			continue
		}
		if l.wasJustSent(nl, now) {
			logging.Debug().
				Str("newsletter_id", nl.ID).
				Time("last_sent_at", nl.LastSentAt).
				Msg("suppressing duplicate fire inside the window")
			continue
		}
		metrics.SchedulerNewslettersDue.Inc()
		l.dispatch(ctx, nl, now)
	}
}

// dispatch sends one due newsletter and stamps LastSentAt only after the
// transport confirmed the send, so a failed attempt retries on a later
// due evaluation.
func (l *Loop) dispatch(ctx context.Context, nl *models.Newsletter, now time.Time) {
	res, err := l.sender.Send(ctx, nl, newsletter.SendOptions{})
	if err != nil {
		logging.Warn().Err(err).
			Str("newsletter_id", nl.ID).
			Str("newsletter", nl.Name).
			Msg("scheduled send failed")
		return
	}

	nl.LastSentAt = now
	if err := l.store.SaveNewsletter(nl); err != nil {
		logging.Error().Err(err).
			Str("newsletter_id", nl.ID).
			Msg("failed to stamp last sent time")
	}

	logging.Info().
		Str("newsletter_id", nl.ID).
		Str("newsletter", nl.Name).
		Str("message_id", res.MessageID).
		Int("recipients", res.ToCount+res.BccCount).
		Msg("scheduled newsletter sent")
}

// wasJustSent reports whether the newsletter already fired inside the
// suppression window, keeping a minute that spans two ticks from sending
// twice.
func (l *Loop) wasJustSent(nl *models.Newsletter, now time.Time) bool {
	if nl.LastSentAt.IsZero() {
		return false
	}
	return now.Sub(nl.LastSentAt) < l.suppression
}
