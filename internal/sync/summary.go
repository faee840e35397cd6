// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/plexdigest/internal/models/tautulli"
)

// SummaryTotals aggregates the plays-by-date series for the lookback window.
type SummaryTotals struct {
	Movies           int `json:"movies"`
	Episodes         int `json:"episodes"`
	TotalPlays       int `json:"total_plays"`
	TotalTimeSeconds int `json:"total_time_seconds"`
}

// StatsSummary is the combined statistics payload a render consumes: the raw
// home stat blocks plus window totals.
type StatsSummary struct {
	Home   []tautulli.StatBlock `json:"home"`
	Totals SummaryTotals        `json:"totals"`
}

// BuildSummary fetches home stats and both plays-by-date series for the
// window and folds them into a StatsSummary. The "Movies" and "TV" labeled
// series feed the totals; other series (Music, Live TV) are ignored.
func BuildSummary(ctx context.Context, client TautulliClientInterface, days int) (*StatsSummary, error) {
	home, err := client.GetHomeStats(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("home stats: %w", err)
	}

	plays, err := client.GetPlaysByDate(ctx, days, "plays")
	if err != nil {
		return nil, fmt.Errorf("plays by date: %w", err)
	}

	duration, err := client.GetPlaysByDate(ctx, days, "duration")
	if err != nil {
		return nil, fmt.Errorf("duration by date: %w", err)
	}

	movies := sumForLabel(plays, "Movies")
	episodes := sumForLabel(plays, "TV")
	movieSec := sumForLabel(duration, "Movies")
	tvSec := sumForLabel(duration, "TV")

	return &StatsSummary{
		Home: home.Response.Data,
		Totals: SummaryTotals{
			Movies:           movies,
			Episodes:         episodes,
			TotalPlays:       movies + episodes,
			TotalTimeSeconds: movieSec + tvSec,
		},
	}, nil
}

// sumForLabel totals the series whose name matches label, case-insensitively.
func sumForLabel(pd *tautulli.PlaysByDate, label string) int {
	if pd == nil {
		return 0
	}
	for _, s := range pd.Response.Data.Series {
		if strings.EqualFold(s.Name, label) {
			return s.Sum()
		}
	}
	return 0
}
