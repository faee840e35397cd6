// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/plexdigest/internal/models/tautulli"
)

// mockTautulliClient is a hand-written mock with per-method error injection.
type mockTautulliClient struct {
	homeStats     *tautulli.HomeStats
	homeStatsErr  error
	plays         map[string]*tautulli.PlaysByDate
	playsErr      error
	recent        *tautulli.RecentlyAdded
	recentErr     error
	recentCalls   int
}

func (m *mockTautulliClient) Ping(ctx context.Context) error { return nil }

func (m *mockTautulliClient) GetHomeStats(ctx context.Context, timeRange int) (*tautulli.HomeStats, error) {
	return m.homeStats, m.homeStatsErr
}

func (m *mockTautulliClient) GetPlaysByDate(ctx context.Context, timeRange int, yAxis string) (*tautulli.PlaysByDate, error) {
	if m.playsErr != nil {
		return nil, m.playsErr
	}
	return m.plays[yAxis], nil
}

func (m *mockTautulliClient) GetRecentlyAdded(ctx context.Context, timeRange, count int) (*tautulli.RecentlyAdded, error) {
	m.recentCalls++
	return m.recent, m.recentErr
}

func playsPayload(movies, tv []int) *tautulli.PlaysByDate {
	toFlex := func(vals []int) []tautulli.FlexInt {
		out := make([]tautulli.FlexInt, len(vals))
		for i, v := range vals {
			out[i] = tautulli.FlexInt(v)
		}
		return out
	}
	pd := &tautulli.PlaysByDate{}
	pd.Response.Result = "success"
	pd.Response.Data.Series = []tautulli.PlaysSeries{
		{Name: "Movies", Data: toFlex(movies)},
		{Name: "TV", Data: toFlex(tv)},
		{Name: "Music", Data: toFlex([]int{99})},
	}
	return pd
}

func TestBuildSummaryTotals(t *testing.T) {
	hs := &tautulli.HomeStats{}
	hs.Response.Result = "success"
	hs.Response.Data = []tautulli.StatBlock{{StatID: "top_movies"}}

	mock := &mockTautulliClient{
		homeStats: hs,
		plays: map[string]*tautulli.PlaysByDate{
			"plays":    playsPayload([]int{1, 2}, []int{4, 6}),
			"duration": playsPayload([]int{3600}, []int{3600}),
		},
	}

	summary, err := BuildSummary(context.Background(), mock, 7)
	if err != nil {
		t.Fatalf("BuildSummary: %v", err)
	}

	if summary.Totals.Movies != 3 {
		t.Errorf("movies = %d, want 3", summary.Totals.Movies)
	}
	if summary.Totals.Episodes != 10 {
		t.Errorf("episodes = %d, want 10", summary.Totals.Episodes)
	}
	if summary.Totals.TotalPlays != 13 {
		t.Errorf("total plays = %d, want 13", summary.Totals.TotalPlays)
	}
	if summary.Totals.TotalTimeSeconds != 7200 {
		t.Errorf("total seconds = %d, want 7200", summary.Totals.TotalTimeSeconds)
	}
	if len(summary.Home) != 1 || summary.Home[0].StatID != "top_movies" {
		t.Errorf("home blocks not carried through: %+v", summary.Home)
	}
}

func TestBuildSummaryPropagatesErrors(t *testing.T) {
	mock := &mockTautulliClient{homeStatsErr: errors.New("down")}
	if _, err := BuildSummary(context.Background(), mock, 7); err == nil {
		t.Error("expected error when home stats fail")
	}
}

func TestSumForLabelCaseInsensitive(t *testing.T) {
	pd := playsPayload([]int{5}, []int{7})
	if got := sumForLabel(pd, "movies"); got != 5 {
		t.Errorf("sumForLabel(movies) = %d, want 5", got)
	}
	if got := sumForLabel(pd, "Absent"); got != 0 {
		t.Errorf("sumForLabel(Absent) = %d, want 0", got)
	}
	if got := sumForLabel(nil, "Movies"); got != 0 {
		t.Errorf("sumForLabel(nil) = %d, want 0", got)
	}
}
