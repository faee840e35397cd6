// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package newsletter implements the digest pipeline: template token
// rendering and dispatch.
//
// rows.go is the normalization layer between raw Tautulli payloads and the
// card builders. Upstream schemas vary by version, so every field here is
// resolved through an alternate-key fallback chain once, and the card logic
// only ever sees the small tagged row types below.
package newsletter

import (
	"strconv"
	"strings"

	"github.com/tomtom215/plexdigest/internal/models/tautulli"
)

// MovieRow is a ranked movie entry.
type MovieRow struct {
	Title         string
	Year          int
	Plays         int
	UniqueViewers int
	Poster        string
}

// ShowRow is a ranked series entry. For the most-watched-episodes card the
// Title already combines series and episode names.
type ShowRow struct {
	Title         string
	Plays         int
	UniqueViewers int
	Poster        string
}

// PlatformRow is a ranked streaming platform entry.
type PlatformRow struct {
	Name  string
	Plays int
}

// RecentMovieRow is one recently-added movie, enriched with a deep link and
// summary where available.
type RecentMovieRow struct {
	RatingKey string
	Title     string
	Year      int
	Poster    string
	Href      string
	Summary   string
}

// EpisodeRow is one recently-added episode before series grouping.
// Season and Episode are nil when the feed carried no usable number.
type EpisodeRow struct {
	RatingKey string
	Season    *int
	Episode   *int
	Name      string
	Href      string
}

// SeriesGroup collects the recent episodes of one series. Grouping is keyed
// on title plus year; a series without a year is keyed on title alone.
type SeriesGroup struct {
	Title    string
	Year     int
	Poster   string
	Episodes []EpisodeRow
}

// pickRows returns the rows of the first stat block whose id matches any of
// the given ids, in order of preference.
func pickRows(blocks []tautulli.StatBlock, ids ...string) []tautulli.StatRow {
	for _, b := range blocks {
		for _, id := range ids {
			if b.StatID == id {
				return b.Rows
			}
		}
	}
	return nil
}

// rowType returns the lowercased media type of a stat row, trying
// media_type, type, and section_type in order.
func rowType(r *tautulli.StatRow) string {
	for _, t := range []string{r.MediaType, r.Type, r.SectionType} {
		if t != "" {
			return strings.ToLower(t)
		}
	}
	return ""
}

// firstNonZero returns the first non-zero value, or zero.
func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// firstNonEmpty returns the first non-empty string, or empty.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// statRowPoster resolves the artwork path of a stat row, most specific first.
func statRowPoster(r *tautulli.StatRow) string {
	return firstNonEmpty(r.ThumbPath, r.Thumb, r.GrandparentThumb, r.ParentThumb, r.Art, r.Poster)
}

// recentItemPoster resolves the artwork path of a recently-added item.
func recentItemPoster(it *tautulli.RecentItem) string {
	return firstNonEmpty(it.ThumbPath, it.Thumb, it.GrandparentThumb, it.ParentThumb, it.Art, it.Poster)
}

// seriesPoster resolves artwork for an episode's parent series.
func seriesPoster(it *tautulli.RecentItem) string {
	return firstNonEmpty(it.GrandparentThumb, it.GrandparentPoster, it.Poster)
}

// movieRowsFrom normalizes home-stat rows into ranked movie rows, dropping
// rows that are not movies.
func movieRowsFrom(rows []tautulli.StatRow) []MovieRow {
	out := make([]MovieRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		if rowType(r) != "movie" {
			continue
		}
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, MovieRow{
			Title:         title,
			Year:          r.Year.Int(),
			Plays:         firstNonZero(r.TotalPlays.Int(), r.Plays.Int()),
			UniqueViewers: firstNonZero(r.UsersWatched.Int(), r.UniqueUsers.Int()),
			Poster:        statRowPoster(r),
		})
	}
	return out
}

// showRowsFrom normalizes home-stat rows into ranked series rows.
func showRowsFrom(rows []tautulli.StatRow) []ShowRow {
	out := make([]ShowRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		title := firstNonEmpty(r.GrandparentTitle, r.Title, "TV Show")
		out = append(out, ShowRow{
			Title:         title,
			Plays:         firstNonZero(r.TotalPlays.Int(), r.Plays.Int()),
			UniqueViewers: firstNonZero(r.UsersWatched.Int(), r.UniqueUsers.Int()),
			Poster:        statRowPoster(r),
		})
	}
	return out
}

// episodeShowRowsFrom normalizes home-stat rows into most-watched-episode
// rows, keeping episode, season, and show typed rows and combining series
// plus episode titles.
func episodeShowRowsFrom(rows []tautulli.StatRow) []ShowRow {
	out := make([]ShowRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		switch rowType(r) {
		case "episode", "season", "show":
		default:
			continue
		}
		show := firstNonEmpty(r.GrandparentTitle, r.Title, "Show")
		title := show
		if r.Title != "" && r.GrandparentTitle != "" {
			title = show + " — " + r.Title
		}
		out = append(out, ShowRow{
			Title:  title,
			Plays:  firstNonZero(r.TotalPlays.Int(), r.Plays.Int()),
			Poster: statRowPoster(r),
		})
	}
	return out
}

// platformRowsFrom normalizes home-stat rows into ranked platform rows.
func platformRowsFrom(rows []tautulli.StatRow) []PlatformRow {
	out := make([]PlatformRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		name := firstNonEmpty(r.Platform, r.Label, "Platform")
		out = append(out, PlatformRow{
			Name:  name,
			Plays: firstNonZero(r.TotalPlays.Int(), r.Plays.Int()),
		})
	}
	return out
}

// filterRecentByType returns the feed items of one media type.
func filterRecentByType(items []tautulli.RecentItem, mediaType string) []tautulli.RecentItem {
	out := make([]tautulli.RecentItem, 0, len(items))
	for i := range items {
		it := &items[i]
		t := strings.ToLower(firstNonEmpty(it.MediaType, it.Type))
		if t == mediaType {
			out = append(out, *it)
		}
	}
	return out
}

// recentMovieRowsFrom normalizes the recently-added feed into movie rows.
func recentMovieRowsFrom(items []tautulli.RecentItem) []RecentMovieRow {
	out := make([]RecentMovieRow, 0, len(items))
	for i := range items {
		it := &items[i]
		title := it.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, RecentMovieRow{
			RatingKey: firstNonEmpty(it.RatingKey.String(), it.ID.String()),
			Title:     title,
			Year:      it.Year.Int(),
			Poster:    recentItemPoster(it),
			Href:      firstNonEmpty(it.WebHref, it.DeepLink, it.Href),
			Summary:   firstNonEmpty(it.Summary, it.Plot, it.Tagline),
		})
	}
	return out
}

// flexIntPtr converts the first non-nil flexible number to *int.
func flexIntPtr(vals ...*tautulli.FlexInt) *int {
	for _, v := range vals {
		if v != nil {
			n := v.Int()
			return &n
		}
	}
	return nil
}

// groupRecentEpisodes buckets feed items by series, dropping blocked series
// titles. The returned slice preserves first-appearance order so that
// rendering stays deterministic.
func groupRecentEpisodes(items []tautulli.RecentItem, blocked []string) []SeriesGroup {
	var order []string
	groups := make(map[string]*SeriesGroup)

	for i := range items {
		it := &items[i]
		seriesTitle := strings.TrimSpace(firstNonEmpty(it.GrandparentTitle, it.Title, "Series"))
		if isBlockedSeries(seriesTitle, blocked) {
			continue
		}

		year := firstNonZero(it.GrandparentYear.Int(), it.Year.Int())
		key := seriesTitle
		if year != 0 {
			key = seriesTitle + "::" + strconv.Itoa(year)
		}

		g, ok := groups[key]
		if !ok {
			g = &SeriesGroup{
				Title:  seriesTitle,
				Year:   year,
				Poster: seriesPoster(it),
			}
			groups[key] = g
			order = append(order, key)
		}

		name := it.Title
		if name == "" {
			name = "Episode"
		}
		g.Episodes = append(g.Episodes, EpisodeRow{
			RatingKey: firstNonEmpty(it.RatingKey.String(), it.ID.String()),
			Season:    flexIntPtr(it.ParentIndex, it.ParentMediaIndex, it.Season),
			Episode:   flexIntPtr(it.Index, it.MediaIndex, it.Episode),
			Name:      name,
			Href:      firstNonEmpty(it.WebHref, it.DeepLink, it.Href),
		})
	}

	out := make([]SeriesGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// libraryCounts are whole-library totals for the server totals card.
type libraryCounts struct {
	Movies   int
	Shows    int
	Episodes int
}

// libraryCountsFromHome scans the home-stat blocks and their rows for the
// version-dependent library total keys. The first non-zero value per count
// wins; counts the payload never carried stay zero.
func libraryCountsFromHome(blocks []tautulli.StatBlock) libraryCounts {
	var c libraryCounts
	for i := range blocks {
		b := &blocks[i]
		c.Movies = firstNonZero(c.Movies,
			b.TotalMovies.Int(), b.Movies.Int(), b.MovieCount.Int(), b.CountMovies.Int())
		c.Shows = firstNonZero(c.Shows,
			b.TotalTVShows.Int(), b.TVShows.Int(), b.Shows.Int(), b.ShowCount.Int(), b.CountShows.Int())
		c.Episodes = firstNonZero(c.Episodes,
			b.TotalEpisodes.Int(), b.Episodes.Int(), b.EpisodeCount.Int(), b.CountEpisodes.Int())
		for j := range b.Rows {
			r := &b.Rows[j]
			c.Movies = firstNonZero(c.Movies,
				r.TotalMovies.Int(), r.Movies.Int(), r.MovieCount.Int(), r.CountMovies.Int())
			c.Shows = firstNonZero(c.Shows,
				r.TotalTVShows.Int(), r.TVShows.Int(), r.Shows.Int(), r.ShowCount.Int(), r.CountShows.Int())
			c.Episodes = firstNonZero(c.Episodes,
				r.TotalEpisodes.Int(), r.Episodes.Int(), r.EpisodeCount.Int(), r.CountEpisodes.Int())
		}
	}
	return c
}

// isBlockedSeries matches a series title against the blocklist,
// case-insensitively and ignoring a trailing "!".
func isBlockedSeries(title string, blocked []string) bool {
	t := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(title), "!"))
	for _, b := range blocked {
		if t == strings.ToLower(strings.TrimSuffix(strings.TrimSpace(b), "!")) {
			return true
		}
	}
	return false
}
