// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package newsletter

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/metrics"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/models/tautulli"
	mediasync "github.com/tomtom215/plexdigest/internal/sync"
)

// Per-card row caps.
const (
	maxRankedRows       = 5
	maxPlatformRows     = 6
	maxRecentMovies     = 8
	maxEpisodesPerShow  = 5
	recentEpisodesFetch = 50
	summaryMaxRunes     = 420
)

// PlexSource is the slice of the Plex client the renderer consumes.
type PlexSource interface {
	Configured() bool
	MachineIdentifier(ctx context.Context) (string, error)
	Item(ctx context.Context, ratingKey string) (*mediasync.PlexItem, error)
	LibraryTotals(ctx context.Context) (*mediasync.LibraryTotals, error)
}

// OwnerRecSource provides the operator-curated recommendation.
type OwnerRecSource interface {
	OwnerRecommendation() (*models.OwnerRecommendation, error)
}

// Renderer expands card tokens in a template body into inline-styled HTML
// fragments. Every upstream fetch happens at most once per render, and a
// failing card degrades to a placeholder instead of failing the render.
type Renderer struct {
	tautulli      mediasync.TautulliClientInterface
	plex          PlexSource
	ownerRec      OwnerRecSource
	baseURL       string
	blockedSeries []string
}

// NewRenderer wires a renderer from its upstream sources. baseURL is the
// public address the image proxy links are built against.
func NewRenderer(tc mediasync.TautulliClientInterface, plex PlexSource, rec OwnerRecSource, baseURL string, blockedSeries []string) *Renderer {
	return &Renderer{
		tautulli:      tc,
		plex:          plex,
		ownerRec:      rec,
		baseURL:       baseURL,
		blockedSeries: blockedSeries,
	}
}

// renderData holds the upstream payloads one render consumes. Fields are
// only populated when a present token needs them.
type renderData struct {
	summary    *mediasync.StatsSummary
	summaryErr error

	recent    []tautulli.RecentItem
	recentErr error

	machineID string

	libTotals    *mediasync.LibraryTotals
	libTotalsErr error

	ownerRec     *models.OwnerRecommendation
	ownerItem    *mediasync.PlexItem
	ownerRecErr  error
	ownerItemErr error
}

// Render expands every recognized token in templateHTML for the given
// statistics window. Rendering is deterministic for fixed upstream data, so
// repeated calls yield identical output.
func (r *Renderer) Render(ctx context.Context, templateHTML string, lookbackDays int) string {
	start := time.Now()
	defer func() {
		metrics.RenderDuration.Observe(time.Since(start).Seconds())
	}()

	has := func(token string) bool {
		return containsToken(templateHTML, token)
	}
	ownerRecWanted := false
	for _, tok := range OwnerRecTokens {
		if has(tok) {
			ownerRecWanted = true
			break
		}
	}

	statsWanted := has(TokenMostWatchedMovies) || has(TokenMostWatchedShows) ||
		has(TokenMostWatchedEpisodes) || has(TokenPopularMovies) ||
		has(TokenPopularShows) || has(TokenPopularPlatforms) || has(TokenServerTotals)
	recentWanted := has(TokenRecentMovies) || has(TokenRecentEpisodes)
	linksWanted := recentWanted || ownerRecWanted

	data := r.fetch(ctx, lookbackDays, statsWanted, recentWanted, linksWanted,
		has(TokenServerTotals), ownerRecWanted)

	pairs := make([]string, 0, 24)
	add := func(token, html string) {
		pairs = append(pairs, token, html)
	}

	if has(TokenMostWatchedMovies) {
		add(TokenMostWatchedMovies, r.card("most_watched_movies", "Most Watched Movies", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := movieRowsFrom(pickRows(data.summary.Home, "top_movies", "most_watched_movies"))
			return rankedMoviesBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenMostWatchedShows) {
		add(TokenMostWatchedShows, r.card("most_watched_shows", "Most Watched TV Shows", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := showRowsFrom(pickRows(data.summary.Home, "top_tv", "most_watched_tv_shows", "most_watched_tv"))
			return rankedShowsBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenMostWatchedEpisodes) {
		add(TokenMostWatchedEpisodes, r.card("most_watched_episodes", "Most Watched Episodes", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := episodeShowRowsFrom(pickRows(data.summary.Home, "top_tv", "most_watched_tv_shows", "most_watched_tv"))
			return rankedShowsBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenPopularMovies) {
		add(TokenPopularMovies, r.card("popular_movies", "Most Popular Movies", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := movieRowsFrom(pickRows(data.summary.Home, "popular_movies"))
			return rankedMoviesBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenPopularShows) {
		add(TokenPopularShows, r.card("popular_shows", "Most Popular TV Shows", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := showRowsFrom(pickRows(data.summary.Home, "popular_tv", "popular_shows"))
			return rankedShowsBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenPopularPlatforms) {
		add(TokenPopularPlatforms, r.card("popular_platforms", "Most Popular Streaming Platforms", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			rows := platformRowsFrom(pickRows(data.summary.Home, "top_platforms", "most_used_platforms", "top_clients"))
			return platformsBody(r.baseURL, rows), nil
		}))
	}
	if has(TokenServerTotals) {
		add(TokenServerTotals, r.card("server_totals", "Plex Media Server Totals", func() (string, error) {
			if data.summaryErr != nil {
				return "", data.summaryErr
			}
			// Stats payload first, Plex per missing count.
			lib := libraryCountsFromHome(data.summary.Home)
			if data.libTotals != nil {
				lib.Movies = firstNonZero(lib.Movies, data.libTotals.Movies)
				lib.Shows = firstNonZero(lib.Shows, data.libTotals.Shows)
				lib.Episodes = firstNonZero(lib.Episodes, data.libTotals.Episodes)
			}
			return serverTotalsBody(&data.summary.Totals, lib, lookbackDays), nil
		}))
	}
	if has(TokenRecentMovies) {
		add(TokenRecentMovies, r.card("recent_movies", "Recently added Movies", func() (string, error) {
			if data.recentErr != nil {
				return "", data.recentErr
			}
			rows := recentMovieRowsFrom(filterRecentByType(data.recent, "movie"))
			if len(rows) > maxRecentMovies {
				rows = rows[:maxRecentMovies]
			}
			r.enrichRecentMovies(ctx, rows, data.machineID)
			return r.recentMoviesBody(rows, data.machineID, lookbackDays), nil
		}))
	}
	if has(TokenRecentEpisodes) {
		add(TokenRecentEpisodes, r.card("recent_episodes", "Recently added TV Episodes", func() (string, error) {
			if data.recentErr != nil {
				return "", data.recentErr
			}
			groups := groupRecentEpisodes(filterRecentByType(data.recent, "episode"), r.blockedSeries)
			return r.recentEpisodesBody(groups, data.machineID, lookbackDays), nil
		}))
	}
	if ownerRecWanted {
		html := r.card("owner_recommendation", "Host’s Recommendation", func() (string, error) {
			if data.ownerRecErr != nil {
				return "", data.ownerRecErr
			}
			return r.ownerRecBody(data), nil
		})
		for _, tok := range OwnerRecTokens {
			add(tok, html)
		}
	}

	if len(pairs) == 0 {
		return templateHTML
	}
	// Single-pass substitution. Card output containing a token-shaped string
	// is never re-expanded.
	return stringsReplacerAll(templateHTML, pairs)
}

// fetch gathers every upstream payload the present tokens require,
// concurrently. Individual failures are recorded, not raised.
func (r *Renderer) fetch(ctx context.Context, days int, statsWanted, recentWanted, linksWanted, totalsWanted, ownerRecWanted bool) *renderData {
	data := &renderData{}
	var wg stdsync.WaitGroup

	if statsWanted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data.summary, data.summaryErr = mediasync.BuildSummary(ctx, r.tautulli, days)
		}()
	}
	if recentWanted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ra, err := r.tautulli.GetRecentlyAdded(ctx, days, recentEpisodesFetch)
			if err != nil {
				data.recentErr = err
				return
			}
			data.recent = ra.Response.Data.RecentlyAdded
		}()
	}
	if linksWanted && r.plex != nil && r.plex.Configured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.plex.MachineIdentifier(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("machine identifier unavailable, deep links disabled")
				return
			}
			data.machineID = id
		}()
	}
	if totalsWanted && r.plex != nil && r.plex.Configured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data.libTotals, data.libTotalsErr = r.plex.LibraryTotals(ctx)
			if data.libTotalsErr != nil {
				logging.Warn().Err(data.libTotalsErr).Msg("library totals unavailable")
			}
		}()
	}
	if ownerRecWanted && r.ownerRec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data.ownerRec, data.ownerRecErr = r.ownerRec.OwnerRecommendation()
			if data.ownerRecErr != nil || data.ownerRec == nil {
				return
			}
			if data.ownerRec.PlexItemID != "" && r.plex != nil && r.plex.Configured() {
				data.ownerItem, data.ownerItemErr = r.plex.Item(ctx, data.ownerRec.PlexItemID)
				if data.ownerItemErr != nil {
					logging.Warn().Err(data.ownerItemErr).
						Str("rating_key", data.ownerRec.PlexItemID).
						Msg("recommendation item lookup failed")
				}
			}
		}()
	}

	wg.Wait()
	return data
}

// enrichRecentMovies fills gaps the feed left in the rows that will render:
// a row without a summary or link gets one Plex metadata lookup. Lookups run
// concurrently, and a failed lookup leaves its row as the feed delivered it.
func (r *Renderer) enrichRecentMovies(ctx context.Context, rows []RecentMovieRow, machineID string) {
	if r.plex == nil || !r.plex.Configured() {
		return
	}

	var wg stdsync.WaitGroup
	for i := range rows {
		row := &rows[i]
		if row.RatingKey == "" || (row.Summary != "" && row.Href != "") {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := r.plex.Item(ctx, row.RatingKey)
			if err != nil || item == nil {
				logging.Debug().Err(err).Str("rating_key", row.RatingKey).Msg("recent movie lookup failed")
				return
			}
			if row.Summary == "" {
				row.Summary = firstNonEmpty(item.Summary, item.Tagline)
			}
			if row.Href == "" {
				row.Href = appPlexHref(machineID, row.RatingKey)
			}
		}()
	}
	wg.Wait()
}

// card builds one card with failure isolation. A build error yields the
// card chrome with a placeholder body.
func (r *Renderer) card(name, title string, build func() (string, error)) string {
	body, err := build()
	if err != nil {
		logging.Warn().Err(err).Str("card", name).Msg("card render failed")
		metrics.CardRenderFailures.WithLabelValues(name).Inc()
		return cardHTML(title, noDataHTML)
	}
	return cardHTML(title, body)
}

func rankedMoviesBody(baseURL string, rows []MovieRow) string {
	if len(rows) == 0 {
		return noDataHTML
	}
	if len(rows) > maxRankedRows {
		rows = rows[:maxRankedRows]
	}
	var b htmlBuilder
	for _, row := range rows {
		title := row.Title
		if row.Year != 0 {
			title = fmt.Sprintf("%s (%d)", title, row.Year)
		}
		b.entry(imageProxyURL(baseURL, row.Poster), title, playsLabel(row.Plays, row.UniqueViewers), "")
	}
	return b.String()
}

func rankedShowsBody(baseURL string, rows []ShowRow) string {
	if len(rows) == 0 {
		return noDataHTML
	}
	if len(rows) > maxRankedRows {
		rows = rows[:maxRankedRows]
	}
	var b htmlBuilder
	for _, row := range rows {
		b.entry(imageProxyURL(baseURL, row.Poster), row.Title, playsLabel(row.Plays, row.UniqueViewers), "")
	}
	return b.String()
}

func platformsBody(baseURL string, rows []PlatformRow) string {
	if len(rows) == 0 {
		return noDataHTML
	}
	if len(rows) > maxPlatformRows {
		rows = rows[:maxPlatformRows]
	}
	var b htmlBuilder
	for _, row := range rows {
		b.iconEntry(platformIconURL(baseURL, row.Name), platformDisplayName(row.Name), playsLabel(row.Plays, 0))
	}
	return b.String()
}

// serverTotalsBody renders the window totals plus whole-library counts. The
// library lines always render; a count no source could supply shows as 0.
func serverTotalsBody(totals *mediasync.SummaryTotals, lib libraryCounts, days int) string {
	hours := totals.TotalTimeSeconds / 3600
	minutes := (totals.TotalTimeSeconds % 3600) / 60

	var b htmlBuilder
	b.raw(`<ul style="margin:0;padding-left:18px;line-height:1.8">`)
	b.raw(liHTML(fmt.Sprintf("Movies Streamed (Last %d Days)", days), formatInt(totals.Movies)))
	b.raw(liHTML(fmt.Sprintf("Episodes Streamed (Last %d Days)", days), formatInt(totals.Episodes)))
	b.raw(liHTML("Total Plays", formatInt(totals.TotalPlays)))
	b.raw(liHTML("Total Watch Time", formatHm(hours, minutes)))
	b.raw(liHTML("Movies in Library", formatInt(lib.Movies)))
	b.raw(liHTML("TV Shows in Library", formatInt(lib.Shows)))
	b.raw(liHTML("Episodes in Library", formatInt(lib.Episodes)))
	b.raw(`</ul>`)
	return b.String()
}

func (r *Renderer) recentMoviesBody(rows []RecentMovieRow, machineID string, days int) string {
	if len(rows) == 0 {
		return fmt.Sprintf(`<div style="opacity:.7">No recent movies in the last %d days.</div>`, days)
	}
	if len(rows) > maxRecentMovies {
		rows = rows[:maxRecentMovies]
	}
	var b htmlBuilder
	for _, row := range rows {
		title := row.Title
		if row.Year != 0 {
			title = fmt.Sprintf("%s (%d)", title, row.Year)
		}
		href := row.Href
		if href == "" {
			href = appPlexHref(machineID, row.RatingKey)
		}
		summary := ""
		if row.Summary != "" {
			summary = truncate(row.Summary, summaryMaxRunes)
		}
		b.linkedEntry(imageProxyURL(r.baseURL, row.Poster), title, href, summary)
	}
	return b.String()
}

func (r *Renderer) recentEpisodesBody(groups []SeriesGroup, machineID string, days int) string {
	if len(groups) == 0 {
		return fmt.Sprintf(`<div style="opacity:.7">No recent episodes in the last %d days.</div>`, days)
	}
	var b htmlBuilder
	for _, g := range groups {
		title := g.Title
		if g.Year != 0 {
			title = fmt.Sprintf("%s (%d)", title, g.Year)
		}

		b.raw(`<div style="display:flex;margin:10px 0">`)
		if src := imageProxyURL(r.baseURL, g.Poster); src != "" {
			b.raw(posterImg(src, g.Title, 46, 68))
		}
		b.raw(`<div><div style="font-weight:600">` + htmlEscape(title) + `</div><ul style="margin:4px 0 0 0;padding-left:18px">`)

		episodes := g.Episodes
		more := len(episodes) > maxEpisodesPerShow
		if more {
			episodes = episodes[:maxEpisodesPerShow]
		}
		for _, ep := range episodes {
			label := fmt.Sprintf("S%sE%s — %s", twoDigits(ep.Season), twoDigits(ep.Episode), ep.Name)
			href := ep.Href
			if href == "" {
				href = appPlexHref(machineID, ep.RatingKey)
			}
			if href != "" {
				b.raw(`<li><a href="` + href + `" style="color:#2563eb;text-decoration:none">` + htmlEscape(label) + `</a></li>`)
			} else {
				b.raw(`<li>` + htmlEscape(label) + `</li>`)
			}
		}
		if more {
			b.raw(`<li style="opacity:.7">And more…</li>`)
		}
		b.raw(`</ul></div></div>`)
	}
	return b.String()
}

func (r *Renderer) ownerRecBody(data *renderData) string {
	rec := data.ownerRec
	if rec == nil || (rec.PlexItemID == "" && rec.Note == "") {
		return noDataHTML
	}

	var b htmlBuilder
	if item := data.ownerItem; item != nil {
		title := item.Title
		if item.Year != 0 {
			title = fmt.Sprintf("%s (%d)", title, item.Year)
		}
		summary := firstNonEmpty(item.Summary, item.Tagline)
		if summary != "" {
			summary = truncate(summary, summaryMaxRunes)
		}
		poster := firstNonEmpty(item.Thumb, item.GrandparentThumb, item.ParentThumb, item.Art)
		b.linkedEntry(imageProxyURL(r.baseURL, poster), title, appPlexHref(data.machineID, item.RatingKey), summary)
	} else if rec.PlexItemID != "" {
		// Lookup failed or Plex is not configured; fall back to the bare link.
		if href := appPlexHref(data.machineID, rec.PlexItemID); href != "" {
			b.raw(`<div><a href="` + href + `" style="color:#2563eb;text-decoration:none">View on Plex</a></div>`)
		}
	}
	if rec.Note != "" {
		b.raw(`<div style="margin-top:8px;font-style:italic">` + htmlEscape(rec.Note) + `</div>`)
	}
	if b.Len() == 0 {
		return noDataHTML
	}
	return b.String()
}

func playsLabel(plays, viewers int) string {
	label := fmt.Sprintf("%s plays", formatInt(plays))
	if viewers > 0 {
		label += fmt.Sprintf(", %s unique viewers", formatInt(viewers))
	}
	return label
}
