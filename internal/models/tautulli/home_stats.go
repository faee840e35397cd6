// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package tautulli

// HomeStats is the response from get_home_stats.
type HomeStats struct {
	Response HomeStatsResponse `json:"response"`
}

type HomeStatsResponse struct {
	Result  string      `json:"result"`
	Message *string     `json:"message,omitempty"`
	Data    []StatBlock `json:"data"`
}

// StatBlock is one aggregate block, identified by StatID
// ("top_movies", "popular_tv", "top_platforms", ...).
type StatBlock struct {
	StatID    string    `json:"stat_id"`
	StatType  string    `json:"stat_type,omitempty"`
	StatTitle string    `json:"stat_title,omitempty"`
	Rows      []StatRow `json:"rows"`

	// Library totals occasionally ride on the block itself rather than
	// its rows, under version-dependent names.
	TotalMovies   FlexInt `json:"total_movies,omitempty"`
	Movies        FlexInt `json:"movies,omitempty"`
	MovieCount    FlexInt `json:"movie_count,omitempty"`
	CountMovies   FlexInt `json:"count_movies,omitempty"`
	TotalTVShows  FlexInt `json:"total_tv_shows,omitempty"`
	TVShows       FlexInt `json:"tv_shows,omitempty"`
	Shows         FlexInt `json:"shows,omitempty"`
	ShowCount     FlexInt `json:"show_count,omitempty"`
	CountShows    FlexInt `json:"count_shows,omitempty"`
	TotalEpisodes FlexInt `json:"total_episodes,omitempty"`
	Episodes      FlexInt `json:"episodes,omitempty"`
	EpisodeCount  FlexInt `json:"episode_count,omitempty"`
	CountEpisodes FlexInt `json:"count_episodes,omitempty"`
}

// StatRow is one ranked row inside a stat block. Alternate key names are
// modeled side by side; rows.go in the newsletter package resolves them.
type StatRow struct {
	Title            string     `json:"title,omitempty"`
	GrandparentTitle string     `json:"grandparent_title,omitempty"`
	MediaType        string     `json:"media_type,omitempty"`
	Type             string     `json:"type,omitempty"`
	SectionType      string     `json:"section_type,omitempty"`
	Year             FlexInt    `json:"year,omitempty"`
	GrandparentYear  FlexInt    `json:"grandparent_year,omitempty"`
	RatingKey        FlexString `json:"rating_key,omitempty"`

	// Play counts
	TotalPlays FlexInt `json:"total_plays,omitempty"`
	Plays      FlexInt `json:"plays,omitempty"`

	// Unique viewer counts
	UsersWatched FlexInt `json:"users_watched,omitempty"`
	UniqueUsers  FlexInt `json:"unique_users,omitempty"`

	// Platform blocks
	Platform string `json:"platform,omitempty"`
	Label    string `json:"label,omitempty"`

	// Artwork paths, most specific first
	ThumbPath        string `json:"thumbPath,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
	GrandparentThumb string `json:"grandparent_thumb,omitempty"`
	ParentThumb      string `json:"parent_thumb,omitempty"`
	Art              string `json:"art,omitempty"`
	Poster           string `json:"poster,omitempty"`

	// Library totals (version-dependent placement)
	TotalMovies   FlexInt `json:"total_movies,omitempty"`
	Movies        FlexInt `json:"movies,omitempty"`
	MovieCount    FlexInt `json:"movie_count,omitempty"`
	CountMovies   FlexInt `json:"count_movies,omitempty"`
	TotalTVShows  FlexInt `json:"total_tv_shows,omitempty"`
	TVShows       FlexInt `json:"tv_shows,omitempty"`
	Shows         FlexInt `json:"shows,omitempty"`
	ShowCount     FlexInt `json:"show_count,omitempty"`
	CountShows    FlexInt `json:"count_shows,omitempty"`
	TotalEpisodes FlexInt `json:"total_episodes,omitempty"`
	Episodes      FlexInt `json:"episodes,omitempty"`
	EpisodeCount  FlexInt `json:"episode_count,omitempty"`
	CountEpisodes FlexInt `json:"count_episodes,omitempty"`
}
