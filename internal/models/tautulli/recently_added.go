// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package tautulli

// RecentlyAdded is the response from get_recently_added.
type RecentlyAdded struct {
	Response RecentlyAddedResponse `json:"response"`
}

type RecentlyAddedResponse struct {
	Result  string            `json:"result"`
	Message *string           `json:"message,omitempty"`
	Data    RecentlyAddedData `json:"data"`
}

type RecentlyAddedData struct {
	RecentlyAdded []RecentItem `json:"recently_added"`
}

// RecentItem is one entry in the recently-added feed.
type RecentItem struct {
	RatingKey FlexString `json:"rating_key,omitempty"`
	ID        FlexString `json:"id,omitempty"`

	Title            string  `json:"title,omitempty"`
	GrandparentTitle string  `json:"grandparent_title,omitempty"`
	MediaType        string  `json:"media_type,omitempty"`
	Type             string  `json:"type,omitempty"`
	Year             FlexInt `json:"year,omitempty"`
	GrandparentYear  FlexInt `json:"grandparent_year,omitempty"`

	// Episode numbering, most common name first. Pointers distinguish an
	// absent field from a real zero (specials are season 0).
	ParentIndex      *FlexInt `json:"parent_index,omitempty"`
	ParentMediaIndex *FlexInt `json:"parent_media_index,omitempty"`
	Season           *FlexInt `json:"season,omitempty"`
	Index            *FlexInt `json:"index,omitempty"`
	MediaIndex       *FlexInt `json:"media_index,omitempty"`
	Episode          *FlexInt `json:"episode,omitempty"`

	Summary string `json:"summary,omitempty"`
	Plot    string `json:"plot,omitempty"`
	Tagline string `json:"tagline,omitempty"`

	// Pre-built links, when the feed provides them
	WebHref  string `json:"webHref,omitempty"`
	DeepLink string `json:"deepLink,omitempty"`
	Href     string `json:"href,omitempty"`

	// Artwork
	ThumbPath         string `json:"thumbPath,omitempty"`
	Thumb             string `json:"thumb,omitempty"`
	GrandparentThumb  string `json:"grandparent_thumb,omitempty"`
	GrandparentPoster string `json:"grandparent_poster,omitempty"`
	ParentThumb       string `json:"parent_thumb,omitempty"`
	Art               string `json:"art,omitempty"`
	Poster            string `json:"poster,omitempty"`
}
