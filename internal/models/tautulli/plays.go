// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package tautulli

// PlaysByDate is the response from get_plays_by_date. The same shape serves
// both y-axis modes (plays and duration).
type PlaysByDate struct {
	Response PlaysByDateResponse `json:"response"`
}

type PlaysByDateResponse struct {
	Result  string          `json:"result"`
	Message *string         `json:"message,omitempty"`
	Data    PlaysByDateData `json:"data"`
}

type PlaysByDateData struct {
	Categories []string      `json:"categories"`
	Series     []PlaysSeries `json:"series"`
}

// PlaysSeries is one labeled series ("Movies", "TV", "Music", "Live TV").
type PlaysSeries struct {
	Name string    `json:"name"`
	Data []FlexInt `json:"data"`
}

// Sum returns the series total over the whole window.
func (s PlaysSeries) Sum() int {
	total := 0
	for _, v := range s.Data {
		total += v.Int()
	}
	return total
}
