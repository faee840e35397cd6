// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package tautulli

// Activity is the response from get_activity, used only as a liveness probe.
type Activity struct {
	Response ActivityResponse `json:"response"`
}

type ActivityResponse struct {
	Result  string       `json:"result"`
	Message *string      `json:"message,omitempty"`
	Data    ActivityData `json:"data"`
}

type ActivityData struct {
	StreamCount FlexInt `json:"stream_count,omitempty"`
}
