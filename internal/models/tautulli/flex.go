// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package tautulli defines typed response models for the Tautulli API.
//
// Tautulli's payload schemas vary across versions: numeric fields arrive as
// numbers or strings, and several fields go by alternate names. FlexInt and
// FlexString absorb the type variance; the alternate names are modeled as
// sibling struct fields resolved by the normalization layer.
package tautulli

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// FlexInt is an int that unmarshals from a JSON number, a numeric string,
// or null. Unparseable values decode to zero rather than failing the row.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil //nolint:nilerr // Malformed values degrade to zero
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*f = FlexInt(n)
		} else {
			*f = 0
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		*f = 0
		return nil //nolint:nilerr // Malformed values degrade to zero
	}
	*f = FlexInt(n)
	return nil
}

// Int returns the value as a plain int.
func (f FlexInt) Int() int {
	return int(f)
}

// FlexString is a string that unmarshals from a JSON string or number.
// Rating keys in particular arrive as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = ""
			return nil //nolint:nilerr // Malformed values degrade to empty
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(string(data))
	return nil
}

// String returns the value as a plain string.
func (f FlexString) String() string {
	return string(f)
}
