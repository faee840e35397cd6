// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package store

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return validate.Var(s, "email") == nil
}

// NormalizeEmails lowercases, trims, validates, and deduplicates a list of
// email addresses, preserving first-seen order.
func NormalizeEmails(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if !IsEmail(e) {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SplitAddressList splits a comma-separated address string and normalizes
// the result. The send-now endpoint uses it for string-form to/bcc
// overrides.
func SplitAddressList(raw string) []string {
	return NormalizeEmails(strings.Split(raw, ","))
}
