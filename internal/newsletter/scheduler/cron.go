// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package scheduler evaluates newsletter recurrence rules and drives the
// periodic dispatch loop.
package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/plexdigest/internal/models"
)

// dayNames maps the structured schedule's lowercase day names to weekdays.
var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsDue reports whether the schedule fires at the given instant, evaluated
// at minute resolution. A non-empty cron expression is authoritative over
// the structured fields. Malformed expressions are never due.
func IsDue(sched *models.Schedule, now time.Time) bool {
	if sched == nil {
		return false
	}
	if sched.UsesCron() {
		return cronMatches(sched.Cron, now)
	}
	return structuredMatches(sched, now)
}

// cronMatches evaluates a 5-field expression (minute, hour, day-of-month,
// month, day-of-week) where each field is "*" or a comma-separated integer
// list. Day-of-week 7 is folded to 0 for Sunday. Ranges and steps are not
// part of the supported grammar.
func cronMatches(expr string, now time.Time) bool {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return false
	}

	checks := []struct {
		field string
		value int
		fold  func(int) int
	}{
		{fields[0], now.Minute(), nil},
		{fields[1], now.Hour(), nil},
		{fields[2], now.Day(), nil},
		{fields[3], int(now.Month()), nil},
		{fields[4], int(now.Weekday()), func(n int) int {
			if n == 7 {
				return 0
			}
			return n
		}},
	}
	for _, c := range checks {
		ok, valid := fieldMatches(c.field, c.value, c.fold)
		if !valid || !ok {
			return false
		}
	}
	return true
}

// fieldMatches reports whether value satisfies one cron field. The second
// return is false when the field does not parse.
func fieldMatches(field string, value int, fold func(int) int) (matched, valid bool) {
	if field == "*" {
		return true, true
	}
	for _, part := range strings.Split(field, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return false, false
		}
		if fold != nil {
			n = fold(n)
		}
		if n == value {
			matched = true
		}
	}
	return matched, true
}

// structuredMatches evaluates the frequency-based representation. The minute
// defaults to 0; an unset hour matches every hour, so a daily schedule with
// no hour fires at its minute of each hour of the day.
func structuredMatches(sched *models.Schedule, now time.Time) bool {
	minute := intOr(sched.Minute, 0)
	if now.Minute() != minute {
		return false
	}

	hourMatches := sched.Hour == nil || now.Hour() == *sched.Hour

	switch sched.Frequency {
	case models.FrequencyHour:
		return true
	case models.FrequencyDay:
		return hourMatches
	case models.FrequencyWeek:
		day, ok := dayNames[strings.ToLower(strings.TrimSpace(sched.DayOfWeek))]
		if !ok {
			day = time.Monday
		}
		return hourMatches && now.Weekday() == day
	case models.FrequencyMonth:
		return hourMatches && now.Day() == intOr(sched.DayOfMonth, 1)
	case models.FrequencyYear:
		// Yearly schedules fire on the first day of a zero-based month.
		return hourMatches &&
			now.Day() == 1 &&
			int(now.Month()) == intOr(sched.Month, 0)+1
	default:
		return false
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
