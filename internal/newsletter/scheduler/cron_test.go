// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package scheduler

import (
	"testing"
	"time"

	"github.com/tomtom215/plexdigest/internal/models"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad test time %q: %v", value, err)
	}
	return ts
}

func intp(n int) *int { return &n }

func TestIsDueCron(t *testing.T) {
	monday0900 := at(t, "2026-08-24 09:00") // a Monday
	tests := []struct {
		name string
		cron string
		now  time.Time
		want bool
	}{
		{"weekly monday nine", "0 9 * * 1", monday0900, true},
		{"wrong minute", "0 9 * * 1", at(t, "2026-08-24 09:01"), false},
		{"wrong day", "0 9 * * 1", at(t, "2026-08-25 09:00"), false},
		{"every minute", "* * * * *", at(t, "2026-08-24 17:42"), true},
		{"minute list", "0,30 * * * *", at(t, "2026-08-24 17:30"), true},
		{"minute list miss", "0,30 * * * *", at(t, "2026-08-24 17:31"), false},
		{"dow seven is sunday", "0 9 * * 7", at(t, "2026-08-23 09:00"), true},
		{"month match", "0 0 1 8 *", at(t, "2026-08-01 00:00"), true},
		{"month miss", "0 0 1 9 *", at(t, "2026-08-01 00:00"), false},
		{"too few fields", "0 9 * *", monday0900, false},
		{"ranges unsupported", "0-5 * * * *", monday0900, false},
		{"steps unsupported", "*/5 * * * *", monday0900, false},
		{"garbage", "zero nine * * one", monday0900, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &models.Schedule{Cron: tt.cron}
			if got := IsDue(sched, tt.now); got != tt.want {
				t.Errorf("IsDue(%q, %s) = %v, want %v", tt.cron, tt.now, got, tt.want)
			}
		})
	}
}

func TestIsDueStructured(t *testing.T) {
	tests := []struct {
		name  string
		sched *models.Schedule
		now   time.Time
		want  bool
	}{
		{
			"hourly fires every hour at its minute",
			&models.Schedule{Frequency: models.FrequencyHour, Minute: intp(15)},
			at(t, "2026-08-24 03:15"), true,
		},
		{
			"hourly default minute zero",
			&models.Schedule{Frequency: models.FrequencyHour},
			at(t, "2026-08-24 03:01"), false,
		},
		{
			"daily at hour",
			&models.Schedule{Frequency: models.FrequencyDay, Hour: intp(8)},
			at(t, "2026-08-24 08:00"), true,
		},
		{
			"daily wrong hour",
			&models.Schedule{Frequency: models.FrequencyDay, Hour: intp(8)},
			at(t, "2026-08-24 09:00"), false,
		},
		{
			"daily unset hour matches every hour",
			&models.Schedule{Frequency: models.FrequencyDay},
			at(t, "2026-08-24 13:00"), true,
		},
		{
			"daily unset hour still needs the minute",
			&models.Schedule{Frequency: models.FrequencyDay},
			at(t, "2026-08-24 13:05"), false,
		},
		{
			"weekly unset hour matches every hour of the day",
			&models.Schedule{Frequency: models.FrequencyWeek, DayOfWeek: "monday"},
			at(t, "2026-08-24 21:00"), true,
		},
		{
			"monthly unset hour matches every hour of the day",
			&models.Schedule{Frequency: models.FrequencyMonth},
			at(t, "2026-08-01 17:00"), true,
		},
		{
			"weekly default monday",
			&models.Schedule{Frequency: models.FrequencyWeek, Hour: intp(9)},
			at(t, "2026-08-24 09:00"), true,
		},
		{
			"weekly named day",
			&models.Schedule{Frequency: models.FrequencyWeek, DayOfWeek: "friday", Hour: intp(18)},
			at(t, "2026-08-28 18:00"), true,
		},
		{
			"weekly named day miss",
			&models.Schedule{Frequency: models.FrequencyWeek, DayOfWeek: "friday", Hour: intp(18)},
			at(t, "2026-08-27 18:00"), false,
		},
		{
			"monthly default first",
			&models.Schedule{Frequency: models.FrequencyMonth},
			at(t, "2026-08-01 00:00"), true,
		},
		{
			"monthly chosen day",
			&models.Schedule{Frequency: models.FrequencyMonth, DayOfMonth: intp(15), Hour: intp(7)},
			at(t, "2026-08-15 07:00"), true,
		},
		{
			"yearly default january first",
			&models.Schedule{Frequency: models.FrequencyYear},
			at(t, "2026-01-01 00:00"), true,
		},
		{
			"yearly zero-based month",
			&models.Schedule{Frequency: models.FrequencyYear, Month: intp(7)},
			at(t, "2026-08-01 00:00"), true,
		},
		{
			"yearly never mid-month",
			&models.Schedule{Frequency: models.FrequencyYear, Month: intp(7)},
			at(t, "2026-08-02 00:00"), false,
		},
		{
			"unknown frequency",
			&models.Schedule{Frequency: "fortnight"},
			at(t, "2026-08-24 00:00"), false,
		},
		{
			"nil schedule",
			nil,
			at(t, "2026-08-24 00:00"), false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(tt.sched, tt.now); got != tt.want {
				t.Errorf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCronWinsOverStructured(t *testing.T) {
	sched := &models.Schedule{
		Cron:      "30 6 * * *",
		Frequency: models.FrequencyDay,
		Hour:      intp(9),
	}
	if !IsDue(sched, at(t, "2026-08-24 06:30")) {
		t.Error("cron expression should be authoritative")
	}
	if IsDue(sched, at(t, "2026-08-24 09:00")) {
		t.Error("structured fields must be ignored when cron is set")
	}
}
