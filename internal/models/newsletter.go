// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package models defines the persisted and wire-level domain types.
package models

import (
	"strings"
	"time"
)

// Newsletter is an operator-defined digest with a recurrence rule and a
// recipient list. LastSentAt is stamped by the scheduler after a confirmed
// send; everything else is operator-edited.
type Newsletter struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Subject      string    `json:"subject,omitempty"`
	Description  string    `json:"description,omitempty"`
	TemplateID   string    `json:"templateId,omitempty"`
	Schedule     *Schedule `json:"schedule,omitempty"`
	LookbackDays int       `json:"lookbackDays,omitempty" validate:"omitempty,min=1,max=90"`
	Recipients   []string  `json:"recipients"`
	Enabled      bool      `json:"enabled"`
	LastSentAt   time.Time `json:"lastSentAt,omitempty"`
}

// SubjectOrDefault returns the configured subject, or a name-derived default.
func (n *Newsletter) SubjectOrDefault() string {
	if s := strings.TrimSpace(n.Subject); s != "" {
		return s
	}
	name := n.Name
	if name == "" {
		name = "Untitled"
	}
	return "Newsletter: " + name
}

// Frequency values for the structured schedule path.
const (
	FrequencyHour  = "hour"
	FrequencyDay   = "day"
	FrequencyWeek  = "week"
	FrequencyMonth = "month"
	FrequencyYear  = "year"
)

// Schedule is a recurrence specification. Exactly one representation is
// authoritative: a non-empty Cron expression wins over the structured fields.
type Schedule struct {
	// Cron is a standard 5-field expression: minute hour day-of-month
	// month day-of-week. Each field is "*" or a comma-separated list of
	// integers. Day-of-week 7 is an alias for 0 (Sunday).
	Cron string `json:"cron,omitempty"`

	// Frequency is one of hour, day, week, month, year.
	Frequency string `json:"frequency,omitempty" validate:"omitempty,oneof=hour day week month year"`

	// DayOfWeek is a lowercase day name for weekly schedules
	// (default "monday").
	DayOfWeek string `json:"dayOfWeek,omitempty" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`

	// DayOfMonth selects the day for monthly schedules (default 1).
	DayOfMonth *int `json:"dayOfMonth,omitempty" validate:"omitempty,min=1,max=31"`

	// Month selects the zero-based month for yearly schedules
	// (default 0, January). Yearly schedules always fire on day 1.
	Month *int `json:"month,omitempty" validate:"omitempty,min=0,max=11"`

	// Hour is the target hour. Unset matches every hour.
	Hour *int `json:"hour,omitempty" validate:"omitempty,min=0,max=23"`

	// Minute is the target minute (default 0).
	Minute *int `json:"minute,omitempty" validate:"omitempty,min=0,max=59"`
}

// UsesCron reports whether the cron representation is authoritative.
func (s *Schedule) UsesCron() bool {
	return s != nil && strings.TrimSpace(s.Cron) != ""
}

// Template is an operator-composed HTML body containing card tokens.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	HTML string `json:"html"`

	// LookbackDays overrides the global statistics window when set (1-90).
	LookbackDays *int `json:"lookbackDays,omitempty" validate:"omitempty,min=1,max=90"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Recipient is a named email address. Uniqueness is keyed on the
// lowercased email.
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// OwnerRecommendation is the operator-curated pick surfaced by the
// host recommendation card.
type OwnerRecommendation struct {
	PlexItemID string `json:"plexItemId,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Dispatch content modes.
const (
	ModeTemplate = "template"
	ModeRaw      = "raw"
)

// DispatchResult is the structured outcome of a send attempt. For dry runs
// only Summary is populated; Accepted and Rejected stay nil.
type DispatchResult struct {
	OK        bool             `json:"ok"`
	ID        string           `json:"id,omitempty"`
	DryRun    bool             `json:"dryRun,omitempty"`
	Summary   *DispatchSummary `json:"summary,omitempty"`
	Accepted  []string         `json:"accepted,omitempty"`
	Rejected  []string         `json:"rejected,omitempty"`
	MessageID string           `json:"messageId,omitempty"`
	ToCount   int              `json:"toCount"`
	BccCount  int              `json:"bccCount"`
	Mode      string           `json:"mode"`
}

// DispatchSummary describes what a dry run would have sent.
type DispatchSummary struct {
	ID       string `json:"id"`
	ToCount  int    `json:"toCount"`
	BccCount int    `json:"bccCount"`
	Subject  string `json:"subject"`
	Mode     string `json:"mode"`
}

// ScheduledJob is a snapshot row for the schedule listing endpoint.
type ScheduledJob struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Frequency  string    `json:"frequency"`
	LastSentAt time.Time `json:"lastSentAt,omitempty"`
	Recipients int       `json:"recipients"`
	TemplateID string    `json:"templateId,omitempty"`
}
