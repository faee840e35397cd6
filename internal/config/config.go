// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package config loads and validates application configuration.
//
// Configuration is layered: struct defaults, then an optional YAML file,
// then PLEXDIGEST_-prefixed environment variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for the digest service.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Data       DataConfig       `koanf:"data"`
	Plex       PlexConfig       `koanf:"plex"`
	Tautulli   TautulliConfig   `koanf:"tautulli"`
	SMTP       SMTPConfig       `koanf:"smtp"`
	Newsletter NewsletterConfig `koanf:"newsletter"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// PublicBaseURL is the externally reachable base URL of this service.
	// It is embedded in rendered newsletters for the image proxy, so it must
	// be resolvable from the recipients' mail clients.
	PublicBaseURL string `koanf:"public_base_url"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RateLimit is the per-IP request limit per minute for the API.
	RateLimit int `koanf:"rate_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// DataConfig holds persistence settings.
type DataConfig struct {
	// Dir is the BadgerDB directory holding newsletters, templates,
	// recipients, and the owner recommendation.
	Dir string `koanf:"dir"`
}

// PlexConfig holds Plex Media Server connection settings.
type PlexConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`

	// Timeout bounds each Plex request.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps outbound request rate against the server.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// TautulliConfig holds Tautulli connection settings.
type TautulliConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	FromAddress string `koanf:"from_address"`
	FromName    string `koanf:"from_name"`
	UseTLS      bool   `koanf:"use_tls"`
}

// Configured reports whether the transport has the minimum settings for a send.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != 0 && s.FromAddress != ""
}

// NewsletterConfig holds digest pipeline settings.
type NewsletterConfig struct {
	// LookbackDays is the default statistics window when neither the
	// newsletter nor its template overrides it.
	LookbackDays int `koanf:"lookback_days"`

	// TickInterval is the scheduler poll period.
	TickInterval time.Duration `koanf:"tick_interval"`

	// SuppressionWindow prevents a newsletter from firing twice inside
	// the same due minute.
	SuppressionWindow time.Duration `koanf:"suppression_window"`

	// BlockedSeries lists series titles dropped from the recent-episodes
	// card (case-insensitive exact match, trailing "!" ignored).
	BlockedSeries []string `koanf:"blocked_series"`

	// SchedulerEnabled controls whether the scheduler loop runs.
	SchedulerEnabled bool `koanf:"scheduler_enabled"`
}

// Validate checks the configuration for contradictions and bad values.
// Plex, Tautulli, and SMTP settings are optional at startup; operations that
// need them fail at call time with a configuration error instead.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	if c.Newsletter.LookbackDays < 1 || c.Newsletter.LookbackDays > 90 {
		return fmt.Errorf("newsletter.lookback_days must be 1-90, got %d", c.Newsletter.LookbackDays)
	}
	if c.Newsletter.TickInterval < time.Second {
		return fmt.Errorf("newsletter.tick_interval must be at least 1s, got %s", c.Newsletter.TickInterval)
	}
	if err := validateOptionalURL("plex.url", c.Plex.URL); err != nil {
		return err
	}
	if err := validateOptionalURL("tautulli.url", c.Tautulli.URL); err != nil {
		return err
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be 0-65535, got %d", c.SMTP.Port)
	}
	return nil
}

func validateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	return nil
}

// TrimmedPlexURL returns the Plex base URL without trailing slashes.
func (c *Config) TrimmedPlexURL() string {
	return strings.TrimRight(c.Plex.URL, "/")
}

// TrimmedTautulliURL returns the Tautulli base URL without trailing slashes.
func (c *Config) TrimmedTautulliURL() string {
	return strings.TrimRight(c.Tautulli.URL, "/")
}
