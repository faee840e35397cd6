// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Newsletter.TickInterval != 30*time.Second {
		t.Errorf("default tick interval = %s, want 30s", cfg.Newsletter.TickInterval)
	}
	if cfg.Newsletter.SuppressionWindow != 2*time.Minute {
		t.Errorf("default suppression window = %s, want 2m", cfg.Newsletter.SuppressionWindow)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty data dir", func(c *Config) { c.Data.Dir = "" }},
		{"lookback too large", func(c *Config) { c.Newsletter.LookbackDays = 91 }},
		{"lookback zero", func(c *Config) { c.Newsletter.LookbackDays = 0 }},
		{"tick too short", func(c *Config) { c.Newsletter.TickInterval = 100 * time.Millisecond }},
		{"bad plex scheme", func(c *Config) { c.Plex.URL = "ftp://plex.local" }},
		{"bad tautulli url", func(c *Config) { c.Tautulli.URL = "://broken" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSMTPConfigured(t *testing.T) {
	s := SMTPConfig{}
	if s.Configured() {
		t.Error("empty SMTP config should not report configured")
	}
	s = SMTPConfig{Host: "mail.example.com", Port: 587, FromAddress: "digest@example.com"}
	if !s.Configured() {
		t.Error("complete SMTP config should report configured")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PLEXDIGEST_SMTP_HOST", "smtp.host"},
		{"PLEXDIGEST_SMTP_FROM_ADDRESS", "smtp.from_address"},
		{"PLEXDIGEST_NEWSLETTER_LOOKBACK_DAYS", "newsletter.lookback_days"},
		{"PLEXDIGEST_TAUTULLI_API_KEY", "tautulli.api_key"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.input); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadWithYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
smtp:
  host: mail.example.com
  port: 587
  from_address: digest@example.com
newsletter:
  lookback_days: 14
  blocked_series:
    - "Jeopardy"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Newsletter.LookbackDays != 14 {
		t.Errorf("lookback = %d, want 14", cfg.Newsletter.LookbackDays)
	}
	if len(cfg.Newsletter.BlockedSeries) != 1 || cfg.Newsletter.BlockedSeries[0] != "Jeopardy" {
		t.Errorf("blocked series = %v", cfg.Newsletter.BlockedSeries)
	}
	// Defaults survive under file overrides
	if cfg.Newsletter.TickInterval != 30*time.Second {
		t.Errorf("tick interval = %s, want default 30s", cfg.Newsletter.TickInterval)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("PLEXDIGEST_SERVER_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999 from env", cfg.Server.Port)
	}
}
