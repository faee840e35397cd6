// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/plexdigest/config.yaml",
	"/etc/plexdigest/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "PLEXDIGEST_CONFIG"

// envPrefix namespaces the environment variable layer.
// PLEXDIGEST_SMTP_HOST -> smtp.host, PLEXDIGEST_NEWSLETTER_LOOKBACK_DAYS -> newsletter.lookback_days.
const envPrefix = "PLEXDIGEST_"

// defaultConfig returns the default values applied before file and env layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8480,
			PublicBaseURL: "http://localhost:8480",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			RateLimit:     120,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Data: DataConfig{
			Dir: "/data/plexdigest",
		},
		Plex: PlexConfig{
			Timeout:           8 * time.Second,
			RequestsPerSecond: 5,
		},
		Tautulli: TautulliConfig{
			Timeout: 8 * time.Second,
		},
		SMTP: SMTPConfig{
			FromName: "Plexdigest",
			UseTLS:   true,
		},
		Newsletter: NewsletterConfig{
			LookbackDays:      7,
			TickInterval:      30 * time.Second,
			SuppressionWindow: 2 * time.Minute,
			SchedulerEnabled:  true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file path, honoring the env override.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc converts environment variable names to koanf paths.
// The first underscore separates the section from the key:
// PLEXDIGEST_SMTP_FROM_ADDRESS -> smtp.from_address.
func envTransformFunc(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	return section + "." + key
}
