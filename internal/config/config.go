// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads daemon configuration from YAML files and
// environment variables. Environment variables take precedence over
// file values, which take precedence over defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration.
type Config struct {
	// Listen is the address the daemon binds to.
	// Environment: STUDIO_LISTEN
	// Default: 127.0.0.1:5002
	Listen string `yaml:"listen,omitempty"`

	// Security configures authentication, rate limiting and CORS.
	Security SecurityConfig `yaml:"security,omitempty"`

	// Persistence configures the SQLite execution store.
	Persistence PersistenceConfig `yaml:"persistence,omitempty"`

	// Log configures daemon logging.
	Log LogConfig `yaml:"log,omitempty"`

	// Tracing configures span export.
	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// SecurityConfig configures request authentication and throttling.
type SecurityConfig struct {
	// APIKey, when set, is required on every request via the X-API-Key
	// header or a bearer token.
	// Environment: STUDIO_API_KEY
	APIKey string `yaml:"api_key,omitempty"`

	// RateLimitRequests is the number of requests allowed per window.
	// Zero disables rate limiting.
	// Environment: STUDIO_RATE_LIMIT_REQUESTS
	RateLimitRequests int `yaml:"rate_limit_requests,omitempty"`

	// RateLimitWindowMS is the rate limit window in milliseconds.
	// Environment: STUDIO_RATE_LIMIT_WINDOW_MS
	// Default: 60000
	RateLimitWindowMS int64 `yaml:"rate_limit_window_ms,omitempty"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty disables CORS headers.
	// Environment: STUDIO_CORS_ORIGINS (comma-separated)
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// PersistenceConfig configures the SQLite execution store.
type PersistenceConfig struct {
	// Path is the SQLite database file. Empty runs the daemon
	// memory-only.
	// Environment: STUDIO_DB_PATH
	Path string `yaml:"path,omitempty"`

	// CleanupDays is the retention window for terminal workflows.
	// Zero disables pruning.
	// Environment: STUDIO_CLEANUP_DAYS
	CleanupDays int `yaml:"cleanup_days,omitempty"`
}

// LogConfig configures daemon logging.
type LogConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	// Environment: STUDIO_LOG_LEVEL
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is the log format (text, json).
	// Environment: STUDIO_LOG_FORMAT
	// Default: text
	Format string `yaml:"format,omitempty"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Exporter selects the span exporter (none, stdout, otlp-http).
	// Environment: STUDIO_TRACE_EXPORTER
	// Default: none
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Environment: STUDIO_TRACE_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: "127.0.0.1:5002",
		Security: SecurityConfig{
			RateLimitWindowMS: 60000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// If configPath is empty, the default config file is used when present.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		if path, err := ConfigPath(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				configPath = path
			}
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &enginerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Fill zero values so minimal configs work without specifying
	// every field.
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	if c.Security.RateLimitWindowMS == 0 {
		c.Security.RateLimitWindowMS = defaults.Security.RateLimitWindowMS
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("STUDIO_LISTEN"); val != "" {
		c.Listen = val
	}
	if val := os.Getenv("STUDIO_API_KEY"); val != "" {
		c.Security.APIKey = val
	}
	if val := os.Getenv("STUDIO_RATE_LIMIT_REQUESTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Security.RateLimitRequests = n
		}
	}
	if val := os.Getenv("STUDIO_RATE_LIMIT_WINDOW_MS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Security.RateLimitWindowMS = n
		}
	}
	if val := os.Getenv("STUDIO_CORS_ORIGINS"); val != "" {
		origins := strings.Split(val, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.Security.CORSOrigins = origins
	}
	if val := os.Getenv("STUDIO_DB_PATH"); val != "" {
		c.Persistence.Path = val
	}
	if val := os.Getenv("STUDIO_CLEANUP_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Persistence.CleanupDays = n
		}
	}
	if val := os.Getenv("STUDIO_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("STUDIO_LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("STUDIO_TRACE_EXPORTER"); val != "" {
		c.Tracing.Exporter = val
	}
	if val := os.Getenv("STUDIO_TRACE_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

var validExporters = map[string]bool{
	"none":      true,
	"stdout":    true,
	"console":   true,
	"otlp":      true,
	"otlp-http": true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return &enginerrors.ConfigError{
			Key:    "listen",
			Reason: fmt.Sprintf("%q is not a valid host:port address", c.Listen),
			Cause:  err,
		}
	}
	if c.Security.RateLimitRequests < 0 {
		return &enginerrors.ConfigError{
			Key:    "security.rate_limit_requests",
			Reason: "must not be negative",
		}
	}
	if c.Security.RateLimitWindowMS < 0 {
		return &enginerrors.ConfigError{
			Key:    "security.rate_limit_window_ms",
			Reason: "must not be negative",
		}
	}
	if c.Persistence.CleanupDays < 0 {
		return &enginerrors.ConfigError{
			Key:    "persistence.cleanup_days",
			Reason: "must not be negative",
		}
	}
	if !validLogLevels[c.Log.Level] {
		return &enginerrors.ConfigError{
			Key:    "log.level",
			Reason: fmt.Sprintf("unknown level %q, expected trace, debug, info, warn or error", c.Log.Level),
		}
	}
	if !validLogFormats[c.Log.Format] {
		return &enginerrors.ConfigError{
			Key:    "log.format",
			Reason: fmt.Sprintf("unknown format %q, expected text or json", c.Log.Format),
		}
	}
	if !validExporters[c.Tracing.Exporter] {
		return &enginerrors.ConfigError{
			Key:    "tracing.exporter",
			Reason: fmt.Sprintf("unknown exporter %q, expected none, stdout or otlp-http", c.Tracing.Exporter),
		}
	}
	return nil
}
