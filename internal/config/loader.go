// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map.
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety).
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config from path (if non-empty) with defaults
// applied, then layers environment variable overrides on top.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if path != "" {
		loaded, err := l.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for agentgate.hjson first, then agentgate.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"agentgate.hjson",
		"agentgate.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for agentgate.hjson, agentgate.json)")
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Session.AgentCommand == "" {
		cfg.Session.AgentCommand = "claude"
	}
	if cfg.Session.IdleSeconds == 0 {
		cfg.Session.IdleSeconds = 120
	}
	if cfg.Session.TranscriptReadyTimeoutSeconds == 0 {
		cfg.Session.TranscriptReadyTimeoutSeconds = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides layers environment variables named per SPEC_FULL.md §6
// on top of whatever the file (or defaults) already set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTGATE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("AGENTGATE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("AGENTGATE_IDLE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.IdleSeconds = n
		}
	}
	if v := os.Getenv("AGENTGATE_TRANSCRIPT_READY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.TranscriptReadyTimeoutSeconds = n
		}
	}
	if v := os.Getenv("AGENTGATE_AGENT_COMMAND"); v != "" {
		cfg.Session.AgentCommand = v
	}
	if v := os.Getenv("AGENTGATE_FOCUS_NUDGE"); v != "" {
		enabled := v != "0" && v != "false"
		cfg.Session.FocusNudge = &enabled
	}
}
