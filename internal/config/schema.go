// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading and environment overrides.
package config

// Config is the root configuration structure for agentgate.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Session SessionConfig `json:"session"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig configures the HTTP/websocket listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SessionConfig configures the agentic CLI child process and its session
// actor timers.
type SessionConfig struct {
	// AgentCommand is argv[0] of the agentic CLI to spawn per session.
	AgentCommand string `json:"agent_command"`
	// AgentArgs are additional arguments passed to AgentCommand.
	AgentArgs []string `json:"agent_args"`
	// IdleSeconds is the quiescence threshold after which a session's child
	// is terminated. Must be a multiple of the 5s probe cadence in spirit;
	// it is rounded up to the nearest tick internally.
	IdleSeconds int `json:"idle_seconds"`
	// TranscriptReadyTimeoutSeconds bounds how long the actor waits for the
	// child to create its transcript file before giving up.
	TranscriptReadyTimeoutSeconds int `json:"transcript_ready_timeout_seconds"`
	// FocusNudge toggles sending the ESC [ I focus-in sequence on every
	// transcript-ready poll tick.
	FocusNudge *bool `json:"focus_nudge"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `json:"level"` // "debug", "info", "warn", "error"
}

// IsFocusNudgeEnabled returns whether the focus-in nudge quirk is active,
// defaulting to enabled when unset.
func (s *SessionConfig) IsFocusNudgeEnabled() bool {
	if s.FocusNudge == nil {
		return true
	}
	return *s.FocusNudge
}
