// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"strings"
	"time"
)

// Config carries the knobs SessionManager passes down to Bootstrap for
// every new session.
type Config struct {
	AgentCommand string
	AgentArgs    []string
	Rows, Cols   int
	IdleSeconds  int
	TranscriptReadyTimeout time.Duration
	FocusNudge   bool
}

// readyBanner and confirmBanner are the known TUI prompts the bootstrap
// poll answers (a newline, an enter) whether or not Config.FocusNudge is
// set; FocusNudge gates only the focus-in escape written on each tick.
const (
	readyBanner   = "Welcome to"
	confirmBanner = "Yes,"
)

// Bootstrap spawns the agentic CLI for sessionID, forwards its pty output
// to out as it happens, derives the transcript path from the child's
// first line of output, and waits up to cfg's timeout for the
// TranscriptReader to find that file, writing a focus-in nudge once a
// second when cfg.FocusNudge is set. Attach proceeds whether or not the
// transcript ever appears — only a failed spawn, or a child that exits
// before its first output, is fatal.
func Bootstrap(sessionID string, out *Broadcaster, cfg Config) (*Actor, error) {
	child, err := Spawn(cfg.AgentCommand, cfg.AgentArgs, cfg.Rows, cfg.Cols, sessionID)
	if err != nil {
		return nil, fmt.Errorf("spawn agent: %w", err)
	}

	first, ok := <-child.Chunks()
	if !ok || first.eof {
		return nil, fmt.Errorf("agent exited before emitting its transcript path")
	}
	out.Publish(PtyOutputEvent{Output: first.text})
	path := strings.TrimSpace(firstLine(first.text))

	transcript := OpenTranscriptReader(path)

	timeout := cfg.TranscriptReadyTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// The welcome modal is cleared with a single newline; the banner text
	// can recur in later chunks and must not submit further empty prompts.
	clearedWelcome := false

waitLoop:
	for {
		select {
		case <-transcript.Ready():
			break waitLoop
		case <-deadline:
			break waitLoop
		case <-ticker.C:
			if cfg.FocusNudge {
				_ = child.WriteFocusIn()
			}
		case ch, ok := <-child.Chunks():
			if !ok || ch.eof {
				break waitLoop
			}
			out.Publish(PtyOutputEvent{Output: ch.text})
			switch {
			case strings.Contains(ch.text, readyBanner):
				if !clearedWelcome {
					clearedWelcome = true
					_ = child.Write([]byte("\n"))
				}
			case strings.Contains(ch.text, confirmBanner):
				_ = child.WriteEnter()
			}
		}
	}

	return NewActor(sessionID, child, transcript, nil, out, cfg.IdleSeconds), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
