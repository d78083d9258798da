// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeAgentScript writes a shell script that, each time it runs,
// appends a line to spawnLog (so tests can count spawns) and echoes the
// transcript path it was given as its first line of pty output before
// idling, matching the real agentic CLI's documented first-line contract.
func newFakeAgentScript(t *testing.T, spawnLog string) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "agent.sh")
	content := fmt.Sprintf(`#!/bin/sh
echo spawned >> %q
echo "$1"
touch "$1"
while true; do sleep 3600; done
`, spawnLog)
	require.NoError(t, os.WriteFile(script, []byte(content), 0755))
	return script
}

func newTestGateway(t *testing.T) (*Gateway, func() string, string) {
	t.Helper()
	tmpDir := t.TempDir()
	spawnLog := filepath.Join(tmpDir, "spawns.log")
	script := newFakeAgentScript(t, spawnLog)
	transcriptPath := filepath.Join(tmpDir, "transcript.jsonl")

	newConfig := func(sessionID string) Config {
		return Config{
			AgentCommand:           "/bin/sh",
			AgentArgs:              []string{script, transcriptPath},
			Rows:                   24,
			Cols:                   80,
			IdleSeconds:            10,
			TranscriptReadyTimeout: 2 * time.Second,
			FocusNudge:             false,
		}
	}
	mgr := NewManager(newConfig)
	gw := NewGateway(mgr)

	spawnCount := func() string {
		data, _ := os.ReadFile(spawnLog)
		return string(data)
	}
	return gw, spawnCount, transcriptPath
}

func appendTranscriptLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
}

func TestGateway_InvalidUUID(t *testing.T) {
	gw, spawnCount, _ := newTestGateway(t)
	_, err := gw.Attach("not-a-uuid")
	assert.Error(t, err)
	assert.Empty(t, spawnCount())
}

func TestGateway_CurrentStateColdMiss(t *testing.T) {
	gw, spawnCount, _ := newTestGateway(t)
	sub, err := gw.Attach("11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	sub.Inbound <- Command{Kind: CmdCurrentState}

	select {
	case ev := <-sub.Events:
		errEv, ok := ev.(ErrorEvent)
		require.True(t, ok)
		assert.Equal(t, ErrSessionNotFound, errEv.ErrorCode)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session_error")
	}
	assert.Empty(t, spawnCount(), "no child should have been spawned")
}

func TestGateway_FreshAttachRoundTrip(t *testing.T) {
	gw, _, transcriptPath := newTestGateway(t)
	id := "d284f444-9e56-4318-a472-bc18481b7793"

	sub, err := gw.Attach(id)
	require.NoError(t, err)

	sub.Inbound <- Command{Kind: CmdInput, Text: "hi"}

	// Wait for the transcript file to exist (the fake agent touches it on
	// spawn; the test then drives it directly).
	require.Eventually(t, func() bool {
		_, err := os.Stat(transcriptPath)
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)

	appendTranscriptLine(t, transcriptPath, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hello back"}]}}`)

	var gotOutput bool
	deadline := time.After(3 * time.Second)
	for !gotOutput {
		select {
		case ev := <-sub.Events:
			if out, ok := ev.(OutputEvent); ok {
				assert.Equal(t, "hello back", out.Output)
				assert.False(t, out.IsThinking)
				gotOutput = true
			}
			if errEv, ok := ev.(ErrorEvent); ok {
				t.Fatalf("unexpected session_error: %+v", errEv)
			}
		case <-deadline:
			t.Fatal("timed out waiting for session_output")
		}
	}
}

func TestGateway_ReattachIsIdempotent(t *testing.T) {
	gw, spawnCount, _ := newTestGateway(t)
	id := "22222222-2222-2222-2222-222222222222"

	sub1, err := gw.Attach(id)
	require.NoError(t, err)
	sub1.Inbound <- Command{Kind: CmdInput, Text: "hi"}

	require.Eventually(t, func() bool {
		return spawnCount() != ""
	}, 3*time.Second, 50*time.Millisecond)

	sub2, err := gw.Attach(id)
	require.NoError(t, err)
	assert.NotNil(t, sub2.Inbound)

	time.Sleep(200 * time.Millisecond)
	count := len(splitLines(spawnCount()))
	assert.Equal(t, 1, count, "re-attach must not spawn a second child")
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
