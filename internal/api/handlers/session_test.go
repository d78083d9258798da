// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wingedpig/agentgate/internal/session"
)

// newFakeAgentScript writes a shell script that echoes the transcript path
// it was given as its first line of pty output, then idles, matching the
// real agentic CLI's documented first-line contract.
func newFakeAgentScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "agent.sh")
	content := "#!/bin/sh\necho \"$1\"\ntouch \"$1\"\nwhile true; do sleep 3600; done\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0755))
	return script
}

func newTestSessionHandler(t *testing.T) (*SessionHandler, string) {
	t.Helper()
	tmpDir := t.TempDir()
	script := newFakeAgentScript(t)
	transcriptPath := filepath.Join(tmpDir, "transcript.jsonl")

	newConfig := func(sessionID string) session.Config {
		return session.Config{
			AgentCommand:           "/bin/sh",
			AgentArgs:              []string{script, transcriptPath},
			Rows:                   24,
			Cols:                   80,
			IdleSeconds:            10,
			TranscriptReadyTimeout: 2 * time.Second,
			FocusNudge:             false,
		}
	}
	gw := session.NewGateway(session.NewManager(newConfig))
	return NewSessionHandler(gw), transcriptPath
}

func TestSessionHandler_List_Empty(t *testing.T) {
	handler, _ := newTestSessionHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/agent/sessions", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	summaries, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Empty(t, summaries)
}

func TestSessionHandler_Input_BadBody(t *testing.T) {
	handler, _ := newTestSessionHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/agent/sessions/x/input", strings.NewReader("not json"))
	req = mux.SetURLVars(req, map[string]string{"uuid": "11111111-1111-1111-1111-111111111111"})
	rec := httptest.NewRecorder()

	handler.Input(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Input_ColdCurrentState(t *testing.T) {
	handler, _ := newTestSessionHandler(t)

	body := strings.NewReader(`{"type":"CurrentState"}`)
	req := httptest.NewRequest("POST", "/api/v1/agent/sessions/x/input", body)
	req = mux.SetURLVars(req, map[string]string{"uuid": "22222222-2222-2222-2222-222222222222"})
	rec := httptest.NewRecorder()

	handler.Input(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "session_error", data["type"])
	assert.Equal(t, "session_not_found", data["error_code"])
}

func TestSessionHandler_WebSocket_RoundTrip(t *testing.T) {
	handler, transcriptPath := newTestSessionHandler(t)

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/agent/sessions/{uuid}/ws", handler.WebSocket)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/agent/sessions/33333333-3333-3333-3333-333333333333/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","input":"hi"}`)))

	require.Eventually(t, func() bool {
		_, err := os.Stat(transcriptPath)
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)

	f, err := os.OpenFile(transcriptPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hello back"}]}}` + "\n")
	require.NoError(t, err)
	f.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &env))
		if env["type"] == "session_output" {
			assert.Equal(t, "hello back", env["output"])
			return
		}
	}
}

func TestSessionHandler_WebSocket_InvalidUUID(t *testing.T) {
	handler, _ := newTestSessionHandler(t)

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/agent/sessions/{uuid}/ws", handler.WebSocket)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := fmt.Sprintf("ws%s/api/v1/agent/sessions/not-a-uuid/ws", strings.TrimPrefix(server.URL, "http"))
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
