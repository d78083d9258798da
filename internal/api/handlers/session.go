// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/wingedpig/agentgate/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SessionHandler serves the websocket attach surface and the synchronous
// request/response surface over a session.Gateway.
type SessionHandler struct {
	gateway *session.Gateway
}

// NewSessionHandler wraps gateway.
func NewSessionHandler(gateway *session.Gateway) *SessionHandler {
	return &SessionHandler{gateway: gateway}
}

// WebSocket attaches the caller to the session named by the {uuid} route
// var, spawning it if it does not yet exist, and streams every event the
// session publishes — including raw pty output — until the connection
// closes.
func (h *SessionHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	sub, err := h.gateway.Attach(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(b []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, b)
	}

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	readCh := make(chan session.Command, 10)
	wsClosed := make(chan struct{})
	go func() {
		defer close(wsClosed)
		for {
			_, msgBytes, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd, err := session.ParseCommand(msgBytes)
			if err != nil {
				continue
			}
			readCh <- cmd
		}
	}()

	for {
		select {
		case cmd := <-readCh:
			sub.Inbound <- cmd

		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			b, err := session.Encode(ev)
			if err != nil {
				continue
			}
			if writeJSON(b) != nil {
				return
			}

		case <-wsClosed:
			return
		}
	}
}

// Input is the synchronous request/response surface: it attaches (or
// reuses) the session, sends exactly one command, and replies with the
// first non-pty-output event the session publishes in response.
func (h *SessionHandler) Input(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "failed to read body: "+err.Error())
		return
	}

	cmd, err := session.ParseCommand(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	ev, err := h.gateway.Request(uuid, cmd)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	b, err := session.Encode(ev)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, json.RawMessage(b))
}

// List reports every known session id together with its last-observed
// state, for clients that want a cold-start overview without attaching to
// any one session.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.gateway.ListSessions())
}
