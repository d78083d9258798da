// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import "encoding/json"

// StateJSON is the wire shape of a State snapshot: §3's tagged variant
// with a "state" discriminator.
type StateJSON struct {
	State      string          `json:"state"`
	Text       string          `json:"text,omitempty"`
	IsThinking bool            `json:"is_thinking,omitempty"`
	Requests   []ToolRequest   `json:"requests,omitempty"`
	IsPending  bool            `json:"is_pending,omitempty"`
}

// NewStateJSON converts a State into its wire representation.
func NewStateJSON(s State) StateJSON {
	return StateJSON{
		State:      s.Kind.String(),
		Text:       s.Text,
		IsThinking: s.IsThinking,
		Requests:   s.Requests,
		IsPending:  s.IsPending,
	}
}

// Event is implemented by every outbound event message. EventType matches
// the "type" discriminator the gateway's JSON encoding uses.
type Event interface {
	EventType() string
}

type PtyOutputEvent struct {
	Output string `json:"output"`
}

func (PtyOutputEvent) EventType() string { return "session_pty_output" }

type OutputEvent struct {
	Output     string `json:"output"`
	IsThinking bool   `json:"is_thinking"`
}

func (OutputEvent) EventType() string { return "session_output" }

type RunningEvent struct {
	SessionID string `json:"session_id"`
}

func (RunningEvent) EventType() string { return "session_running" }

type IdleEvent struct {
	SessionID string `json:"session_id"`
}

func (IdleEvent) EventType() string { return "session_idle" }

type PendingEvent struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
}

func (PendingEvent) EventType() string { return "session_pending" }

type ToolRequestEvent struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
}

func (ToolRequestEvent) EventType() string { return "session_tool_request" }

type StateEvent struct {
	SessionID    string    `json:"session_id"`
	CurrentState StateJSON `json:"current_state"`
}

func (StateEvent) EventType() string { return "session_state" }

type EndedEvent struct {
	SessionID string `json:"session_id"`
}

func (EndedEvent) EventType() string { return "session_ended" }

type ErrorEvent struct {
	SessionID   string    `json:"session_id,omitempty"`
	ErrorCode   ErrorCode `json:"error_code"`
	Message     string    `json:"message,omitempty"`
	ErrorState  string    `json:"error_state,omitempty"`
	ErrorInput  string    `json:"error_input,omitempty"`
}

func (ErrorEvent) EventType() string { return "session_error" }

// Envelope wraps an Event with its "type" discriminator for marshaling —
// the Event implementations above only carry their payload fields.
type Envelope struct {
	Type string `json:"type"`
	Event
}

// MarshalJSON flattens Envelope so the discriminator and payload fields
// sit at the same level, matching §6's outbound message shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Event)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["type"] = mustMarshal(e.Type)
	return json.Marshal(fields)
}

func mustMarshal(v string) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Encode wraps ev in its envelope and marshals it to JSON bytes, ready to
// write to a websocket frame.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(Envelope{Type: ev.EventType(), Event: ev})
}
