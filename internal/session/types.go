// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
)

// ToolRequest is one tool invocation declared by the agent and not yet
// acknowledged. Order within a PreUseTool state's Requests slice matches
// transcript order; ID is the agent-assigned call identifier.
type ToolRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
	Done  bool            `json:"done"`
}

// Kind tags the variant of a State.
type Kind int

const (
	Idle Kind = iota
	Output
	PreUseTool
	StopUseTool
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Output:
		return "output"
	case PreUseTool:
		return "pre_use_tool"
	case StopUseTool:
		return "stop_use_tool"
	default:
		return "unknown"
	}
}

// State is the transcript-derived classification of what the agent is
// currently doing. Exactly one of its payload fields is meaningful,
// selected by Kind.
type State struct {
	Kind Kind

	// Output payload.
	Text       string
	IsThinking bool

	// PreUseTool payload.
	Requests  []ToolRequest
	IsPending bool
}

// Clone returns a deep-enough copy safe to hand to a broadcaster; Requests
// is a distinct backing slice so later in-place mutation by the state
// machine never races with earlier snapshots held by slow subscribers.
func (s State) Clone() State {
	out := s
	if len(s.Requests) > 0 {
		out.Requests = append([]ToolRequest(nil), s.Requests...)
	}
	return out
}

// InputAvailable reports whether free-text input may be sent to the agent
// in this state.
func (s State) InputAvailable() bool {
	switch s.Kind {
	case Idle, StopUseTool:
		return true
	case Output:
		return !s.IsThinking
	default:
		return false
	}
}

// CancelAvailable reports whether Cancel (ESC) is a meaningful action in
// this state.
func (s State) CancelAvailable() bool {
	switch s.Kind {
	case PreUseTool:
		return true
	case Output:
		return s.IsThinking
	default:
		return false
	}
}

// ConfirmAvailable reports whether Confirm (enter) is a meaningful action
// in this state: either input is already available, or the session is a
// pending tool-use confirmation.
func (s State) ConfirmAvailable() bool {
	if s.InputAvailable() {
		return true
	}
	return s.Kind == PreUseTool && s.IsPending
}

// LatestToolRequest returns the most recently appended tool request, or
// the zero value and false if there are none.
func (s State) LatestToolRequest() (ToolRequest, bool) {
	if s.Kind != PreUseTool || len(s.Requests) == 0 {
		return ToolRequest{}, false
	}
	return s.Requests[len(s.Requests)-1], true
}

// contentBlock is one element of a transcript message's content array, as
// emitted by the agentic CLI: a discriminated union over text, thinking,
// tool_use, and tool_result blocks.
type contentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type transcriptMessage struct {
	Role       string         `json:"role,omitempty"`
	Content    []contentBlock `json:"content,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
}

// Record is a single line of the agent's append-only transcript, parsed
// into the fields the StateMachine consults. Every other field present in
// the raw line is dropped; RawType/RawLine are kept for logging only.
type Record struct {
	RawType string
	RawLine string

	message       transcriptMessage
	hasMessage    bool
	systemStopped bool
}

// ParseRecord parses one transcript line into a Record. A malformed line
// does not return an error: it is returned as an Uncaught record so the
// caller can log it and move on, matching the transcript's forward
// tolerance for partial/garbled trailing lines.
func ParseRecord(line string) Record {
	var raw struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
		// Some system records signal a stop hook without a nested message.
		StopReason string `json:"stop_reason,omitempty"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{RawType: "uncaught", RawLine: line}
	}

	rec := Record{RawType: raw.Type, RawLine: line}
	if raw.Type == "system" && raw.StopReason != "" {
		rec.systemStopped = true
	}
	if len(raw.Message) > 0 {
		var msg transcriptMessage
		if err := json.Unmarshal(raw.Message, &msg); err == nil {
			rec.message = msg
			rec.hasMessage = true
		}
	}
	return rec
}

// IsStop reports whether the record marks a full stop: an assistant
// message with a non-empty stop reason, or an equivalent system stop-hook
// record.
func (r Record) IsStop() bool {
	if r.systemStopped {
		return true
	}
	return r.hasMessage && r.message.Role == "assistant" && r.message.StopReason != ""
}

// IsToolRequest returns the first tool_use block in an assistant record,
// if any.
func (r Record) IsToolRequest() (id, name string, input json.RawMessage, ok bool) {
	if !r.hasMessage || r.message.Role != "assistant" {
		return "", "", nil, false
	}
	for _, b := range r.message.Content {
		if b.Type == "tool_use" {
			return b.ID, b.Name, b.Input, true
		}
	}
	return "", "", nil, false
}

// IsToolResult returns the tool_use_id and error flag of a tool_result
// block in a user message; an empty id means "not a tool result".
func (r Record) IsToolResult() (id string, isError bool) {
	if !r.hasMessage || r.message.Role != "user" {
		return "", false
	}
	for _, b := range r.message.Content {
		if b.Type == "tool_result" {
			return b.ToolUseID, b.IsError
		}
	}
	return "", false
}

// IsOutput returns the text of an output block (assistant text or
// thinking), if the record carries one.
func (r Record) IsOutput() (text string, isThinking bool, ok bool) {
	if !r.hasMessage || r.message.Role != "assistant" {
		return "", false, false
	}
	for _, b := range r.message.Content {
		switch b.Type {
		case "text":
			return b.Text, false, true
		case "thinking":
			return b.Thinking, true, true
		}
	}
	return "", false, false
}
