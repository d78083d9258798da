// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

// Timeout is a synthetic event fed through the StateMachine on the two
// pty-read timeout regimes, rather than mutating state out-of-band. This
// keeps the state machine the single source of truth and trivially
// unit-testable.
type Timeout int

const (
	// WaitForUserInput fires after 5s of pty-read silence while Idle. Fed
	// through ApplyTimeout it promotes Output or StopUseTool to Idle and is
	// a no-op for Idle itself.
	WaitForUserInput Timeout = iota
	// WaitForUserInputBeforeTool fires after 5s of pty-read silence while
	// PreUseTool, flipping IsPending.
	WaitForUserInputBeforeTool
)

// NewMachine returns the initial state: Idle.
func NewMachine() State {
	return State{Kind: Idle}
}

// Apply feeds one transcript record through the state machine, returning
// the new state and whether it differs from the input (used by the
// SessionActor to decide whether to re-broadcast). Unlisted (state,record)
// pairs — including Uncaught records and anything the record predicates
// don't recognize — are no-ops.
func Apply(s State, rec Record) (State, bool) {
	switch s.Kind {
	case Idle, StopUseTool:
		if id, name, input, ok := rec.IsToolRequest(); ok {
			return State{
				Kind:     PreUseTool,
				Requests: []ToolRequest{{ID: id, Name: name, Input: input, Done: false}},
			}, true
		}
		if text, thinking, ok := rec.IsOutput(); ok {
			return State{Kind: Output, Text: text, IsThinking: thinking}, true
		}
		if rec.IsStop() {
			if s.Kind == Idle {
				return s, false
			}
			return State{Kind: Idle}, true
		}
		return s, false

	case Output:
		if rec.IsStop() {
			return State{Kind: Idle}, true
		}
		if id, name, input, ok := rec.IsToolRequest(); ok {
			return State{
				Kind:     PreUseTool,
				Requests: []ToolRequest{{ID: id, Name: name, Input: input, Done: false}},
			}, true
		}
		if text, thinking, ok := rec.IsOutput(); ok {
			return State{Kind: Output, Text: text, IsThinking: thinking}, true
		}
		return s, false

	case PreUseTool:
		if id, isError := rec.IsToolResult(); id != "" {
			if isError {
				return State{Kind: StopUseTool}, true
			}
			next := s.Clone()
			matched := false
			allDone := true
			for i := range next.Requests {
				if next.Requests[i].ID == id && !next.Requests[i].Done {
					next.Requests[i].Done = true
					matched = true
				}
				if !next.Requests[i].Done {
					allDone = false
				}
			}
			if !matched {
				return s, false
			}
			if allDone {
				return State{Kind: StopUseTool}, true
			}
			return next, true
		}
		if rec.IsStop() {
			return State{Kind: StopUseTool}, true
		}
		if id, name, input, ok := rec.IsToolRequest(); ok {
			next := s.Clone()
			next.Requests = append(next.Requests, ToolRequest{ID: id, Name: name, Input: input, Done: false})
			return next, true
		}
		return s, false

	default:
		return s, false
	}
}

// ApplyTimeout feeds one of the two synthetic timeout events through the
// state machine.
func ApplyTimeout(s State, t Timeout) (State, bool) {
	switch t {
	case WaitForUserInput:
		if s.Kind == Idle || s.Kind == StopUseTool {
			if s.Kind == Idle {
				return s, false
			}
			return State{Kind: Idle}, true
		}
		if s.Kind == Output {
			return State{Kind: Idle}, true
		}
		return s, false

	case WaitForUserInputBeforeTool:
		if s.Kind != PreUseTool || s.IsPending {
			return s, false
		}
		next := s.Clone()
		next.IsPending = true
		return next, true

	default:
		return s, false
	}
}
