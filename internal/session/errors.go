// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

// ErrorCode is the closed set of error kinds a session can report to its
// subscribers. These cross the wire as JSON on session_error events, not
// as Go errors.
type ErrorCode string

const (
	ErrSessionNotFound       ErrorCode = "session_not_found"
	ErrInvalidInput          ErrorCode = "invalid_input"
	ErrInvalidInputForState  ErrorCode = "invalid_input_for_state"
	ErrInternalError         ErrorCode = "internal_error"
)
