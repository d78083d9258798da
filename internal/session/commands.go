// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandKind tags an inbound command.
type CommandKind int

const (
	CmdCreateSession CommandKind = iota
	CmdCurrentState
	CmdInput
	CmdBytesInput
	CmdCancel
	CmdConfirm
	CmdSelect
)

// Command is one inbound message from a gateway client. Exactly one of
// Text/Bytes/Index is meaningful, selected by Kind.
type Command struct {
	Kind  CommandKind
	Text  string
	Bytes []byte
	Index int
}

// wireCommand mirrors the inbound JSON message shape in SPEC_FULL.md §6.
type wireCommand struct {
	Type  string `json:"type"`
	Input json.RawMessage `json:"input,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// ParseCommand decodes one inbound JSON message into a Command. A
// malformed envelope, unknown type, or wrongly-shaped payload is an
// InvalidInput error.
func ParseCommand(data []byte) (Command, error) {
	var wc wireCommand
	if err := json.Unmarshal(data, &wc); err != nil {
		return Command{}, fmt.Errorf("invalid command json: %w", err)
	}

	switch strings.ToLower(wc.Type) {
	case "createsession":
		return Command{Kind: CmdCreateSession}, nil

	case "currentstate", "get_current_state":
		return Command{Kind: CmdCurrentState}, nil

	case "input":
		var text string
		if len(wc.Input) > 0 {
			if err := json.Unmarshal(wc.Input, &text); err != nil {
				return Command{}, fmt.Errorf("invalid Input.input: %w", err)
			}
		}
		return Command{Kind: CmdInput, Text: text}, nil

	case "bytesinput":
		var nums []int
		if len(wc.Input) > 0 {
			if err := json.Unmarshal(wc.Input, &nums); err != nil {
				return Command{}, fmt.Errorf("invalid BytesInput.input: %w", err)
			}
		}
		b := make([]byte, len(nums))
		for i, n := range nums {
			b[i] = byte(n)
		}
		return Command{Kind: CmdBytesInput, Bytes: b}, nil

	case "cancel":
		return Command{Kind: CmdCancel}, nil

	case "confirm":
		return Command{Kind: CmdConfirm}, nil

	case "select":
		if wc.Index == nil || *wc.Index < 0 {
			return Command{}, fmt.Errorf("invalid Select.index")
		}
		return Command{Kind: CmdSelect, Index: *wc.Index}, nil

	default:
		return Command{}, fmt.Errorf("unknown command type %q", wc.Type)
	}
}
