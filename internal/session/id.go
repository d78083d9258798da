// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a canonical session identifier. Two representations round-trip:
// textual (String) and binary (MarshalBinary/UnmarshalBinary); a parse
// failure surfaces as an InvalidInput error to the caller.
type ID struct {
	uuid uuid.UUID
}

// ParseID parses s as a UUID. A malformed string is the one and only source
// of an InvalidInput error for session identifiers.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return ID{uuid: u}, nil
}

// NewID generates a fresh random session id. Not used on the attach path
// (the client supplies the id) but kept for tests and internal bookkeeping.
func NewID() ID {
	return ID{uuid: uuid.New()}
}

func (id ID) String() string {
	return id.uuid.String()
}

// MarshalBinary returns the 16-byte binary form of the id.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.uuid.MarshalBinary()
}

// UnmarshalBinary parses the 16-byte binary form of the id.
func (id *ID) UnmarshalBinary(data []byte) error {
	return id.uuid.UnmarshalBinary(data)
}

// MarshalText implements encoding.TextMarshaler so ID round-trips through JSON.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.uuid.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ID round-trips through JSON.
func (id *ID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", string(text), err)
	}
	id.uuid = u
	return nil
}
