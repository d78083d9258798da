// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import "fmt"

// Gateway is the thin adapter surface the HTTP/websocket layer consumes.
// It never touches a PtyChild or TranscriptReader directly; everything
// flows through the Manager.
type Gateway struct {
	manager *Manager
}

// NewGateway wraps manager.
func NewGateway(manager *Manager) *Gateway {
	return &Gateway{manager: manager}
}

// Subscription is what Attach hands back: an outbound event stream and an
// inbound command sender, both tolerant of zero readers/writers on the
// other end.
type Subscription struct {
	Events  <-chan Event
	Inbound chan<- Command

	cancel func()
}

// Close unregisters the subscription from its session's broadcaster. The
// session itself is unaffected; it keeps running for its other subscribers
// (or until its own idle timeout).
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Attach parses uuid and, on success, attaches to (or spawns) its
// session. A malformed uuid never reaches the Manager: it is the one
// source of an InvalidInput error at this layer.
func (g *Gateway) Attach(uuid string) (Subscription, error) {
	if _, err := ParseID(uuid); err != nil {
		return Subscription{}, fmt.Errorf("%s: %w", ErrInvalidInput, err)
	}
	sub, inbound, cancel := g.manager.Attach(uuid)
	return Subscription{Events: sub, Inbound: inbound, cancel: cancel}, nil
}

// ListSessions returns every currently-live session's id and last-known
// state, for the cold-start session-listing endpoint.
func (g *Gateway) ListSessions() []SessionSummary {
	return g.manager.ListSessions()
}

// Request attaches, sends cmd, then drains the subscription discarding
// session_pty_output events, returning the first non-pty-output event as
// the synchronous reply. The raw pty bytestream is only meaningful on the
// streaming surface.
func (g *Gateway) Request(uuid string, cmd Command) (Event, error) {
	sub, err := g.Attach(uuid)
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	sub.Inbound <- cmd
	for ev := range sub.Events {
		if _, isPtyOutput := ev.(PtyOutputEvent); isPtyOutput {
			continue
		}
		return ev, nil
	}
	return nil, fmt.Errorf("session %s: subscription closed before a reply arrived", uuid)
}
