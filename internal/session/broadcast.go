// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

// DefaultBacklog is the nominal per-subscriber channel capacity.
const DefaultBacklog = 100

// Broadcaster fans one session's outbound events out to any number of
// concurrent subscribers. Sends never block on a slow or absent
// subscriber: a full subscriber channel drops its oldest buffered event
// to make room for the newest one. This generalizes the teacher's
// non-blocking select/default drop (internal/events/memory.go's Publish,
// internal/claude/manager.go's Session.fanOut) from drop-newest to
// drop-oldest, since session_state/session_idle/session_pending are
// level-triggered refreshes a client can re-request, while stale ones are
// worth less than the latest.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[chan Event]struct{}
	capacity int
	closed   bool
}

// NewBroadcaster constructs a Broadcaster with the given per-subscriber
// backlog capacity.
func NewBroadcaster(capacity int) *Broadcaster {
	return &Broadcaster{
		subs:     make(map[chan Event]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber and returns its channel. Dropping a
// subscription (never reading, never calling Unsubscribe) is silent and
// non-affecting for the broadcaster's producer.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.capacity)
	b.mu.Lock()
	if b.closed {
		// The session already ended; hand back an already-closed channel so
		// a late attacher observes termination instead of hanging.
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber so Publish stops retaining events for
// it. It does not close ch; the caller owns that if it cares.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends ev to every current subscriber, preserving producer order
// per subscriber and dropping the oldest queued event for any subscriber
// that is full.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// CloseAll closes every current subscriber channel, e.g. after the
// terminal session_ended event has been published and no further sends
// will occur.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
