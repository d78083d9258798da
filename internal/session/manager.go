// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

// Manager owns the SessionRegistry and is the single serializing point
// for attach requests: it runs as one goroutine reading off a single
// request channel, so two attaches for the same id can never race each
// other into spawning two children.
type Manager struct {
	requests     chan attachRequest
	listRequests chan chan []SessionSummary
	newConfig    func(sessionID string) Config

	registry map[string]*registryEntry
}

// SessionSummary is one row of the session-listing endpoint: an id and
// its most recently observed state.
type SessionSummary struct {
	ID    string    `json:"id"`
	State StateJSON `json:"state"`
}

type registryEntry struct {
	inbound     chan Command
	broadcaster *Broadcaster
	actor       *Actor
}

type attachRequest struct {
	id    string
	reply chan attachReply
}

// attachReply is what Gateway.Attach receives: a fresh subscription on
// the session's broadcaster, and the sender it should forward client
// commands onto.
type attachReply struct {
	sub     chan Event
	inbound chan Command
	// cancel unregisters sub from the session's broadcaster; calling it is
	// optional (dropping a subscription is silent) but stops the producer
	// retaining events for a reader that is gone.
	cancel func()
}

// NewManager constructs a Manager. newConfig supplies the per-session
// spawn configuration (agent command/args, idle seconds, transcript-ready
// timeout, focus-nudge toggle, terminal size) — it is a factory rather
// than a fixed value because a future caller may vary it per session id;
// the current gateway always returns the same Config.
func NewManager(newConfig func(sessionID string) Config) *Manager {
	m := &Manager{
		requests:     make(chan attachRequest),
		listRequests: make(chan chan []SessionSummary),
		newConfig:    newConfig,
		registry:     make(map[string]*registryEntry),
	}
	go m.run()
	return m
}

// Attach requests a subscription and an inbound sender for id, spawning a
// fresh session if none is currently live. It blocks until the manager's
// single goroutine replies; for a fresh id that reply comes before the
// bootstrap handshake, and the manager goroutine then blocks on the
// handshake — see §4.5: attach requests are totally ordered, and a
// slow/absent first client message on a fresh id stalls every other
// attach behind it by design.
func (m *Manager) Attach(id string) (sub chan Event, inbound chan Command, cancel func()) {
	reply := make(chan attachReply, 1)
	m.requests <- attachRequest{id: id, reply: reply}
	r := <-reply
	return r.sub, r.inbound, r.cancel
}

// ListSessions returns a summary of every currently-live session, routed
// through the manager's single goroutine so it never races with a
// concurrent attach mutating the registry.
func (m *Manager) ListSessions() []SessionSummary {
	reply := make(chan []SessionSummary, 1)
	m.listRequests <- reply
	return <-reply
}

func (m *Manager) run() {
	for {
		select {
		case req := <-m.requests:
			m.handleAttach(req)
		case reply := <-m.listRequests:
			reply <- m.summarize()
		}
	}
}

func (m *Manager) summarize() []SessionSummary {
	out := make([]SessionSummary, 0, len(m.registry))
	for id, entry := range m.registry {
		if !m.isLive(entry) {
			continue
		}
		out = append(out, SessionSummary{ID: id, State: NewStateJSON(entry.actor.LastState())})
	}
	return out
}

func (m *Manager) handleAttach(req attachRequest) {
	if entry, ok := m.registry[req.id]; ok && m.isLive(entry) {
		sub := entry.broadcaster.Subscribe()
		b := entry.broadcaster
		req.reply <- attachReply{sub: sub, inbound: entry.inbound, cancel: func() { b.Unsubscribe(sub) }}
		return
	}

	broadcaster := NewBroadcaster(DefaultBacklog)
	inbound := make(chan Command, 16)
	sub := broadcaster.Subscribe()
	req.reply <- attachReply{sub: sub, inbound: inbound, cancel: func() { broadcaster.Unsubscribe(sub) }}

	// Handshake: observe exactly one inbound message before spawning
	// anything. A stale CurrentState poll against a dead/never-existed
	// session must not resurrect it.
	first, ok := <-inbound
	if !ok {
		broadcaster.CloseAll()
		return
	}
	if first.Kind == CmdCurrentState {
		broadcaster.Publish(ErrorEvent{SessionID: req.id, ErrorCode: ErrSessionNotFound})
		broadcaster.CloseAll()
		return
	}

	cfg := m.newConfig(req.id)
	actor, err := Bootstrap(req.id, broadcaster, cfg)
	if err != nil {
		broadcaster.Publish(ErrorEvent{SessionID: req.id, ErrorCode: ErrInternalError, Message: err.Error()})
		broadcaster.CloseAll()
		return
	}
	actor.inbound = inbound
	actor.initial = &first

	m.registry[req.id] = &registryEntry{inbound: inbound, broadcaster: broadcaster, actor: actor}
	go actor.Run()
}

func (m *Manager) isLive(e *registryEntry) bool {
	select {
	case <-e.actor.Done():
		return false
	default:
		return true
	}
}
