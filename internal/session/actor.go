// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// idleProbeInterval is both the Idle/PreUseTool pty-read timeout and the
// idle-counter tick cadence (§4.4's rationale: one cadence drives both, so
// tuning idle-sec and probe cadence stays consistent).
const idleProbeInterval = 5 * time.Second

// Actor is the per-session event loop: it exclusively owns a PtyChild and
// a TranscriptReader, and drives the derived StateMachine from three
// asynchronous sources plus the two state-dependent timeout regimes.
type Actor struct {
	ID         string
	pty        *PtyChild
	transcript *TranscriptReader
	inbound    <-chan Command
	out        *Broadcaster

	idleSeconds int
	done        chan struct{}

	stateMu   sync.RWMutex
	lastState State

	// initial, if non-nil, is dispatched once before the main loop starts.
	// SessionManager uses this to re-deliver the first inbound message it
	// had to consume during its bootstrap handshake (§4.5 step 4: "head of
	// queue" re-delivery, modeled here as immediate dispatch rather than an
	// actual channel prepend since Go channels have no such operation).
	initial *Command
}

// NewActor wires an already-bootstrapped PtyChild and TranscriptReader
// into a new Actor. Bootstrap (spawning the child and waiting for its
// transcript to appear) happens before this call returns, as part of the
// SessionManager's synchronous handshake — see Bootstrap.
func NewActor(id string, pty *PtyChild, transcript *TranscriptReader, inbound <-chan Command, out *Broadcaster, idleSeconds int) *Actor {
	return &Actor{
		ID:          id,
		pty:         pty,
		transcript:  transcript,
		inbound:     inbound,
		out:         out,
		idleSeconds: idleSeconds,
		done:        make(chan struct{}),
	}
}

// Done closes once the actor's main loop has exited and its terminal
// session_ended event has been published. The SessionManager uses this to
// decide whether a registry entry is still live.
func (a *Actor) Done() <-chan struct{} { return a.done }

// LastState returns the most recently derived state snapshot, for the
// session-listing endpoint. Safe to call from any goroutine.
func (a *Actor) LastState() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.lastState
}

func (a *Actor) setLastState(s State) {
	a.stateMu.Lock()
	a.lastState = s
	a.stateMu.Unlock()
}

// Run is the actor's main loop. It never returns until the session ends,
// via idle timeout, pty EOF, the inbound queue closing, or a terminal
// transcript read error.
func (a *Actor) Run() {
	defer close(a.done)
	defer func() {
		a.out.Publish(EndedEvent{SessionID: a.ID})
		a.out.CloseAll()
		a.transcript.Close()
		// Closing the master gives the child EOF/SIGHUP, so Wait cannot
		// block forever on a child that ignored /exit.
		_ = a.pty.Close()
		_ = a.pty.Wait()
	}()

	a.out.Publish(RunningEvent{SessionID: a.ID})

	state := NewMachine()
	a.setLastState(state)
	idleCounter := 0

	if a.initial != nil {
		a.dispatch(*a.initial, state)
	}
	maxIdleTicks := (a.idleSeconds + 4) / 5 // ceil(idle_sec/5)
	if maxIdleTicks < 1 {
		maxIdleTicks = 1
	}

	for {
		var timeoutCh <-chan time.Time
		if state.Kind == Idle || state.Kind == PreUseTool {
			timeoutCh = time.After(idleProbeInterval)
		}

		select {
		case ch, ok := <-a.pty.Chunks():
			if !ok || ch.eof {
				return
			}
			idleCounter = 0
			a.out.Publish(PtyOutputEvent{Output: ch.text})

		case rec, ok := <-a.transcript.Lines():
			if !ok {
				continue
			}
			idleCounter = 0
			prevRequests := len(state.Requests)
			newState, changed := Apply(state, rec)
			if !changed {
				continue
			}
			state = newState
			a.setLastState(state)
			a.emitTransition(state, prevRequests)

		case err := <-a.transcript.Err():
			a.reportInternalError(err)
			return

		case cmd, ok := <-a.inbound:
			if !ok {
				return
			}
			idleCounter = 0
			a.dispatch(cmd, state)

		case <-timeoutCh:
			switch state.Kind {
			case Idle:
				_, _ = ApplyTimeout(state, WaitForUserInput)
				a.out.Publish(IdleEvent{SessionID: a.ID})
				idleCounter++
				if idleCounter >= maxIdleTicks {
					a.shutdownChild()
					return
				}
			case PreUseTool:
				newState, _ := ApplyTimeout(state, WaitForUserInputBeforeTool)
				state = newState
				a.setLastState(state)
				idleCounter = 0
				if req, ok := state.LatestToolRequest(); ok {
					a.out.Publish(PendingEvent{SessionID: a.ID, ToolName: req.Name, ToolInput: req.Input})
				}
			}
		}
	}
}

// emitTransition broadcasts the event matching the new state, per §6's
// taxonomy: a brand-new tool request gets its own session_tool_request,
// Output gets session_output, and a transcript-driven transition into
// Idle or StopUseTool gets session_idle — both states release the client
// to send fresh input, so they surface the same way. A PreUseTool change
// that adds no request (a tool result marking one request done) gets a
// session_state snapshot; otherwise session_state is only sent on the
// explicit CurrentState/CreateSession request path in dispatch.
func (a *Actor) emitTransition(state State, prevRequestCount int) {
	switch state.Kind {
	case Output:
		a.out.Publish(OutputEvent{Output: state.Text, IsThinking: state.IsThinking})
	case PreUseTool:
		if len(state.Requests) > prevRequestCount {
			req := state.Requests[len(state.Requests)-1]
			a.out.Publish(ToolRequestEvent{SessionID: a.ID, ToolName: req.Name, ToolInput: req.Input})
			return
		}
		a.out.Publish(StateEvent{SessionID: a.ID, CurrentState: NewStateJSON(state)})
	default:
		a.out.Publish(IdleEvent{SessionID: a.ID})
	}
}

func (a *Actor) shutdownChild() {
	if err := a.pty.Write([]byte("/exit")); err != nil {
		a.reportInternalError(err)
		return
	}
	time.Sleep(300 * time.Millisecond)
	if err := a.pty.WriteEnter(); err != nil {
		a.reportInternalError(err)
	}
}

func (a *Actor) dispatch(cmd Command, state State) {
	switch cmd.Kind {
	case CmdCreateSession, CmdCurrentState:
		a.out.Publish(StateEvent{SessionID: a.ID, CurrentState: NewStateJSON(state)})

	case CmdInput:
		if !state.InputAvailable() {
			a.out.Publish(ErrorEvent{
				SessionID:  a.ID,
				ErrorCode:  ErrInvalidInputForState,
				ErrorState: state.Kind.String(),
				ErrorInput: "Input",
			})
			return
		}
		if err := a.pty.Write([]byte(cmd.Text)); err != nil {
			a.reportInternalError(err)
		}

	case CmdBytesInput:
		if err := a.pty.Write(cmd.Bytes); err != nil {
			a.reportInternalError(err)
		}

	case CmdCancel:
		if !state.CancelAvailable() {
			a.out.Publish(ErrorEvent{
				SessionID:  a.ID,
				ErrorCode:  ErrInvalidInputForState,
				ErrorState: state.Kind.String(),
				ErrorInput: "Cancel",
			})
			return
		}
		if err := a.pty.WriteEscape(); err != nil {
			a.reportInternalError(err)
		}

	case CmdConfirm:
		if !state.ConfirmAvailable() {
			log.Printf("session %s: Confirm ignored in state %s", a.ID, state.Kind)
			return
		}
		if err := a.pty.WriteEnter(); err != nil {
			a.reportInternalError(err)
		}

	case CmdSelect:
		for i := 0; i < cmd.Index; i++ {
			if err := a.pty.WriteArrowDown(); err != nil {
				a.reportInternalError(err)
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
		if err := a.pty.WriteEnter(); err != nil {
			a.reportInternalError(err)
		}

	default:
		a.out.Publish(ErrorEvent{SessionID: a.ID, ErrorCode: ErrInvalidInput, Message: fmt.Sprintf("unhandled command kind %d", cmd.Kind)})
	}
}

func (a *Actor) reportInternalError(err error) {
	a.out.Publish(ErrorEvent{SessionID: a.ID, ErrorCode: ErrInternalError, Message: err.Error()})
}
