package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a relay session.
type State int

const (
	// StatePendingAuth - connection accepted, token not yet checked.
	StatePendingAuth State = iota
	// StateReady - upstream open, ready event being sent.
	StateReady
	// StateStreaming - both pumps running.
	StateStreaming
	// StateClosing - one side finished, the other is being cancelled.
	StateClosing
	// StateClosed - all resources released.
	StateClosed
	// StateAuthFailed - token missing or invalid. Terminal.
	StateAuthFailed
	// StateUpstreamUnavailable - upstream could not be opened.
	StateUpstreamUnavailable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePendingAuth:
		return "PENDING_AUTH"
	case StateReady:
		return "READY"
	case StateStreaming:
		return "STREAMING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateAuthFailed:
		return "AUTH_FAILED"
	case StateUpstreamUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and AUTH_FAILED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateAuthFailed
}

// ErrInvalidTransition is returned when a transition is not in the table.
var ErrInvalidTransition = errors.New("invalid session state transition")

// transitions lists the allowed next states.
//
//	PENDING_AUTH → AUTH_FAILED
//	PENDING_AUTH → CLOSED                 (provider not configured: fallback)
//	PENDING_AUTH → UPSTREAM_UNAVAILABLE → CLOSED
//	PENDING_AUTH → READY → STREAMING → CLOSING → CLOSED
//	READY → CLOSING                       (ready event could not be delivered)
var transitions = map[State][]State{
	StatePendingAuth:         {StateAuthFailed, StateClosed, StateUpstreamUnavailable, StateReady},
	StateReady:               {StateStreaming, StateClosing},
	StateStreaming:           {StateClosing},
	StateClosing:             {StateClosed},
	StateUpstreamUnavailable: {StateClosed},
}

// Session is one client connection relayed to one upstream session.
// Thread-safe for concurrent access.
type Session struct {
	mu        sync.RWMutex
	id        string
	subject   string
	state     State
	history   []State
	startedAt time.Time
	outcome   string
}

// NewSession creates a session in PENDING_AUTH.
func NewSession(id string) *Session {
	return &Session{
		id:        id,
		state:     StatePendingAuth,
		history:   []State{StatePendingAuth},
		startedAt: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Subject returns the authenticated subject, empty before authentication.
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

func (s *Session) setSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// History returns every state the session has been in, in order.
func (s *Session) History() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]State(nil), s.history...)
}

// Outcome returns how the session ended, empty while it is live.
func (s *Session) Outcome() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

func (s *Session) setOutcome(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == "" {
		s.outcome = outcome
	}
}

// Transition moves to next if the table allows it.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			s.history = append(s.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.state, next)
}

// Age returns the time since the session was created.
func (s *Session) Age() time.Duration {
	return time.Since(s.startedAt)
}
