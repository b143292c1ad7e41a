package relay

import (
	"errors"
	"testing"
)

func TestSession_InitialState(t *testing.T) {
	s := NewSession("sess-1")

	if s.State() != StatePendingAuth {
		t.Errorf("expected StatePendingAuth, got %v", s.State())
	}
	if s.ID() != "sess-1" {
		t.Errorf("expected sess-1, got %s", s.ID())
	}
	if s.Subject() != "" || s.Outcome() != "" {
		t.Error("expected empty subject and outcome")
	}
}

func TestSession_HappyPath(t *testing.T) {
	s := NewSession("sess-1")

	for _, next := range []State{StateReady, StateStreaming, StateClosing, StateClosed} {
		if err := s.Transition(next); err != nil {
			t.Fatalf("transition to %v: %v", next, err)
		}
	}

	want := []State{StatePendingAuth, StateReady, StateStreaming, StateClosing, StateClosed}
	got := s.History()
	if len(got) != len(want) {
		t.Fatalf("expected history %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if !s.State().IsTerminal() {
		t.Error("expected terminal state")
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"streaming before ready", nil, StateStreaming},
		{"closing before streaming", nil, StateClosing},
		{"auth failed is terminal", []State{StateAuthFailed}, StateClosed},
		{"closed is terminal", []State{StateClosed}, StateReady},
		{"no return to ready", []State{StateReady, StateStreaming}, StateReady},
		{"unavailable only closes", []State{StateUpstreamUnavailable}, StateReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s")
			for _, st := range tt.path {
				if err := s.Transition(st); err != nil {
					t.Fatalf("setup transition to %v: %v", st, err)
				}
			}
			before := s.State()
			if err := s.Transition(tt.bad); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if s.State() != before {
				t.Errorf("state changed on rejected transition: %v → %v", before, s.State())
			}
		})
	}
}

func TestSession_OutcomeSetOnce(t *testing.T) {
	s := NewSession("s")
	s.setOutcome("client_closed")
	s.setOutcome("upstream_closed")

	if s.Outcome() != "client_closed" {
		t.Errorf("expected first outcome to stick, got %s", s.Outcome())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePendingAuth, "PENDING_AUTH"},
		{StateReady, "READY"},
		{StateStreaming, "STREAMING"},
		{StateClosing, "CLOSING"},
		{StateClosed, "CLOSED"},
		{StateAuthFailed, "AUTH_FAILED"},
		{StateUpstreamUnavailable, "UPSTREAM_UNAVAILABLE"},
		{State(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
