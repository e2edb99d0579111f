package status

import (
	"testing"

	"github.com/matheus3301/msgvault/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Ready},
		{Booting, Error},
		{Booting, Closing},
		{Ready, Closing},
		{Ready, Error},
		{Error, Booting},
		{Error, Closing},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Ready)
	if err := m.Transition(Booting); err == nil {
		t.Error("Transition(READY -> BOOTING) should fail")
	}
}

func TestClosingIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Closing)
	for _, to := range []State{Booting, Ready, Error} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(CLOSING -> %s) should fail", to)
		}
	}
	if m.Current() != Closing {
		t.Errorf("state = %s, want CLOSING", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("daemon.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "daemon.status_changed" {
		t.Errorf("event kind = %q, want daemon.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Ready {
		t.Errorf("change = %v -> %v, want BOOTING -> READY", change.From, change.To)
	}
}

// TestErrorRecoveryLifecycle simulates a failed boot followed by a
// successful restart: BOOTING → ERROR → BOOTING → READY → CLOSING.
func TestErrorRecoveryLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Error, Booting, Ready, Closing}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Closing {
		t.Errorf("final state = %s, want CLOSING", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting: {},
		Ready:   {Ready},
		Error:   {Error},
		Closing: {Closing},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
