package usage

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type countingLifecycle struct {
	background int
	foreground int
}

func (c *countingLifecycle) OnBackground() { c.background++ }
func (c *countingLifecycle) OnForeground() { c.foreground++ }

func TestLifecycleMapperTransitions(t *testing.T) {
	target := &countingLifecycle{}
	m := NewLifecycleMapper(target, zerolog.Nop())

	steps := []struct {
		state      string
		background int
		foreground int
	}{
		{"active", 0, 0},
		{"inactive", 1, 0},
		{"background", 1, 0},
		{"active", 1, 1},
		{"background", 2, 1},
		{"active", 2, 2},
	}

	for i, step := range steps {
		if err := m.Transition(step.state); err != nil {
			t.Fatalf("step %d: Transition(%q) failed: %v", i, step.state, err)
		}
		if target.background != step.background || target.foreground != step.foreground {
			t.Fatalf("step %d: expected %d/%d background/foreground calls, got %d/%d",
				i, step.background, step.foreground, target.background, target.foreground)
		}
	}
}

func TestLifecycleMapperRejectsUnknownState(t *testing.T) {
	target := &countingLifecycle{}
	m := NewLifecycleMapper(target, zerolog.Nop())

	err := m.Transition("suspended")
	if !errors.Is(err, ErrUnknownLifecycleState) {
		t.Fatalf("Expected ErrUnknownLifecycleState, got %v", err)
	}
	if m.Current() != LifecycleActive {
		t.Errorf("Expected state unchanged, got %s", m.Current())
	}
	if target.background != 0 || target.foreground != 0 {
		t.Error("Expected no calls on the target")
	}
}
