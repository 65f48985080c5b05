package usage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnknownLifecycleState is returned for a state outside
// active, inactive and background.
var ErrUnknownLifecycleState = errors.New("unknown lifecycle state")

// LifecycleState is a host process state reported by the platform.
type LifecycleState string

const (
	LifecycleActive     LifecycleState = "active"
	LifecycleInactive   LifecycleState = "inactive"
	LifecycleBackground LifecycleState = "background"
)

// Lifecycle is the narrow port a platform shim drives.
type Lifecycle interface {
	OnBackground()
	OnForeground()
}

// LifecycleMapper turns raw platform state transitions into
// OnBackground/OnForeground calls.
type LifecycleMapper struct {
	target  Lifecycle
	logger  zerolog.Logger
	mu      sync.Mutex
	current LifecycleState
}

// NewLifecycleMapper creates a mapper. The host starts active.
func NewLifecycleMapper(target Lifecycle, logger zerolog.Logger) *LifecycleMapper {
	return &LifecycleMapper{
		target:  target,
		logger:  logger.With().Str("component", "lifecycle").Logger(),
		current: LifecycleActive,
	}
}

// ParseLifecycleState validates a raw state name.
func ParseLifecycleState(state string) (LifecycleState, error) {
	switch s := LifecycleState(state); s {
	case LifecycleActive, LifecycleInactive, LifecycleBackground:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLifecycleState, state)
	}
}

// Transition records the new state. Leaving active pauses the session,
// entering active resumes it.
func (m *LifecycleMapper) Transition(state string) error {
	next, err := ParseLifecycleState(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current
	m.current = next

	switch {
	case prev == LifecycleActive && next != LifecycleActive:
		m.target.OnBackground()
	case prev != LifecycleActive && next == LifecycleActive:
		m.target.OnForeground()
	}

	m.logger.Debug().
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("Lifecycle transition")
	return nil
}

// Current returns the last reported state.
func (m *LifecycleMapper) Current() LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
