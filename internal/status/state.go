// Package status tracks the engine lifecycle for one list context, from
// boot through cache hydration to steady-state sync.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/optsync/internal/bus"
)

// State represents an engine runtime state.
type State string

const (
	Booting   State = "BOOTING"
	Hydrating State = "HYDRATING"
	Syncing   State = "SYNCING"
	Ready     State = "READY"
	Degraded  State = "DEGRADED"
	Error     State = "ERROR"
)

// validTransitions defines allowed state transitions. Hydration may be
// skipped entirely on a cold start; Degraded means the cached list is shown
// with a retry affordance after a failed fetch.
var validTransitions = map[State][]State{
	Booting:   {Hydrating, Syncing, Error},
	Hydrating: {Syncing, Error},
	Syncing:   {Ready, Degraded, Error},
	Ready:     {Syncing, Degraded, Error},
	Degraded:  {Syncing, Ready, Error},
	Error:     {Booting},
}

// Machine tracks and enforces engine state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindEngineStatus, StatusChange{From: from, To: to})
	}
	return nil
}

// StatusChange is the payload for engine.status_changed events.
type StatusChange struct {
	From State
	To   State
}
