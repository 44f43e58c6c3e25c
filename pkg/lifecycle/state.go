// Package lifecycle provides explicit start/stop state management for
// long-lived components of the guildhall auth core, replacing
// container-managed init/shutdown hooks with a deterministic state machine.
//
// The [auth.Authenticator] owns a background sweep goroutine for cache
// maintenance and replay-guard cleanup; its Start and Stop methods drive a
// [Guard] so the goroutine is launched exactly once and always cancelled,
// leaving no orphaned timers in tests.
//
// The lifecycle flow for a healthy component is:
//
//	Unknown → Starting → Running → Stopping → Stopped
//
// Any non-terminal state may transition to Failed on error, and both
// terminal states (Stopped, Failed) may transition back to Starting
// for restart.
package lifecycle

import (
	"sync"

	gherr "github.com/guildhall/guildhall-auth/pkg/errors"
)

// State represents the lifecycle state of a managed component. States form
// a finite state machine with validated transitions defined by
// [ValidTransition].
//
// The zero value ("") is not a valid state; components are initialized with
// [StateUnknown] at construction time.
type State string

const (
	// StateUnknown is the initial state of a newly constructed component
	// before any lifecycle method has been called.
	StateUnknown State = "unknown"

	// StateStarting indicates the component is in the process of starting.
	// This is a transient state set at the beginning of Start before any
	// background work is launched.
	StateStarting State = "starting"

	// StateRunning indicates the component has started successfully and
	// its background work (e.g., the sweep goroutine) is active.
	StateRunning State = "running"

	// StateStopping indicates the component is in the process of shutting
	// down. This is a transient state set at the beginning of Stop before
	// background work is cancelled.
	StateStopping State = "stopping"

	// StateStopped indicates the component has completed a clean shutdown.
	// This is a terminal state; the component may be restarted.
	StateStopped State = "stopped"

	// StateFailed indicates the component encountered an unrecoverable
	// error. This is a terminal state; the component may be restarted.
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether the state is one of the recognized lifecycle states.
// The zero value ("") is not valid.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateStarting, StateRunning,
		StateStopping, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is a terminal lifecycle state.
// Terminal states are [StateStopped] and [StateFailed]. A component in a
// terminal state is not processing work and must be restarted to resume
// operation.
func (s State) IsTerminal() bool {
	switch s {
	case StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// validTransitions defines the allowed state transitions for the component
// lifecycle state machine. Each key is a source state, and the value is the
// set of states it may transition to. Transitions not present in this map
// are rejected by [ValidTransition].
//
// Transition matrix:
//
//	Unknown  → Starting, Failed
//	Starting → Running, Failed, Stopping
//	Running  → Stopping, Failed
//	Stopping → Stopped, Failed
//	Stopped  → Starting              (restart)
//	Failed   → Starting              (recovery restart)
var validTransitions = map[State][]State{
	StateUnknown:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateFailed, StateStopping},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting},
	StateFailed:   {StateStarting},
}

// ValidTransition reports whether transitioning from state from to state to
// is allowed by the lifecycle state machine. Both from and to must be valid
// states, and the transition must be present in the [validTransitions]
// matrix. Same-state transitions (from == to) are always rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Guard couples a lifecycle State with a mutex, providing atomic validated
// transitions for components that manage background goroutines. The zero
// value is not usable; construct with [NewGuard].
//
// Guard is safe for concurrent use by multiple goroutines.
type Guard struct {
	mu    sync.RWMutex
	state State
}

// NewGuard creates a Guard in [StateUnknown].
func NewGuard() *Guard {
	return &Guard{state: StateUnknown}
}

// State returns the current lifecycle state.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Transition atomically moves the guard to the given state if the
// transition is valid. Returns a [*gherr.Error] with code
// [gherr.CodeValidation] describing the rejected transition otherwise.
func (g *Guard) Transition(to State) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !ValidTransition(g.state, to) {
		return gherr.Newf(gherr.CodeValidation,
			"lifecycle: invalid transition %s -> %s", g.state, to)
	}
	g.state = to
	return nil
}

// MustBe returns nil if the current state equals want, or a
// [*gherr.Error] with code [gherr.CodeValidation] otherwise. Use this to
// reject operations on components that are not running.
func (g *Guard) MustBe(want State) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != want {
		return gherr.Newf(gherr.CodeValidation,
			"lifecycle: component is %s, expected %s", g.state, want)
	}
	return nil
}
