package lifecycle

import (
	"sync/atomic"

	"github.com/jingkaihe/pkgveil/internal/errx"
)

// HookState is the installation state of the visibility hook.
type HookState string

const (
	StateUnloaded        HookState = "unloaded"
	StateFallbackActive  HookState = "fallback_active"
	StateOptimizedActive HookState = "optimized_active"
	StateDisabled        HookState = "disabled"
)

var allowedTransitions = map[HookState]map[HookState]bool{
	StateUnloaded: {
		StateFallbackActive:  true,
		StateOptimizedActive: true,
		StateDisabled:        true,
	},
	StateFallbackActive: {
		StateDisabled: true,
	},
	StateOptimizedActive: {
		StateDisabled: true,
	},
	StateDisabled: {
		StateDisabled: true,
		StateUnloaded: true,
	},
}

// Active reports whether the hook intercepts host calls in state s.
func (s HookState) Active() bool {
	return s == StateFallbackActive || s == StateOptimizedActive
}

func validateTransition(from, to HookState) error {
	if from == "" {
		from = StateUnloaded
	}
	if to == "" {
		return errx.With(ErrInvalidTransition, " empty target state from %q", from)
	}
	allowed := allowedTransitions[from]
	if len(allowed) == 0 || !allowed[to] {
		return errx.With(ErrInvalidTransition, " %q -> %q", from, to)
	}
	return nil
}

// Machine holds a HookState in a single atomic cell. The zero value is
// an unloaded machine.
type Machine struct {
	state atomic.Value
}

func NewMachine() *Machine {
	m := &Machine{}
	m.state.Store(StateUnloaded)
	return m
}

func (m *Machine) State() HookState {
	s, _ := m.state.Load().(HookState)
	if s == "" {
		return StateUnloaded
	}
	return s
}

// Transition moves the machine to the target state if the move is allowed
// from the current state. It retries when another writer wins the swap.
func (m *Machine) Transition(to HookState) error {
	for {
		cur := m.state.Load()
		from, _ := cur.(HookState)
		if from == "" {
			from = StateUnloaded
		}
		if err := validateTransition(from, to); err != nil {
			return err
		}
		// cur is nil until the first store.
		if m.state.CompareAndSwap(cur, to) {
			return nil
		}
	}
}
