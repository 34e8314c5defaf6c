package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	require.NoError(t, validateTransition(StateUnloaded, StateOptimizedActive))
	require.NoError(t, validateTransition(StateUnloaded, StateFallbackActive))
	require.NoError(t, validateTransition(StateOptimizedActive, StateDisabled))
	require.NoError(t, validateTransition(StateFallbackActive, StateDisabled))
	require.NoError(t, validateTransition(StateDisabled, StateDisabled))
	require.NoError(t, validateTransition(StateDisabled, StateUnloaded))
	require.NoError(t, validateTransition("", StateFallbackActive))
	require.ErrorIs(t, validateTransition(StateDisabled, StateFallbackActive), ErrInvalidTransition)
	require.ErrorIs(t, validateTransition(StateOptimizedActive, StateFallbackActive), ErrInvalidTransition)
	require.ErrorIs(t, validateTransition(StateUnloaded, ""), ErrInvalidTransition)
}

func TestHookState_Active(t *testing.T) {
	assert.True(t, StateFallbackActive.Active())
	assert.True(t, StateOptimizedActive.Active())
	assert.False(t, StateUnloaded.Active())
	assert.False(t, StateDisabled.Active())
}

func TestMachine_Transition(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateUnloaded, m.State())

	require.NoError(t, m.Transition(StateOptimizedActive))
	assert.Equal(t, StateOptimizedActive, m.State())

	require.Error(t, m.Transition(StateFallbackActive))
	assert.Equal(t, StateOptimizedActive, m.State())

	require.NoError(t, m.Transition(StateDisabled))
	require.NoError(t, m.Transition(StateDisabled))
	assert.Equal(t, StateDisabled, m.State())
}

func TestMachine_ConcurrentDisable(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(StateFallbackActive))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Transition(StateDisabled))
		}()
	}
	wg.Wait()
	assert.Equal(t, StateDisabled, m.State())
}

func TestMachine_ZeroValue(t *testing.T) {
	var m Machine
	assert.Equal(t, StateUnloaded, m.State())

	done := make(chan error, 1)
	go func() { done <- m.Transition(StateFallbackActive) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("transition on zero-value machine did not return")
	}
	assert.Equal(t, StateFallbackActive, m.State())

	var fresh Machine
	require.ErrorIs(t, fresh.Transition(StateUnloaded), ErrInvalidTransition)
	require.NoError(t, fresh.Transition(StateDisabled))
	assert.Equal(t, StateDisabled, fresh.State())
}
