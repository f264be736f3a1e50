package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeOnlyFollowsConfirmedAllowance(t *testing.T) {
	for from := range transitions {
		if from == StateAllowanceConfirmed {
			continue
		}
		assert.False(t, CanTransition(from, StateFinalizePending), "from %s", from)
	}
	assert.True(t, CanTransition(StateAllowanceConfirmed, StateFinalizePending))
	assert.False(t, CanTransition(StateIdle, StateAllowancePending))
	assert.False(t, CanTransition(StateFinalizeConfirmed, StateFailed))
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateRecorded, StateUnrecorded, StateFailed} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateIdle, StateFetchingState, StateAllowancePending, StateFinalizePending} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestRunRejectsOutOfOrderSteps(t *testing.T) {
	var seen []State
	r := &run{state: StateFetchingState, progress: func(s State, _ string) { seen = append(seen, s) }}

	err := r.advance(StateFinalizePending, "finalizing")

	require.Error(t, err)
	assert.Equal(t, StateFetchingState, r.state)
	assert.Empty(t, seen)
	require.NoError(t, r.advance(StateAllowancePending, "approving"))
	assert.Equal(t, []State{StateAllowancePending}, seen)
}
