package approval

import "fmt"

// State is a step of a single authorization request.
type State string

const (
	StateIdle               State = "idle"
	StateFetchingState      State = "fetching_state"
	StateAllowancePending   State = "allowance_pending"
	StateAllowanceConfirmed State = "allowance_confirmed"
	StateFinalizePending    State = "finalize_pending"
	StateFinalizeConfirmed  State = "finalize_confirmed"
	StateRecorded           State = "recorded"
	// StateUnrecorded means both transactions confirmed but the ledger
	// write failed. The authorization exists on-chain only.
	StateUnrecorded State = "unrecorded"
	StateFailed     State = "failed"
)

// transitions lists the legal successors of every non-terminal state. The
// finalize call can only follow a confirmed allowance.
var transitions = map[State][]State{
	StateIdle:               {StateFetchingState, StateFailed},
	StateFetchingState:      {StateAllowancePending, StateFailed},
	StateAllowancePending:   {StateAllowanceConfirmed, StateFailed},
	StateAllowanceConfirmed: {StateFinalizePending, StateFailed},
	StateFinalizePending:    {StateFinalizeConfirmed, StateFailed},
	StateFinalizeConfirmed:  {StateRecorded, StateUnrecorded},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Progress receives every status change of an authorization together with
// the line to show the user.
type Progress func(state State, message string)

type run struct {
	state    State
	progress Progress
}

func (r *run) advance(next State, message string) error {
	if !CanTransition(r.state, next) {
		return fmt.Errorf("illegal authorization transition %s -> %s", r.state, next)
	}
	r.state = next
	if r.progress != nil && message != "" {
		r.progress(next, message)
	}
	return nil
}
