package task

// State represents the lifecycle state of a task.
type State string

const (
	StateSubmitted     State = "submitted"
	StateWorking       State = "working"
	StateInputRequired State = "input-required"
	StateCompleted     State = "completed"
	StateCanceled      State = "canceled"
	StateFailed        State = "failed"
	StateRejected      State = "rejected"
	StateAuthRequired  State = "auth-required"
	StateUnknown       State = "unknown"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCanceled, StateFailed, StateRejected:
		return true
	}
	return false
}

// transitions is the complete lifecycle graph. States without an entry have
// no outgoing edges.
var transitions = map[State][]State{
	StateSubmitted:     {StateInputRequired, StateFailed, StateCanceled},
	StateInputRequired: {StateInputRequired, StateCompleted, StateFailed, StateCanceled},
}

// CanTransition reports whether the graph has an edge from s to next.
func (s State) CanTransition(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}
