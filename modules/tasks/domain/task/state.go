package task

type State string

const (
	StateUnconfigured      State = "UNCONFIGURED"
	StatePendingAutoAssign State = "PENDING_AUTO_ASSIGN"
	StateAssigned          State = "ASSIGNED"
	StateUnassigned        State = "UNASSIGNED"
	StateCompleted         State = "COMPLETED"
	StateCancelled         State = "CANCELLED"
	StateTerminated        State = "TERMINATED"
)

// IsTerminal reports whether no further transitions are allowed from s.
// Completed still admits the terminate-with-completed-reason cleanup.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateTerminated:
		return true
	default:
		return false
	}
}

// IsAssignable reports whether the task is live and can change hands.
func (s State) IsAssignable() bool {
	return s == StateAssigned || s == StateUnassigned
}

// TerminationReason records why the workflow engine terminated a task.
type TerminationReason string

const (
	ReasonCompleted TerminationReason = "completed"
	ReasonCancelled TerminationReason = "cancelled"
	ReasonDeleted   TerminationReason = "deleted"
)
