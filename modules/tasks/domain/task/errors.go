package task

import "errors"

var (
	ErrNotFound         = errors.New("task not found")
	ErrAlreadyInitiated = errors.New("task already initiated")
	ErrAlreadyClaimed   = errors.New("task already claimed")
	ErrTaskTerminal     = errors.New("task is in a terminal state")
	ErrNotAssignable    = errors.New("task is not in an assignable state")
	// ErrInvalidTransition marks a transition the state machine does not
	// define at all; reaching it is a bug, not a user error.
	ErrInvalidTransition = errors.New("invalid task state transition")
)
