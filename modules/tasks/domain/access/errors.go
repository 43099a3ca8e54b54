package access

import "fmt"

// Side distinguishes which party of an operation failed verification: the
// acting/receiving user or the user performing an assignment.
type Side string

const (
	SideAssignee Side = "assignee"
	SideAssigner Side = "assigner"
)

// VerificationError is the structured failure produced when no role
// assignment satisfies a requirement. The detail format is fixed; callers
// surface it as an authorization-denied outcome.
type VerificationError struct {
	Side         Side
	TaskID       string
	Requirements Requirements
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf(
		"role assignment verification failed: %s does not hold a required permission for task %s (required: %s)",
		e.Side, e.TaskID, e.Requirements,
	)
}

func NewVerificationError(side Side, taskID string, reqs Requirements) *VerificationError {
	return &VerificationError{Side: side, TaskID: taskID, Requirements: reqs}
}
