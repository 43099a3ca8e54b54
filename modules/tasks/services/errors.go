package services

import (
	"errors"
	"fmt"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

// mapDomainError translates aggregate and repository errors into the
// service's error surface. Unknown errors pass through untouched.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, task.ErrNotFound):
		return newServiceError(404, "TASK_NOT_FOUND", "task not found", err)
	case errors.Is(err, task.ErrAlreadyInitiated):
		return newServiceError(409, "TASK_ALREADY_INITIATED", "task already initiated", err)
	case errors.Is(err, task.ErrAlreadyClaimed):
		return newServiceError(409, "TASK_CONFLICT", "task is already assigned", err)
	case errors.Is(err, task.ErrTaskTerminal):
		return newServiceError(409, "TASK_CONFLICT", "task is in a terminal state", err)
	case errors.Is(err, task.ErrNotAssignable):
		return newServiceError(409, "TASK_CONFLICT", "task state does not allow this action", err)
	case errors.Is(err, task.ErrInvalidTransition):
		return newServiceError(422, "TASK_INVARIANT", "invalid task transition", err)
	default:
		var verr *access.VerificationError
		if errors.As(err, &verr) {
			return newServiceError(403, "TASK_FORBIDDEN", verr.Error(), err)
		}
		return err
	}
}

func downstreamError(system string, cause error) error {
	return newServiceError(502, "TASK_DOWNSTREAM", fmt.Sprintf("%s call failed", system), cause)
}
