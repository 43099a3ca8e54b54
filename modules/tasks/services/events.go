package services

import (
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
)

// Events published on the in-process bus after a transition commits.
// Subscribers must not assume ordering across tasks.

type TaskInitiatedEvent struct {
	Task task.Task
	At   time.Time
}

type TaskAssignedEvent struct {
	Task     task.Task
	Assignee string
	By       string
	At       time.Time
}

type TaskUnassignedEvent struct {
	Task task.Task
	By   string
	At   time.Time
}

type TaskCompletedEvent struct {
	Task task.Task
	By   string
	At   time.Time
}

type TaskCancelledEvent struct {
	Task task.Task
	By   string
	At   time.Time
}

type TaskTerminatedEvent struct {
	Task   task.Task
	Reason task.TerminationReason
	At     time.Time
}

type TaskReconfiguredEvent struct {
	Task  task.Task
	RunID string
	At    time.Time
}
