package task

import "time"

// Action labels a history record with the operation that produced it.
type Action string

const (
	ActionConfigure       Action = "Configure"
	ActionClaim           Action = "Claim"
	ActionAutoAssign      Action = "AutoAssign"
	ActionAssign          Action = "Assign"
	ActionUnassign        Action = "Unassign"
	ActionUnclaim         Action = "Unclaim"
	ActionComplete        Action = "Complete"
	ActionCancel          Action = "Cancel"
	ActionTerminate       Action = "Terminate"
	ActionMarkReconfigure Action = "MarkReconfigure"
	ActionReconfigure     Action = "Reconfigure"
)

// HistoryRecord is one immutable entry in a task's audit trail. Exactly one
// is appended, in the same transaction, for every successful mutation.
type HistoryRecord struct {
	TaskID    string
	State     State
	Assignee  string
	UpdatedBy string
	UpdatedAt time.Time
	Action    Action
}
