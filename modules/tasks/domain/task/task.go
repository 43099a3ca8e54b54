package task

import (
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
)

// Task is the work-item aggregate. It has value semantics: every
// transition returns a new Task plus the history record to append, and
// never mutates in place. Persistence and locking live behind Repository.
type Task struct {
	ID          string
	Type        string
	Name        string
	Title       string
	Description string

	Jurisdiction     string
	CaseID           string
	CaseType         string
	Location         string
	Region           string
	RoleCategory     string
	WorkType         string
	Classification   access.Classification
	AccessCategories []string

	MajorPriority    int
	MinorPriority    int
	PriorityDate     *time.Time
	DueDate          *time.Time
	AssignmentExpiry *time.Time

	Assignee     string
	State        State
	AutoAssigned bool

	LastUpdatedAction Action
	LastUpdatedUser   string
	LastUpdatedAt     time.Time

	ReconfigureRequestTime *time.Time
	LastReconfiguredAt     *time.Time

	TerminationReason  TerminationReason
	TerminationProcess string

	Roles                []access.TaskRole
	AdditionalProperties map[string]string
	Warnings             []string

	CreatedAt time.Time
}

// New builds the unconfigured skeleton persisted by Initiate before
// configuration runs.
func New(id, taskType, name, caseID string, now time.Time) Task {
	return Task{
		ID:        id,
		Type:      taskType,
		Name:      name,
		CaseID:    caseID,
		State:     StateUnconfigured,
		CreatedAt: now,
	}
}

// AccessSnapshot is the task-side input to permission evaluation.
func (t Task) AccessSnapshot() access.Snapshot {
	return access.Snapshot{
		TaskID:           t.ID,
		CaseID:           t.CaseID,
		CaseType:         t.CaseType,
		Jurisdiction:     t.Jurisdiction,
		Region:           t.Region,
		Location:         t.Location,
		Classification:   t.Classification,
		AccessCategories: t.AccessCategories,
		Roles:            t.Roles,
	}
}

func (t Task) record(action Action, by string, now time.Time) HistoryRecord {
	return HistoryRecord{
		TaskID:    t.ID,
		State:     t.State,
		Assignee:  t.Assignee,
		UpdatedBy: by,
		UpdatedAt: now,
		Action:    action,
	}
}

func (t Task) touched(action Action, by string, now time.Time) Task {
	t.LastUpdatedAction = action
	t.LastUpdatedUser = by
	t.LastUpdatedAt = now
	return t
}

// Configured moves the freshly initiated skeleton into its first live
// state once configuration has been applied.
func (t Task) Configured(by string, now time.Time) (Task, HistoryRecord, error) {
	if t.State != StateUnconfigured {
		return t, HistoryRecord{}, ErrInvalidTransition
	}
	if t.HasAutoAssignableRole() {
		t.State = StatePendingAutoAssign
	} else {
		t.State = StateUnassigned
	}
	t = t.touched(ActionConfigure, by, now)
	return t, t.record(ActionConfigure, by, now), nil
}

// HasAutoAssignableRole reports whether any configured role requests
// auto-assignment.
func (t Task) HasAutoAssignableRole() bool {
	for _, r := range t.Roles {
		if r.AutoAssignable {
			return true
		}
	}
	return false
}

// Claim assigns the task to the acting user. Conflicts are reported,
// never overwritten.
func (t Task) Claim(actor string, now time.Time) (Task, HistoryRecord, error) {
	switch {
	case t.State.IsTerminal():
		return t, HistoryRecord{}, ErrTaskTerminal
	case t.State == StateAssigned:
		return t, HistoryRecord{}, ErrAlreadyClaimed
	case t.State != StateUnassigned:
		return t, HistoryRecord{}, ErrNotAssignable
	}
	t.Assignee = actor
	t.State = StateAssigned
	t.AutoAssigned = false
	t = t.touched(ActionClaim, actor, now)
	return t, t.record(ActionClaim, actor, now), nil
}

// AssignTo hands the task to assignee. The action distinguishes operator
// assignment from auto-assignment in the history trail.
func (t Task) AssignTo(assignee, by string, action Action, now time.Time) (Task, HistoryRecord, error) {
	if assignee == "" {
		return t, HistoryRecord{}, ErrInvalidTransition
	}
	switch t.State {
	case StateUnassigned, StateAssigned, StatePendingAutoAssign:
	default:
		if t.State.IsTerminal() {
			return t, HistoryRecord{}, ErrTaskTerminal
		}
		return t, HistoryRecord{}, ErrNotAssignable
	}
	t.Assignee = assignee
	t.State = StateAssigned
	t.AutoAssigned = action == ActionAutoAssign
	t = t.touched(action, by, now)
	return t, t.record(action, by, now), nil
}

// Unassign clears the assignee.
func (t Task) Unassign(by string, action Action, now time.Time) (Task, HistoryRecord, error) {
	if t.State.IsTerminal() {
		return t, HistoryRecord{}, ErrTaskTerminal
	}
	if t.State != StateAssigned && t.State != StatePendingAutoAssign {
		return t, HistoryRecord{}, ErrNotAssignable
	}
	t.Assignee = ""
	t.State = StateUnassigned
	t.AutoAssigned = false
	t = t.touched(action, by, now)
	return t, t.record(action, by, now), nil
}

// Complete finishes an assigned task. The history record keeps the
// assignee who held the task; the task itself drops it, since only
// assigned tasks carry one.
func (t Task) Complete(by string, now time.Time) (Task, HistoryRecord, error) {
	if t.State.IsTerminal() {
		return t, HistoryRecord{}, ErrTaskTerminal
	}
	if t.State != StateAssigned {
		return t, HistoryRecord{}, ErrNotAssignable
	}
	t.State = StateCompleted
	t = t.touched(ActionComplete, by, now)
	rec := t.record(ActionComplete, by, now)
	t.Assignee = ""
	t.AutoAssigned = false
	return t, rec, nil
}

// Cancel aborts a live task.
func (t Task) Cancel(by string, now time.Time) (Task, HistoryRecord, error) {
	if t.State.IsTerminal() {
		return t, HistoryRecord{}, ErrTaskTerminal
	}
	t.State = StateCancelled
	t = t.touched(ActionCancel, by, now)
	rec := t.record(ActionCancel, by, now)
	t.Assignee = ""
	t.AutoAssigned = false
	return t, rec, nil
}

// Terminate is the workflow-engine-originated terminal transition. A
// completed task may still be terminated with the "completed" reason,
// since engine cleanup races user completion.
func (t Task) Terminate(reason TerminationReason, processID string, now time.Time) (Task, HistoryRecord, error) {
	if t.State.IsTerminal() && !(t.State == StateCompleted && reason == ReasonCompleted) {
		return t, HistoryRecord{}, ErrTaskTerminal
	}
	t.State = StateTerminated
	t.TerminationReason = reason
	t.TerminationProcess = processID
	t = t.touched(ActionTerminate, "", now)
	rec := t.record(ActionTerminate, "", now)
	t.Assignee = ""
	t.AutoAssigned = false
	return t, rec, nil
}

// MarkReconfigure requests reconfiguration. Marking an already pending
// task is a no-op; the second return value reports whether anything
// changed.
func (t Task) MarkReconfigure(now time.Time) (Task, HistoryRecord, bool) {
	if !t.State.IsAssignable() || t.ReconfigureRequestTime != nil {
		return t, HistoryRecord{}, false
	}
	requestTime := now
	t.ReconfigureRequestTime = &requestTime
	t = t.touched(ActionMarkReconfigure, "", now)
	return t, t.record(ActionMarkReconfigure, "", now), true
}

// Validate checks the aggregate's internal invariants; a failure here is
// a bug, not a user error.
func (t Task) Validate() error {
	if t.ID == "" {
		return ErrInvalidTransition
	}
	if t.Assignee != "" && t.State != StateAssigned {
		return ErrInvalidTransition
	}
	return nil
}
