package task

import (
	"context"
	"time"
)

// Query narrows task lookups for bulk operations. Empty slices do not
// constrain.
type Query struct {
	CaseIDs       []string
	Jurisdictions []string
	CaseTypes     []string
	TaskTypes     []string
	States        []State
	CreatedAfter  *time.Time
}

type Repository interface {
	Insert(ctx context.Context, t Task) error
	GetByID(ctx context.Context, id string) (Task, error)
	// LockByID acquires the per-task row lock for the rest of the
	// surrounding transaction before returning the current state.
	LockByID(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, t Task) error
	FindIDs(ctx context.Context, q Query) ([]string, error)
	// PendingReconfigureIDs lists tasks whose reconfigure request is at
	// least minAge old, oldest request first.
	PendingReconfigureIDs(ctx context.Context, now time.Time, minAge time.Duration, limit int) ([]string, error)
	AppendHistory(ctx context.Context, rec HistoryRecord) error
	History(ctx context.Context, taskID string) ([]HistoryRecord, error)
}
