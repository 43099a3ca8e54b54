package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/pkg/composables"
)

// TaskRepository persists tasks and their history. It is stateless; the
// transaction comes from the context.
type TaskRepository struct{}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

const taskColumns = `
	id, task_type, name, title, description,
	jurisdiction, case_id, case_type, location, region,
	role_category, work_type, classification, access_categories,
	major_priority, minor_priority, priority_date, due_date, assignment_expiry,
	assignee, state, auto_assigned,
	last_updated_action, last_updated_user, last_updated_at,
	reconfigure_request_time, last_reconfigured_at,
	termination_reason, termination_process,
	roles, additional_properties, warnings, created_at`

func (r *TaskRepository) Insert(ctx context.Context, t task.Task) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	roles, props, warnings, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10,
	$11, $12, $13, $14,
	$15, $16, $17, $18, $19,
	$20, $21, $22,
	$23, $24, $25,
	$26, $27,
	$28, $29,
	$30, $31, $32, $33
)`,
		t.ID, t.Type, t.Name, t.Title, t.Description,
		t.Jurisdiction, t.CaseID, t.CaseType, t.Location, t.Region,
		t.RoleCategory, t.WorkType, string(t.Classification), t.AccessCategories,
		t.MajorPriority, t.MinorPriority, t.PriorityDate, t.DueDate, t.AssignmentExpiry,
		t.Assignee, string(t.State), t.AutoAssigned,
		string(t.LastUpdatedAction), t.LastUpdatedUser, nullableTime(t.LastUpdatedAt),
		t.ReconfigureRequestTime, t.LastReconfiguredAt,
		string(t.TerminationReason), t.TerminationProcess,
		roles, props, warnings, t.CreatedAt,
	)
	return mapPgError(err)
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (task.Task, error) {
	return r.get(ctx, id, false)
}

// LockByID takes the row lock for the rest of the transaction so
// concurrent transitions on the same task serialize.
func (r *TaskRepository) LockByID(ctx context.Context, id string) (task.Task, error) {
	return r.get(ctx, id, true)
}

func (r *TaskRepository) get(ctx context.Context, id string, forUpdate bool) (task.Task, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return task.Task{}, err
	}
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanTask(tx.QueryRow(ctx, q, id))
}

func (r *TaskRepository) Update(ctx context.Context, t task.Task) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	roles, props, warnings, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE tasks SET
	name = $2, title = $3, description = $4,
	role_category = $5, work_type = $6,
	major_priority = $7, minor_priority = $8,
	priority_date = $9, due_date = $10, assignment_expiry = $11,
	assignee = $12, state = $13, auto_assigned = $14,
	last_updated_action = $15, last_updated_user = $16, last_updated_at = $17,
	reconfigure_request_time = $18, last_reconfigured_at = $19,
	termination_reason = $20, termination_process = $21,
	roles = $22, additional_properties = $23, warnings = $24
WHERE id = $1`,
		t.ID,
		t.Name, t.Title, t.Description,
		t.RoleCategory, t.WorkType,
		t.MajorPriority, t.MinorPriority,
		t.PriorityDate, t.DueDate, t.AssignmentExpiry,
		t.Assignee, string(t.State), t.AutoAssigned,
		string(t.LastUpdatedAction), t.LastUpdatedUser, nullableTime(t.LastUpdatedAt),
		t.ReconfigureRequestTime, t.LastReconfiguredAt,
		string(t.TerminationReason), t.TerminationProcess,
		roles, props, warnings,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) FindIDs(ctx context.Context, q task.Query) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(q.CaseIDs) > 0 {
		where = append(where, "case_id = ANY("+arg(q.CaseIDs)+")")
	}
	if len(q.Jurisdictions) > 0 {
		where = append(where, "jurisdiction = ANY("+arg(q.Jurisdictions)+")")
	}
	if len(q.CaseTypes) > 0 {
		where = append(where, "case_type = ANY("+arg(q.CaseTypes)+")")
	}
	if len(q.TaskTypes) > 0 {
		where = append(where, "task_type = ANY("+arg(q.TaskTypes)+")")
	}
	if len(q.States) > 0 {
		states := make([]string, 0, len(q.States))
		for _, s := range q.States {
			states = append(states, string(s))
		}
		where = append(where, "state = ANY("+arg(states)+")")
	}
	if q.CreatedAfter != nil {
		where = append(where, "created_at > "+arg(*q.CreatedAfter))
	}

	sql := `SELECT id FROM tasks`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at ASC, id ASC`

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *TaskRepository) PendingReconfigureIDs(ctx context.Context, now time.Time, minAge time.Duration, limit int) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	sql := `
SELECT id FROM tasks
WHERE reconfigure_request_time IS NOT NULL
	AND reconfigure_request_time <= $1
ORDER BY reconfigure_request_time ASC, id ASC`
	args := []any{now.Add(-minAge)}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *TaskRepository) AppendHistory(ctx context.Context, rec task.HistoryRecord) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO task_history (task_id, state, assignee, updated_by, updated_at, action)
VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.TaskID, string(rec.State), rec.Assignee, rec.UpdatedBy, rec.UpdatedAt, string(rec.Action),
	)
	return mapPgError(err)
}

func (r *TaskRepository) History(ctx context.Context, taskID string) ([]task.HistoryRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT task_id, state, assignee, updated_by, updated_at, action
FROM task_history
WHERE task_id = $1
ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]task.HistoryRecord, 0, 16)
	for rows.Next() {
		var (
			rec    task.HistoryRecord
			state  string
			action string
		)
		if err := rows.Scan(&rec.TaskID, &state, &rec.Assignee, &rec.UpdatedBy, &rec.UpdatedAt, &action); err != nil {
			return nil, err
		}
		rec.State = task.State(state)
		rec.Action = task.Action(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var (
		t                                   task.Task
		classification, state               string
		lastAction, terminationReason       string
		lastUpdatedAt                       *time.Time
		rolesJSON, propsJSON, warningsJSON  []byte
	)
	err := row.Scan(
		&t.ID, &t.Type, &t.Name, &t.Title, &t.Description,
		&t.Jurisdiction, &t.CaseID, &t.CaseType, &t.Location, &t.Region,
		&t.RoleCategory, &t.WorkType, &classification, &t.AccessCategories,
		&t.MajorPriority, &t.MinorPriority, &t.PriorityDate, &t.DueDate, &t.AssignmentExpiry,
		&t.Assignee, &state, &t.AutoAssigned,
		&lastAction, &t.LastUpdatedUser, &lastUpdatedAt,
		&t.ReconfigureRequestTime, &t.LastReconfiguredAt,
		&terminationReason, &t.TerminationProcess,
		&rolesJSON, &propsJSON, &warningsJSON, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	t.Classification = access.Classification(classification)
	t.State = task.State(state)
	t.LastUpdatedAction = task.Action(lastAction)
	t.TerminationReason = task.TerminationReason(terminationReason)
	if lastUpdatedAt != nil {
		t.LastUpdatedAt = *lastUpdatedAt
	}
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &t.Roles); err != nil {
			return task.Task{}, err
		}
	}
	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &t.AdditionalProperties); err != nil {
			return task.Task{}, err
		}
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &t.Warnings); err != nil {
			return task.Task{}, err
		}
	}
	return t, nil
}

func marshalTaskJSON(t task.Task) (roles, props, warnings []byte, err error) {
	roles, err = json.Marshal(t.Roles)
	if err != nil {
		return nil, nil, nil, err
	}
	props, err = json.Marshal(t.AdditionalProperties)
	if err != nil {
		return nil, nil, nil, err
	}
	warnings, err = json.Marshal(t.Warnings)
	if err != nil {
		return nil, nil, nil, err
	}
	return roles, props, warnings, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return task.ErrAlreadyInitiated
	}
	return err
}
