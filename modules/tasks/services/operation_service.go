package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/operation"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/pkg/composables"
)

// Filter keys accepted by bulk operations.
const (
	FilterCaseID       = "case_id"
	FilterJurisdiction = "jurisdiction"
	FilterCaseType     = "case_type"
	FilterTaskType     = "task_type"
	FilterCreated      = "created"
)

// OperationService runs filter-driven bulk work over tasks. Every task is
// handled in its own transaction so one failure never poisons the rest of
// the batch.
type OperationService struct {
	repo      task.Repository
	tasks     *TaskService
	runBudget time.Duration
	now       func() time.Time
}

func NewOperationService(repo task.Repository, tasks *TaskService, runBudget time.Duration) *OperationService {
	return &OperationService{
		repo:      repo,
		tasks:     tasks,
		runBudget: runBudget,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Perform dispatches on the operation kind and returns the run report. A
// non-nil error means the run itself could not start; per-task failures
// are reported inside the result.
func (s *OperationService) Perform(ctx context.Context, op operation.Operation) (operation.Result, error) {
	if !op.Kind.Valid() {
		return operation.Result{}, newServiceError(400, "OPERATION_INVALID", "unknown operation kind", nil)
	}
	log := composables.UseLogger(ctx).WithFields(logrus.Fields{"run_id": op.RunID, "kind": op.Kind})
	log.Info("bulk operation started")

	var (
		res operation.Result
		err error
	)
	switch op.Kind {
	case operation.KindMarkToReconfigure:
		res, err = s.markToReconfigure(ctx, op)
	case operation.KindExecuteReconfigure:
		res, err = s.executeReconfigure(ctx, op)
	case operation.KindExecuteReconfigureFailures:
		res, err = s.reconfigureFailures(ctx, op)
	}
	if err != nil {
		log.WithError(err).Error("bulk operation failed")
		return operation.Result{}, err
	}
	log.WithFields(logrus.Fields{
		"processed":   res.Processed,
		"skipped":     res.Skipped,
		"outstanding": len(res.Outstanding),
		"failures":    len(res.Failures),
	}).Info("bulk operation finished")
	return res, nil
}

// markToReconfigure flags live tasks matching the filters. Already
// marked and non-assignable tasks are counted as skipped.
func (s *OperationService) markToReconfigure(ctx context.Context, op operation.Operation) (operation.Result, error) {
	q, err := queryFromFilters(op.Filters)
	if err != nil {
		return operation.Result{}, err
	}
	q.States = []task.State{task.StateAssigned, task.StateUnassigned}

	ids, err := s.repo.FindIDs(ctx, q)
	if err != nil {
		return operation.Result{}, err
	}

	res := operation.Result{RunID: op.RunID, Kind: op.Kind}
	budget := s.deadline()
	for i, id := range ids {
		if s.exceeded(budget) || (op.MaxTasks > 0 && res.Processed >= op.MaxTasks) {
			res.Outstanding = append(res.Outstanding, ids[i:]...)
			break
		}
		err := composables.InTx(ctx, func(txCtx context.Context) error {
			t, err := s.repo.LockByID(txCtx, id)
			if err != nil {
				return mapDomainError(err)
			}
			next, rec, changed := t.MarkReconfigure(s.now())
			if !changed {
				res.Skipped++
				recordOperationTask(string(op.Kind), "skipped")
				return nil
			}
			if err := s.repo.Update(txCtx, next); err != nil {
				return err
			}
			if err := s.repo.AppendHistory(txCtx, rec); err != nil {
				return err
			}
			res.Processed++
			recordOperationTask(string(op.Kind), "processed")
			return nil
		})
		if err != nil {
			s.failTask(ctx, &res, op, id, err)
		}
	}
	return res, nil
}

// executeReconfigure re-runs configuration for marked tasks, oldest
// request first. Requests younger than the retry window are left for a
// later run.
func (s *OperationService) executeReconfigure(ctx context.Context, op operation.Operation) (operation.Result, error) {
	limit := op.MaxTasks
	window := time.Duration(op.RetryWindowHours) * time.Hour
	ids, err := s.repo.PendingReconfigureIDs(ctx, s.now(), window, 0)
	if err != nil {
		return operation.Result{}, err
	}

	res := operation.Result{RunID: op.RunID, Kind: op.Kind}
	budget := s.deadline()
	for i, id := range ids {
		if s.exceeded(budget) || (limit > 0 && res.Processed+res.Skipped >= limit) {
			res.Outstanding = append(res.Outstanding, ids[i:]...)
			break
		}
		err := composables.InTx(ctx, func(txCtx context.Context) error {
			_, changed, err := s.tasks.reconfigureOne(txCtx, id, op.RunID.String())
			if err != nil {
				return err
			}
			if !changed {
				res.Skipped++
				recordOperationTask(string(op.Kind), "skipped")
				return nil
			}
			res.Processed++
			recordOperationTask(string(op.Kind), "processed")
			return nil
		})
		if err != nil {
			s.failTask(ctx, &res, op, id, err)
		}
	}
	return res, nil
}

// reconfigureFailures scans for tasks whose reconfigure request has been
// pending longer than the retry window and reports them for alerting.
// Nothing is mutated.
func (s *OperationService) reconfigureFailures(ctx context.Context, op operation.Operation) (operation.Result, error) {
	window := time.Duration(op.RetryWindowHours) * time.Hour
	ids, err := s.repo.PendingReconfigureIDs(ctx, s.now(), window, op.MaxTasks)
	if err != nil {
		return operation.Result{}, err
	}
	res := operation.Result{RunID: op.RunID, Kind: op.Kind}
	for _, id := range ids {
		res.Failures = append(res.Failures, operation.TaskFailure{
			TaskID: id,
			Reason: "reconfigure request still pending past retry window",
		})
		recordOperationTask(string(op.Kind), "failed")
	}
	if len(res.Failures) > 0 {
		composables.UseLogger(ctx).WithFields(logrus.Fields{
			"run_id": op.RunID,
			"tasks":  res.FailedTaskIDs(),
		}).Warn("tasks stuck pending reconfiguration")
	}
	return res, nil
}

func (s *OperationService) failTask(ctx context.Context, res *operation.Result, op operation.Operation, id string, err error) {
	res.Failures = append(res.Failures, operation.TaskFailure{TaskID: id, Reason: err.Error()})
	recordOperationTask(string(op.Kind), "failed")
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"run_id":  op.RunID,
		"kind":    op.Kind,
		"task_id": id,
	}).WithError(err).Warn("bulk operation task failed")
}

func (s *OperationService) deadline() time.Time {
	if s.runBudget <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.runBudget)
}

func (s *OperationService) exceeded(deadline time.Time) bool {
	return !deadline.IsZero() && s.now().After(deadline)
}

func queryFromFilters(filters []operation.Filter) (task.Query, error) {
	var q task.Query
	for _, f := range filters {
		switch f.Key {
		case FilterCaseID:
			q.CaseIDs = append(q.CaseIDs, f.Values...)
		case FilterJurisdiction:
			q.Jurisdictions = append(q.Jurisdictions, f.Values...)
		case FilterCaseType:
			q.CaseTypes = append(q.CaseTypes, f.Values...)
		case FilterTaskType:
			q.TaskTypes = append(q.TaskTypes, f.Values...)
		case FilterCreated:
			if f.Operator != operation.OperatorAfter || len(f.Values) != 1 {
				return task.Query{}, newServiceError(400, "OPERATION_INVALID", "created filter requires a single AFTER value", nil)
			}
			at, err := time.Parse(time.RFC3339, f.Values[0])
			if err != nil {
				return task.Query{}, newServiceError(400, "OPERATION_INVALID", "created filter value must be RFC3339", err)
			}
			q.CreatedAfter = &at
		default:
			return task.Query{}, newServiceError(400, "OPERATION_INVALID", "unknown filter key: "+f.Key, nil)
		}
	}
	return q, nil
}
