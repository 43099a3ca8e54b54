package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/operation"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/modules/tasks/services"
)

func newOperationFixture(t *testing.T) (*fixture, *services.OperationService) {
	t.Helper()
	f := newFixture(t)
	ops := services.NewOperationService(f.repo, f.svc, 0)
	return f, ops
}

func TestOperationService_MarkToReconfigure(t *testing.T) {
	f, ops := newOperationFixture(t)
	f.initiate(t, "task-1")
	f.initiate(t, "task-2")
	f.initiate(t, "task-3")
	_, err := f.svc.Cancel(testCtx(), "supervisor", "task-3")
	require.NoError(t, err)

	op := operation.New(operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"))
	res, err := ops.Perform(testCtx(), op)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Failures)

	marked, err := f.repo.GetByID(testCtx(), "task-1")
	require.NoError(t, err)
	require.NotNil(t, marked.ReconfigureRequestTime)

	// Cancelled task is untouched.
	cancelled, err := f.repo.GetByID(testCtx(), "task-3")
	require.NoError(t, err)
	assert.Nil(t, cancelled.ReconfigureRequestTime)

	t.Run("SecondRunSkipsMarkedTasks", func(t *testing.T) {
		res, err := ops.Perform(testCtx(), operation.New(
			operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
		))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Processed)
		assert.Equal(t, 2, res.Skipped)
	})

	t.Run("UnknownFilterKey", func(t *testing.T) {
		_, err := ops.Perform(testCtx(), operation.New(
			operation.KindMarkToReconfigure, operation.In("bogus", "x"),
		))
		var serr *services.ServiceError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 400, serr.Status)
	})
}

func TestOperationService_ExecuteReconfigure(t *testing.T) {
	f, ops := newOperationFixture(t)
	for _, id := range []string{"task-1", "task-2", "task-3", "task-4", "task-5"} {
		f.initiate(t, id)
	}
	_, err := ops.Perform(testCtx(), operation.New(
		operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
	))
	require.NoError(t, err)

	// Reconfiguration picks up a changed decision-table output.
	f.configs.cfg.Title = "Review Appeal v2"

	op := operation.New(operation.KindExecuteReconfigure)
	op.MaxTasks = 2
	res, err := ops.Perform(testCtx(), op)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Len(t, res.Outstanding, 3)
	assert.Empty(t, res.Failures)

	reconfigured, err := f.repo.GetByID(testCtx(), "task-1")
	require.NoError(t, err)
	assert.Nil(t, reconfigured.ReconfigureRequestTime)
	assert.Equal(t, "Review Appeal v2", reconfigured.Title)
	require.NotNil(t, reconfigured.LastReconfiguredAt)

	untouched, err := f.repo.GetByID(testCtx(), "task-4")
	require.NoError(t, err)
	assert.NotNil(t, untouched.ReconfigureRequestTime)
	assert.Equal(t, "Review Appeal", untouched.Title)

	t.Run("DrainRemaining", func(t *testing.T) {
		res, err := ops.Perform(testCtx(), operation.New(operation.KindExecuteReconfigure))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Processed)
		assert.Empty(t, res.Outstanding)
	})

	t.Run("NothingPendingIsNoOp", func(t *testing.T) {
		res, err := ops.Perform(testCtx(), operation.New(operation.KindExecuteReconfigure))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Processed)
		assert.Empty(t, res.Outstanding)
	})
}

func TestOperationService_ExecuteReconfigure_RespectsRetryWindow(t *testing.T) {
	f, ops := newOperationFixture(t)
	f.initiate(t, "task-1")
	_, err := ops.Perform(testCtx(), operation.New(
		operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
	))
	require.NoError(t, err)

	// The request was made just now; a windowed run leaves it for later.
	op := operation.New(operation.KindExecuteReconfigure)
	op.RetryWindowHours = 2
	res, err := ops.Perform(testCtx(), op)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Outstanding)

	still, err := f.repo.GetByID(testCtx(), "task-1")
	require.NoError(t, err)
	assert.NotNil(t, still.ReconfigureRequestTime)
}

func TestOperationService_ExecuteReconfigure_FailureIsolation(t *testing.T) {
	f, ops := newOperationFixture(t)
	f.initiate(t, "task-1")
	f.initiate(t, "task-2")
	_, err := ops.Perform(testCtx(), operation.New(
		operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
	))
	require.NoError(t, err)

	// First task fails its configuration call, second succeeds.
	calls := 0
	f.configs.errFn = func() error {
		calls++
		if calls == 1 {
			return assert.AnError
		}
		return nil
	}

	res, err := ops.Perform(testCtx(), operation.New(operation.KindExecuteReconfigure))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "task-1", res.Failures[0].TaskID)

	// The failed task stays marked for a retry run.
	failed, err := f.repo.GetByID(testCtx(), "task-1")
	require.NoError(t, err)
	assert.NotNil(t, failed.ReconfigureRequestTime)
}

func TestOperationService_ReconfigureFailures(t *testing.T) {
	f, ops := newOperationFixture(t)
	f.initiate(t, "task-1")
	f.initiate(t, "task-2")
	_, err := ops.Perform(testCtx(), operation.New(
		operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
	))
	require.NoError(t, err)

	t.Run("InsideRetryWindow", func(t *testing.T) {
		op := operation.New(operation.KindExecuteReconfigureFailures)
		op.RetryWindowHours = 2
		res, err := ops.Perform(testCtx(), op)
		require.NoError(t, err)
		assert.Empty(t, res.Failures)
	})

	t.Run("PastRetryWindow", func(t *testing.T) {
		op := operation.New(operation.KindExecuteReconfigureFailures)
		op.RetryWindowHours = 0
		res, err := ops.Perform(testCtx(), op)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"task-1", "task-2"}, res.FailedTaskIDs())
	})
}

func TestOperationService_ReconfigureReappliesAutoAssignment(t *testing.T) {
	f, ops := newOperationFixture(t)
	f.configs.cfg.Roles = []access.TaskRole{caseWorkerRole(true), supervisorRole()}
	created := f.initiate(t, "task-1")
	require.Equal(t, task.StateUnassigned, created.State)

	_, err := ops.Perform(testCtx(), operation.New(
		operation.KindMarkToReconfigure, operation.In(services.FilterCaseID, "case-100"),
	))
	require.NoError(t, err)

	// A candidate has become available since initiation.
	f.roles.candidates = []string{"user-a"}
	res, err := ops.Perform(testCtx(), operation.New(operation.KindExecuteReconfigure))
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	reconfigured, err := f.repo.GetByID(testCtx(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StateAssigned, reconfigured.State)
	assert.Equal(t, "user-a", reconfigured.Assignee)
	assert.True(t, reconfigured.AutoAssigned)
}

func TestOperationService_InvalidKind(t *testing.T) {
	_, ops := newOperationFixture(t)
	_, err := ops.Perform(testCtx(), operation.Operation{Kind: "NOPE"})
	var serr *services.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 400, serr.Status)
	assert.Equal(t, "OPERATION_INVALID", serr.Code)
}
