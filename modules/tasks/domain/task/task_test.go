package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newConfigured(t *testing.T, autoAssign bool) task.Task {
	t.Helper()
	tk := task.New("task-1", "reviewAppeal", "Review Appeal", "case-100", testNow)
	tk = tk.ApplyConfiguration(task.Configuration{
		Title:    "Review Appeal",
		WorkType: "decision_making_work",
		Roles: []access.TaskRole{
			{
				Name:           "case-worker",
				Permissions:    permissions.NewSet(permissions.Read, permissions.Own, permissions.Execute, permissions.Claim),
				AutoAssignable: autoAssign,
			},
		},
	})
	tk, rec, err := tk.Configured("system", testNow)
	require.NoError(t, err)
	require.Equal(t, task.ActionConfigure, rec.Action)
	return tk
}

func TestTask_Configured(t *testing.T) {
	t.Run("WithoutAutoAssignableRole", func(t *testing.T) {
		tk := newConfigured(t, false)
		assert.Equal(t, task.StateUnassigned, tk.State)
	})

	t.Run("WithAutoAssignableRole", func(t *testing.T) {
		tk := newConfigured(t, true)
		assert.Equal(t, task.StatePendingAutoAssign, tk.State)
	})

	t.Run("Twice", func(t *testing.T) {
		tk := newConfigured(t, false)
		_, _, err := tk.Configured("system", testNow)
		require.ErrorIs(t, err, task.ErrInvalidTransition)
	})
}

func TestTask_Claim(t *testing.T) {
	tk := newConfigured(t, false)

	claimed, rec, err := tk.Claim("user-a", testNow)
	require.NoError(t, err)
	assert.Equal(t, task.StateAssigned, claimed.State)
	assert.Equal(t, "user-a", claimed.Assignee)
	assert.Equal(t, task.ActionClaim, rec.Action)
	assert.Equal(t, "user-a", rec.UpdatedBy)

	// The original value is untouched.
	assert.Equal(t, task.StateUnassigned, tk.State)
	assert.Empty(t, tk.Assignee)

	t.Run("AlreadyClaimed", func(t *testing.T) {
		_, _, err := claimed.Claim("user-b", testNow)
		require.ErrorIs(t, err, task.ErrAlreadyClaimed)
		assert.Equal(t, "user-a", claimed.Assignee)
	})

	t.Run("Unconfigured", func(t *testing.T) {
		fresh := task.New("task-2", "reviewAppeal", "Review Appeal", "case-100", testNow)
		_, _, err := fresh.Claim("user-a", testNow)
		require.ErrorIs(t, err, task.ErrNotAssignable)
	})
}

func TestTask_AssignAndUnassign(t *testing.T) {
	tk := newConfigured(t, false)

	assigned, rec, err := tk.AssignTo("user-b", "supervisor", task.ActionAssign, testNow)
	require.NoError(t, err)
	assert.Equal(t, "user-b", assigned.Assignee)
	assert.Equal(t, task.ActionAssign, rec.Action)
	assert.Equal(t, "supervisor", rec.UpdatedBy)

	t.Run("Reassign", func(t *testing.T) {
		re, _, err := assigned.AssignTo("user-c", "supervisor", task.ActionAssign, testNow)
		require.NoError(t, err)
		assert.Equal(t, "user-c", re.Assignee)
		assert.Equal(t, task.StateAssigned, re.State)
	})

	t.Run("EmptyAssignee", func(t *testing.T) {
		_, _, err := tk.AssignTo("", "supervisor", task.ActionAssign, testNow)
		require.ErrorIs(t, err, task.ErrInvalidTransition)
	})

	t.Run("Unassign", func(t *testing.T) {
		un, rec, err := assigned.Unassign("supervisor", task.ActionUnassign, testNow)
		require.NoError(t, err)
		assert.Equal(t, task.StateUnassigned, un.State)
		assert.Empty(t, un.Assignee)
		assert.Equal(t, task.ActionUnassign, rec.Action)
	})

	t.Run("UnassignUnassigned", func(t *testing.T) {
		_, _, err := tk.Unassign("supervisor", task.ActionUnassign, testNow)
		require.ErrorIs(t, err, task.ErrNotAssignable)
	})

	t.Run("AutoAssign", func(t *testing.T) {
		pending := newConfigured(t, true)
		auto, rec, err := pending.AssignTo("user-d", "system", task.ActionAutoAssign, testNow)
		require.NoError(t, err)
		assert.True(t, auto.AutoAssigned)
		assert.Equal(t, task.ActionAutoAssign, rec.Action)
	})
}

func TestTask_Complete(t *testing.T) {
	tk := newConfigured(t, false)
	claimed, _, err := tk.Claim("user-a", testNow)
	require.NoError(t, err)

	done, rec, err := claimed.Complete("user-a", testNow)
	require.NoError(t, err)
	assert.Equal(t, task.StateCompleted, done.State)
	assert.Equal(t, task.ActionComplete, rec.Action)
	// Only assigned tasks carry an assignee; the trail keeps who held it.
	assert.Empty(t, done.Assignee)
	assert.Equal(t, "user-a", rec.Assignee)
	assert.NoError(t, done.Validate())

	t.Run("Unassigned", func(t *testing.T) {
		_, _, err := tk.Complete("user-a", testNow)
		require.ErrorIs(t, err, task.ErrNotAssignable)
	})

	t.Run("Terminal", func(t *testing.T) {
		_, _, err := done.Complete("user-a", testNow)
		require.ErrorIs(t, err, task.ErrTaskTerminal)
	})
}

func TestTask_CancelAndTerminate(t *testing.T) {
	tk := newConfigured(t, false)

	cancelled, rec, err := tk.Cancel("supervisor", testNow)
	require.NoError(t, err)
	assert.Equal(t, task.StateCancelled, cancelled.State)
	assert.Equal(t, task.ActionCancel, rec.Action)

	t.Run("CancelTerminal", func(t *testing.T) {
		_, _, err := cancelled.Cancel("supervisor", testNow)
		require.ErrorIs(t, err, task.ErrTaskTerminal)
	})

	t.Run("CancelAssignedClearsAssignee", func(t *testing.T) {
		claimed, _, err := tk.Claim("user-a", testNow)
		require.NoError(t, err)
		cancelled, rec, err := claimed.Cancel("supervisor", testNow)
		require.NoError(t, err)
		assert.Empty(t, cancelled.Assignee)
		assert.Equal(t, "user-a", rec.Assignee)
		assert.NoError(t, cancelled.Validate())
	})

	t.Run("TerminateLive", func(t *testing.T) {
		term, _, err := tk.Terminate(task.ReasonDeleted, "proc-1", testNow)
		require.NoError(t, err)
		assert.Equal(t, task.StateTerminated, term.State)
		assert.Equal(t, task.ReasonDeleted, term.TerminationReason)
		assert.Equal(t, "proc-1", term.TerminationProcess)
	})

	t.Run("TerminateCompletedWithCompletedReason", func(t *testing.T) {
		claimed, _, err := tk.Claim("user-a", testNow)
		require.NoError(t, err)
		done, _, err := claimed.Complete("user-a", testNow)
		require.NoError(t, err)

		term, _, err := done.Terminate(task.ReasonCompleted, "proc-2", testNow)
		require.NoError(t, err)
		assert.Equal(t, task.StateTerminated, term.State)
		assert.Empty(t, term.Assignee)
		assert.NoError(t, term.Validate())

		_, _, err = done.Terminate(task.ReasonDeleted, "proc-2", testNow)
		require.ErrorIs(t, err, task.ErrTaskTerminal)
	})
}

func TestTask_MarkReconfigure(t *testing.T) {
	tk := newConfigured(t, false)

	marked, rec, changed := tk.MarkReconfigure(testNow)
	require.True(t, changed)
	require.NotNil(t, marked.ReconfigureRequestTime)
	assert.Equal(t, testNow, *marked.ReconfigureRequestTime)
	assert.Equal(t, task.ActionMarkReconfigure, rec.Action)

	t.Run("AlreadyMarked", func(t *testing.T) {
		again, _, changed := marked.MarkReconfigure(testNow.Add(time.Hour))
		assert.False(t, changed)
		assert.Equal(t, testNow, *again.ReconfigureRequestTime)
	})

	t.Run("TerminalTask", func(t *testing.T) {
		cancelled, _, err := tk.Cancel("supervisor", testNow)
		require.NoError(t, err)
		_, _, changed := cancelled.MarkReconfigure(testNow)
		assert.False(t, changed)
	})
}

func TestTask_ApplyConfiguration(t *testing.T) {
	major := 3000
	due := testNow.Add(48 * time.Hour)
	tk := task.New("task-1", "reviewAppeal", "Review Appeal", "case-100", testNow)
	tk = tk.ApplyConfiguration(task.Configuration{
		Title:         "Review Appeal",
		WorkType:      "decision_making_work",
		MajorPriority: &major,
		DueDate:       &due,
		AdditionalProperties: map[string]string{
			"key1": "value1",
			"key2": "value2",
		},
	})

	require.Equal(t, 3000, tk.MajorPriority)
	require.NotNil(t, tk.DueDate)

	t.Run("AbsentAttributesKeepLastGoodValue", func(t *testing.T) {
		newMajor := 1000
		merged := tk.ApplyConfiguration(task.Configuration{
			MajorPriority:        &newMajor,
			AdditionalProperties: map[string]string{"key2": "updated"},
		})
		assert.Equal(t, 1000, merged.MajorPriority)
		assert.Equal(t, "Review Appeal", merged.Title)
		assert.Equal(t, "decision_making_work", merged.WorkType)
		assert.Equal(t, due, *merged.DueDate)
		assert.Equal(t, "value1", merged.AdditionalProperties["key1"])
		assert.Equal(t, "updated", merged.AdditionalProperties["key2"])
		// Source map is untouched.
		assert.Equal(t, "value2", tk.AdditionalProperties["key2"])
	})

	t.Run("Reconfiguration", func(t *testing.T) {
		marked := tk
		marked.State = task.StateUnassigned
		marked, _, changed := marked.MarkReconfigure(testNow)
		require.True(t, changed)

		later := testNow.Add(2 * time.Hour)
		re, rec := marked.ApplyReconfiguration(task.Configuration{Title: "Review Appeal v2"}, "system", later)
		assert.Equal(t, "Review Appeal v2", re.Title)
		assert.Nil(t, re.ReconfigureRequestTime)
		require.NotNil(t, re.LastReconfiguredAt)
		assert.Equal(t, later, *re.LastReconfiguredAt)
		assert.Equal(t, task.ActionReconfigure, rec.Action)
	})
}

func TestTask_Validate(t *testing.T) {
	tk := newConfigured(t, false)
	require.NoError(t, tk.Validate())

	bad := tk
	bad.Assignee = "ghost"
	require.Error(t, bad.Validate())
}
