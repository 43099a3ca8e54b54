package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
	"github.com/caseflow-hq/caseflow/modules/tasks/permissions"
	"github.com/caseflow-hq/caseflow/pkg/composables"
	"github.com/caseflow-hq/caseflow/pkg/eventbus"
)

// Requirement sets per action. Broad permissions (Own, Execute, Manage)
// imply the granular ones they predate.
var (
	readRequirements     = access.RequireAny(permissions.Read, permissions.Own, permissions.Execute, permissions.Manage)
	claimRequirements    = access.RequireAny(permissions.Claim, permissions.Own, permissions.Execute)
	assignerRequirements = access.RequireAny(permissions.Assign, permissions.UnclaimAssign, permissions.Manage)
	assigneeRequirements = access.RequireAny(permissions.Own, permissions.Execute)
	selfReleaseReqs      = access.RequireAny(permissions.Unassign)
	unassignRequirements = access.RequireAny(permissions.Manage, permissions.Cancel)
	completeRequirements = access.RequireAny(permissions.Own, permissions.Execute, permissions.CompleteOwn)
	managerialComplete   = access.RequireAny(permissions.Complete, permissions.Manage)
	cancelRequirements   = access.RequireAny(permissions.Cancel, permissions.Manage)
	cancelOwnReqs        = access.RequireAny(permissions.CancelOwn, permissions.Cancel, permissions.Manage)
)

const systemUser = "system"

type TaskService struct {
	repo     task.Repository
	configs  ConfigurationProvider
	cases    CaseDataProvider
	roles    RoleAssignmentProvider
	notifier ProcessEngineNotifier
	bus      eventbus.EventBus
	log      *logrus.Logger

	privilegedComplete bool
	now                func() time.Time
}

type TaskServiceOptions struct {
	Repo               task.Repository
	Configs            ConfigurationProvider
	Cases              CaseDataProvider
	Roles              RoleAssignmentProvider
	Notifier           ProcessEngineNotifier
	Bus                eventbus.EventBus
	Log                *logrus.Logger
	PrivilegedComplete bool
	Now                func() time.Time
}

func NewTaskService(opts TaskServiceOptions) *TaskService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &TaskService{
		repo:               opts.Repo,
		configs:            opts.Configs,
		cases:              opts.Cases,
		roles:              opts.Roles,
		notifier:           opts.Notifier,
		bus:                opts.Bus,
		log:                opts.Log,
		privilegedComplete: opts.PrivilegedComplete,
		now:                opts.Now,
	}
}

type InitiateInput struct {
	TaskID   string
	TaskType string
	Name     string
	CaseID   string
	DueDate  *time.Time
}

// Initiate creates and configures a task for a case. Case data and
// configuration are fetched before the transaction; auto-assignment
// candidate lookups run under the row lock because they depend on the
// configured roles.
func (s *TaskService) Initiate(ctx context.Context, in InitiateInput) (task.Task, error) {
	if in.TaskID == "" || in.TaskType == "" || in.CaseID == "" {
		return task.Task{}, newServiceError(400, "TASK_INVALID_BODY", "task_id/task_type/case_id are required", nil)
	}

	caseData, err := s.cases.Case(ctx, in.CaseID)
	if err != nil {
		return task.Task{}, downstreamError("case data", err)
	}
	cfg, err := s.configs.Configure(ctx, in.TaskType, caseData.Jurisdiction, caseData.CaseType, caseData)
	if err != nil {
		return task.Task{}, downstreamError("task configuration", err)
	}

	now := s.now()
	t := task.New(in.TaskID, in.TaskType, in.Name, in.CaseID, now)
	t.Jurisdiction = caseData.Jurisdiction
	t.CaseType = caseData.CaseType
	t.Region = caseData.Region
	t.Location = caseData.Location
	t.Classification = classification(caseData.Classification)
	t.AccessCategories = caseData.AccessCategories
	t.DueDate = in.DueDate
	t = t.ApplyConfiguration(cfg)

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		if err := s.repo.Insert(txCtx, t); err != nil {
			return task.Task{}, mapDomainError(err)
		}
		next, rec, err := t.Configured(systemUser, now)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		if err := s.repo.AppendHistory(txCtx, rec); err != nil {
			return task.Task{}, err
		}
		if next.State == task.StatePendingAutoAssign {
			var changed bool
			next, rec, changed, err = s.autoAssign(txCtx, next)
			if err != nil {
				return task.Task{}, err
			}
			if changed {
				if err := s.repo.AppendHistory(txCtx, rec); err != nil {
					return task.Task{}, err
				}
			}
		}
		if err := s.store(txCtx, next); err != nil {
			return task.Task{}, err
		}
		return next, nil
	})
	recordTransition("initiate", err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskInitiatedEvent{Task: created, At: now})
	return created, nil
}

// autoAssign picks the first eligible candidate whose assignments grant
// Own or Execute on the task. With no eligible candidate a pending task
// lands in the unassigned state; an already unassigned task is left as
// is.
func (s *TaskService) autoAssign(ctx context.Context, t task.Task) (task.Task, task.HistoryRecord, bool, error) {
	var roleNames []string
	for _, r := range t.Roles {
		if r.AutoAssignable {
			roleNames = append(roleNames, r.Name)
		}
	}
	candidates, err := s.roles.CandidatesFor(ctx, roleNames, t.Jurisdiction)
	if err != nil {
		return task.Task{}, task.HistoryRecord{}, false, downstreamError("role assignments", err)
	}
	now := s.now()
	snap := t.AccessSnapshot()
	for _, candidate := range candidates {
		assignments, err := s.roles.AssignmentsFor(ctx, candidate)
		if err != nil {
			return task.Task{}, task.HistoryRecord{}, false, downstreamError("role assignments", err)
		}
		if !access.Evaluate(now, assignments, assigneeRequirements, snap) {
			continue
		}
		next, rec, err := t.AssignTo(candidate, systemUser, task.ActionAutoAssign, now)
		if err != nil {
			return task.Task{}, task.HistoryRecord{}, false, mapDomainError(err)
		}
		return next, rec, true, nil
	}
	if t.State != task.StatePendingAutoAssign {
		return t, task.HistoryRecord{}, false, nil
	}
	next, rec, err := t.Unassign(systemUser, task.ActionAutoAssign, now)
	if err != nil {
		return task.Task{}, task.HistoryRecord{}, false, mapDomainError(err)
	}
	return next, rec, true, nil
}

// Get returns the task if the actor holds a read-capable permission.
func (s *TaskService) Get(ctx context.Context, actorID, taskID string) (task.Task, error) {
	assignments, err := s.assignments(ctx, actorID)
	if err != nil {
		return task.Task{}, err
	}
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return task.Task{}, mapDomainError(err)
	}
	if err := s.verify(access.SideAssignee, actorID, assignments, t, readRequirements, "get"); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// History returns the audit trail, gated like Get.
func (s *TaskService) History(ctx context.Context, actorID, taskID string) ([]task.HistoryRecord, error) {
	if _, err := s.Get(ctx, actorID, taskID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, taskID)
}

func (s *TaskService) Claim(ctx context.Context, actorID, taskID string) (task.Task, error) {
	assignments, err := s.assignments(ctx, actorID)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		if err := s.verify(access.SideAssignee, actorID, assignments, t, claimRequirements, "claim"); err != nil {
			return task.Task{}, err
		}
		next, rec, err := t.Claim(actorID, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition("claim", err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskAssignedEvent{Task: updated, Assignee: actorID, By: actorID, At: updated.LastUpdatedAt})
	return updated, nil
}

// Assign hands the task to assignee on behalf of assigner. Both sides
// are verified: the assigner must be allowed to assign, the assignee must
// be able to work the task.
func (s *TaskService) Assign(ctx context.Context, assignerID, assigneeID, taskID string) (task.Task, error) {
	if assigneeID == "" {
		return task.Task{}, newServiceError(400, "TASK_INVALID_BODY", "assignee is required", nil)
	}
	assignerAsg, err := s.assignments(ctx, assignerID)
	if err != nil {
		return task.Task{}, err
	}
	assigneeAsg, err := s.assignments(ctx, assigneeID)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		if err := s.verify(access.SideAssigner, assignerID, assignerAsg, t, assignerRequirements, "assign"); err != nil {
			return task.Task{}, err
		}
		if err := s.verify(access.SideAssignee, assigneeID, assigneeAsg, t, assigneeRequirements, "assign"); err != nil {
			return task.Task{}, err
		}
		if t.State == task.StateAssigned && t.Assignee == assigneeID {
			return t, nil
		}
		next, rec, err := t.AssignTo(assigneeID, assignerID, task.ActionAssign, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition("assign", err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskAssignedEvent{Task: updated, Assignee: assigneeID, By: assignerID, At: updated.LastUpdatedAt})
	return updated, nil
}

// Unclaim releases the actor's own task. Releasing someone else's task
// requires the unassign permissions.
func (s *TaskService) Unclaim(ctx context.Context, actorID, taskID string) (task.Task, error) {
	return s.release(ctx, actorID, taskID, task.ActionUnclaim)
}

// Unassign removes the current assignee on managerial authority.
func (s *TaskService) Unassign(ctx context.Context, actorID, taskID string) (task.Task, error) {
	return s.release(ctx, actorID, taskID, task.ActionUnassign)
}

func (s *TaskService) release(ctx context.Context, actorID, taskID string, action task.Action) (task.Task, error) {
	assignments, err := s.assignments(ctx, actorID)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		reqs := unassignRequirements
		if t.Assignee == actorID {
			reqs = selfReleaseReqs
		}
		if err := s.verify(access.SideAssigner, actorID, assignments, t, reqs, string(action)); err != nil {
			return task.Task{}, err
		}
		next, rec, err := t.Unassign(actorID, action, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition(string(action), err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskUnassignedEvent{Task: updated, By: actorID, At: updated.LastUpdatedAt})
	return updated, nil
}

// CompleteOptions tunes completion on behalf of someone else.
type CompleteOptions struct {
	// AssignAndComplete takes the task over before completing it. Only
	// honored for privileged completions by an actor who does not hold
	// the task.
	AssignAndComplete bool
}

// Complete finishes the task and notifies the workflow engine. A task
// that already reached completion is absorbed as success so engine and
// user completion can race safely. An actor who is not the assignee
// needs the privileged complete gate plus the explicit
// assign-and-complete option; the task is then assigned to them and
// completed in the same transaction.
func (s *TaskService) Complete(ctx context.Context, actorID, taskID string, opts CompleteOptions) (task.Task, error) {
	assignments, err := s.assignments(ctx, actorID)
	if err != nil {
		return task.Task{}, err
	}
	var absorbed bool
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		if t.State == task.StateCompleted ||
			(t.State == task.StateTerminated && t.TerminationReason == task.ReasonCompleted) {
			absorbed = true
			return t, nil
		}
		reqs := completeRequirements
		if t.Assignee != actorID {
			if !s.privilegedComplete || !opts.AssignAndComplete {
				return task.Task{}, newServiceError(403, "TASK_FORBIDDEN", "task is not assigned to the acting user", nil)
			}
			reqs = managerialComplete
		}
		if err := s.verify(access.SideAssignee, actorID, assignments, t, reqs, "complete"); err != nil {
			return task.Task{}, err
		}
		if t.Assignee != actorID {
			assigned, rec, err := t.AssignTo(actorID, actorID, task.ActionAssign, s.now())
			if err != nil {
				return task.Task{}, mapDomainError(err)
			}
			if err := s.repo.AppendHistory(txCtx, rec); err != nil {
				return task.Task{}, err
			}
			t = assigned
		}
		next, rec, err := t.Complete(actorID, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition("complete", err)
	if err != nil {
		return task.Task{}, err
	}
	if absorbed {
		return updated, nil
	}
	s.publish(TaskCompletedEvent{Task: updated, By: actorID, At: updated.LastUpdatedAt})
	if err := s.notifier.NotifyCompleted(ctx, taskID, updated.LastUpdatedAt); err != nil {
		s.log.WithField("task_id", taskID).WithError(err).Error("completion notification failed")
	}
	return updated, nil
}

func (s *TaskService) Cancel(ctx context.Context, actorID, taskID string) (task.Task, error) {
	assignments, err := s.assignments(ctx, actorID)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		reqs := cancelRequirements
		if t.Assignee == actorID {
			reqs = cancelOwnReqs
		}
		if err := s.verify(access.SideAssignee, actorID, assignments, t, reqs, "cancel"); err != nil {
			return task.Task{}, err
		}
		next, rec, err := t.Cancel(actorID, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition("cancel", err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskCancelledEvent{Task: updated, By: actorID, At: updated.LastUpdatedAt})
	if err := s.notifier.NotifyCancelled(ctx, taskID, updated.LastUpdatedAt); err != nil {
		s.log.WithField("task_id", taskID).WithError(err).Error("cancellation notification failed")
	}
	return updated, nil
}

// Terminate is invoked by the workflow engine, so no role assignment
// verification applies. Terminating an already terminated task succeeds
// without effect.
func (s *TaskService) Terminate(ctx context.Context, taskID string, reason task.TerminationReason, processID string) (task.Task, error) {
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (task.Task, error) {
		t, err := s.repo.LockByID(txCtx, taskID)
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		if t.State == task.StateTerminated {
			return t, nil
		}
		next, rec, err := t.Terminate(reason, processID, s.now())
		if err != nil {
			return task.Task{}, mapDomainError(err)
		}
		return s.persist(txCtx, next, rec)
	})
	recordTransition("terminate", err)
	if err != nil {
		return task.Task{}, err
	}
	s.publish(TaskTerminatedEvent{Task: updated, Reason: reason, At: updated.LastUpdatedAt})
	return updated, nil
}

// reconfigureOne re-evaluates configuration for a marked task inside the
// caller's transaction. Unassigned tasks get another shot at
// auto-assignment; assigned tasks keep their assignee.
func (s *TaskService) reconfigureOne(ctx context.Context, taskID, runID string) (task.Task, bool, error) {
	t, err := s.repo.LockByID(ctx, taskID)
	if err != nil {
		return task.Task{}, false, mapDomainError(err)
	}
	if t.ReconfigureRequestTime == nil || !t.State.IsAssignable() {
		return t, false, nil
	}

	caseData, err := s.cases.Case(ctx, t.CaseID)
	if err != nil {
		return task.Task{}, false, downstreamError("case data", err)
	}
	cfg, err := s.configs.Configure(ctx, t.Type, t.Jurisdiction, t.CaseType, caseData)
	if err != nil {
		return task.Task{}, false, downstreamError("task configuration", err)
	}

	next, rec := t.ApplyReconfiguration(cfg, systemUser, s.now())
	if err := s.repo.AppendHistory(ctx, rec); err != nil {
		return task.Task{}, false, err
	}
	if next.State == task.StateUnassigned && next.HasAutoAssignableRole() {
		assigned, assignRec, changed, err := s.autoAssign(ctx, next)
		if err != nil {
			return task.Task{}, false, err
		}
		if changed {
			if err := s.repo.AppendHistory(ctx, assignRec); err != nil {
				return task.Task{}, false, err
			}
			next = assigned
		}
	}
	if err := s.store(ctx, next); err != nil {
		return task.Task{}, false, err
	}
	s.publish(TaskReconfiguredEvent{Task: next, RunID: runID, At: next.LastUpdatedAt})
	return next, true, nil
}

func (s *TaskService) persist(ctx context.Context, t task.Task, rec task.HistoryRecord) (task.Task, error) {
	if err := s.store(ctx, t); err != nil {
		return task.Task{}, err
	}
	if err := s.repo.AppendHistory(ctx, rec); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// store is the single write path for the aggregate; a task that fails
// its own invariant check never reaches the repository.
func (s *TaskService) store(ctx context.Context, t task.Task) error {
	if err := t.Validate(); err != nil {
		return mapDomainError(err)
	}
	return s.repo.Update(ctx, t)
}

func (s *TaskService) assignments(ctx context.Context, actorID string) ([]access.RoleAssignment, error) {
	if actorID == "" {
		return nil, newServiceError(400, "TASK_INVALID_BODY", "actor is required", nil)
	}
	assignments, err := s.roles.AssignmentsFor(ctx, actorID)
	if err != nil {
		return nil, downstreamError("role assignments", err)
	}
	return assignments, nil
}

func (s *TaskService) verify(side access.Side, actorID string, assignments []access.RoleAssignment, t task.Task, reqs access.Requirements, action string) error {
	if access.Evaluate(s.now(), assignments, reqs, t.AccessSnapshot()) {
		return nil
	}
	recordPermissionDenial(action)
	s.log.WithFields(logrus.Fields{
		"task_id":  t.ID,
		"actor_id": actorID,
		"action":   action,
		"required": reqs.String(),
	}).Warn("role assignment verification failed")
	return mapDomainError(access.NewVerificationError(side, t.ID, reqs))
}

func (s *TaskService) publish(event any) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}

func classification(raw string) access.Classification {
	switch access.Classification(raw) {
	case access.ClassificationPrivate:
		return access.ClassificationPrivate
	case access.ClassificationRestricted:
		return access.ClassificationRestricted
	default:
		return access.ClassificationPublic
	}
}
