package services

import (
	"context"
	"time"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/access"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/task"
)

// CaseData is the slice of a case record that task configuration and
// permission evaluation depend on.
type CaseData struct {
	ID               string            `json:"id"`
	CaseType         string            `json:"caseType"`
	Jurisdiction     string            `json:"jurisdiction"`
	Name             string            `json:"name"`
	Region           string            `json:"region"`
	Location         string            `json:"location"`
	Classification   string            `json:"securityClassification"`
	AccessCategories []string          `json:"accessCategories"`
	Data             map[string]string `json:"data"`
}

// ConfigurationProvider evaluates the decision tables that configure a
// task for its case.
type ConfigurationProvider interface {
	Configure(ctx context.Context, taskType, jurisdiction, caseType string, caseData CaseData) (task.Configuration, error)
}

// CaseDataProvider fetches case records from the case-data store.
type CaseDataProvider interface {
	Case(ctx context.Context, caseID string) (CaseData, error)
}

// RoleAssignmentProvider resolves the role assignments held by an actor.
type RoleAssignmentProvider interface {
	AssignmentsFor(ctx context.Context, actorID string) ([]access.RoleAssignment, error)
	// CandidatesFor lists actors eligible for auto-assignment of the
	// given role names, in preference order.
	CandidatesFor(ctx context.Context, roleNames []string, jurisdiction string) ([]string, error)
}

// ProcessEngineNotifier propagates task outcomes back to the workflow
// engine that spawned them.
type ProcessEngineNotifier interface {
	NotifyCompleted(ctx context.Context, taskID string, at time.Time) error
	NotifyCancelled(ctx context.Context, taskID string, at time.Time) error
}
