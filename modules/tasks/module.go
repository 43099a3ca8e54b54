// Package tasks wires the task management module: repositories, the
// collaborator clients, the caching layer and the services on top.
package tasks

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/modules/tasks/infrastructure/clients"
	"github.com/caseflow-hq/caseflow/modules/tasks/infrastructure/persistence"
	"github.com/caseflow-hq/caseflow/modules/tasks/services"
	"github.com/caseflow-hq/caseflow/pkg/configuration"
	"github.com/caseflow-hq/caseflow/pkg/eventbus"
)

type Module struct {
	Repo       *persistence.TaskRepository
	Tasks      *services.TaskService
	Operations *services.OperationService
}

// NewModule builds the module from configuration. The redis client is
// optional; without it case data is fetched uncached.
func NewModule(conf *configuration.Configuration, log *logrus.Logger, bus eventbus.EventBus, rdb *redis.Client) (*Module, error) {
	collab := conf.Collaborator
	tokens := clients.StaticTokenSource(collab.ServiceToken)

	configClient, err := clients.NewConfigurationClient(collab.ConfigurationURL, collab.Timeout, tokens)
	if err != nil {
		return nil, err
	}
	caseClient, err := clients.NewCaseDataClient(collab.CaseDataURL, collab.Timeout, tokens)
	if err != nil {
		return nil, err
	}
	roleClient, err := clients.NewRoleAssignmentClient(collab.RoleAssignmentURL, collab.Timeout, tokens)
	if err != nil {
		return nil, err
	}
	engineClient, err := clients.NewProcessEngineClient(collab.ProcessEngineURL, collab.Timeout, tokens)
	if err != nil {
		return nil, err
	}

	var cases services.CaseDataProvider = caseClient
	if rdb != nil {
		cases = persistence.NewCachedCaseDataProvider(caseClient, rdb, log, conf.Redis.CaseTTL)
	}

	repo := persistence.NewTaskRepository()
	notifier := services.NewRetryingNotifier(engineClient, log, conf.Notifier.MaxAttempts, conf.Notifier.MaxBackoff)
	tasks := services.NewTaskService(services.TaskServiceOptions{
		Repo:               repo,
		Configs:            configClient,
		Cases:              cases,
		Roles:              roleClient,
		Notifier:           notifier,
		Bus:                bus,
		Log:                log,
		PrivilegedComplete: conf.PrivilegedCompleteEnabled,
	})
	operations := services.NewOperationService(repo, tasks, conf.Dispatcher.RunBudget)

	return &Module{
		Repo:       repo,
		Tasks:      tasks,
		Operations: operations,
	}, nil
}
