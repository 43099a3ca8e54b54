package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow-hq/caseflow/modules/tasks/domain/operation"
	"github.com/caseflow-hq/caseflow/pkg/composables"
	"github.com/caseflow-hq/caseflow/pkg/configuration"
)

type operationOutput struct {
	Command    string           `json:"command"`
	DurationMS int64            `json:"duration_ms"`
	Result     operation.Result `json:"result"`
}

func runOperation(cmd *cobra.Command, name string, op operation.Operation) error {
	pool, err := connectDB(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	module, err := buildModule()
	if err != nil {
		return err
	}

	ctx := composables.WithPool(cmd.Context(), pool)
	ctx = composables.WithLogger(ctx, configuration.Use().Logger().WithField("command", name))
	start := time.Now()
	res, err := module.Operations.Perform(ctx, op)
	if err != nil {
		return err
	}
	return writeJSON(operationOutput{
		Command:    name,
		DurationMS: time.Since(start).Milliseconds(),
		Result:     res,
	})
}

func newMarkCmd() *cobra.Command {
	var (
		caseIDs       []string
		jurisdictions []string
		caseTypes     []string
		taskTypes     []string
		createdAfter  string
		maxTasks      int
	)

	cmd := &cobra.Command{
		Use:   "mark-reconfigure",
		Short: "Flag matching live tasks for reconfiguration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters []operation.Filter
			if len(caseIDs) > 0 {
				filters = append(filters, operation.In("case_id", caseIDs...))
			}
			if len(jurisdictions) > 0 {
				filters = append(filters, operation.In("jurisdiction", jurisdictions...))
			}
			if len(caseTypes) > 0 {
				filters = append(filters, operation.In("case_type", caseTypes...))
			}
			if len(taskTypes) > 0 {
				filters = append(filters, operation.In("task_type", taskTypes...))
			}
			if createdAfter != "" {
				filters = append(filters, operation.After("created", createdAfter))
			}

			op := operation.New(operation.KindMarkToReconfigure, filters...)
			op.MaxTasks = maxTasks
			return runOperation(cmd, "mark-reconfigure", op)
		},
	}

	cmd.Flags().StringSliceVar(&caseIDs, "case-id", nil, "Case ids to match")
	cmd.Flags().StringSliceVar(&jurisdictions, "jurisdiction", nil, "Jurisdictions to match")
	cmd.Flags().StringSliceVar(&caseTypes, "case-type", nil, "Case types to match")
	cmd.Flags().StringSliceVar(&taskTypes, "task-type", nil, "Task types to match")
	cmd.Flags().StringVar(&createdAfter, "created-after", "", "Only tasks created after this RFC3339 instant")
	cmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "Cap on tasks processed in this run (0 = no cap)")
	return cmd
}

func newExecuteCmd() *cobra.Command {
	var (
		maxTasks         int
		retryWindowHours int64
	)

	cmd := &cobra.Command{
		Use:   "execute-reconfigure",
		Short: "Re-run configuration for tasks flagged for reconfiguration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retryWindowHours < 0 {
				retryWindowHours = configuration.Use().Dispatcher.RetryWindowHours
			}
			op := operation.New(operation.KindExecuteReconfigure)
			op.MaxTasks = maxTasks
			op.RetryWindowHours = retryWindowHours
			return runOperation(cmd, "execute-reconfigure", op)
		},
	}

	cmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "Cap on tasks processed in this run (0 = no cap)")
	cmd.Flags().Int64Var(&retryWindowHours, "retry-window-hours", -1, "Only pick up requests at least this many hours old (default from configuration)")
	return cmd
}

func newFailuresCmd() *cobra.Command {
	var retryWindowHours int64

	cmd := &cobra.Command{
		Use:   "reconfigure-failures",
		Short: "Report tasks stuck pending reconfiguration past the retry window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retryWindowHours < 0 {
				retryWindowHours = configuration.Use().Dispatcher.RetryWindowHours
			}
			op := operation.New(operation.KindExecuteReconfigureFailures)
			op.RetryWindowHours = retryWindowHours
			return runOperation(cmd, "reconfigure-failures", op)
		},
	}

	cmd.Flags().Int64Var(&retryWindowHours, "retry-window-hours", -1, "Age in hours before a pending request counts as stuck (default from configuration)")
	return cmd
}
