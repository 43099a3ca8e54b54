package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/caseflow-hq/caseflow/modules/tasks"
	"github.com/caseflow-hq/caseflow/pkg/configuration"
	"github.com/caseflow-hq/caseflow/pkg/eventbus"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskops",
		Short: "Bulk task operations and database maintenance",
	}
	cmd.AddCommand(
		newMarkCmd(),
		newExecuteCmd(),
		newFailuresCmd(),
		newMigrateCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	return pgxpool.New(ctx, conf.Database.Opts)
}

// buildModule assembles the tasks module without redis; one-shot CLI runs
// have no use for a warm case cache.
func buildModule() (*tasks.Module, error) {
	conf := configuration.Use()
	logger := conf.Logger()
	return tasks.NewModule(conf, logger, eventbus.NewEventPublisher(logger), nil)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
