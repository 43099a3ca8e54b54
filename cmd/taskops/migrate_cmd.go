package main

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/caseflow-hq/caseflow/migrations"
	"github.com/caseflow-hq/caseflow/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pgx.ParseConfig(configuration.Use().Database.Opts)
			if err != nil {
				return err
			}
			db := stdlib.OpenDB(*cfg)
			defer func() { _ = db.Close() }()
			return migrations.Up(cmd.Context(), db)
		},
	}
}
