// Package migrate implements the migrate command.
package migrate

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/pagemonitor/cmd/common"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// Command returns the migrate command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(newUpCommand(), newDownCommand(), newVersionCommand())
	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sqlx.DB, log logger.Logger) error {
				return database.Migrate(cmd.Context(), db, log)
			})
		},
	}
}

func newDownCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			return withDB(cmd.Context(), func(db *sqlx.DB, log logger.Logger) error {
				return database.MigrateDown(cmd.Context(), db, steps, log)
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sqlx.DB, _ logger.Logger) error {
				version, dirty, ok, err := database.MigrationVersion(cmd.Context(), db)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), FormatVersion(version, dirty, ok))
				return nil
			})
		},
	}
}

// FormatVersion describes a schema version for humans.
func FormatVersion(version uint, dirty, ok bool) string {
	switch {
	case !ok:
		return "schema version: none (no migrations applied)"
	case dirty:
		return fmt.Sprintf("schema version: %d (dirty)", version)
	default:
		return fmt.Sprintf("schema version: %d", version)
	}
}

func withDB(ctx context.Context, fn func(db *sqlx.DB, log logger.Logger) error) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	db, err := bootstrap.ConnectDatabase(ctx, deps.Config)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(db, deps.Logger)
}
