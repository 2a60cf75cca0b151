package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"financas/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect or roll back database migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")
	cmd.Flags().Int("rollback", 0, "revert the last N migrations")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	rollback, _ := cmd.Flags().GetInt("rollback")
	path := dbPath()
	out := cmd.OutOrStdout()

	switch {
	case status:
		version, dirty, err := storage.MigrationVersion(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, titleStyle.Render("Migration status"))
		fmt.Fprintf(out, "database: %s\nversion:  %d\n", path, version)
		if dirty {
			fmt.Fprintln(out, warningStyle.Render("dirty: the last migration failed halfway"))
		}
		return nil

	case rollback > 0:
		slog.Info("Rolling back migrations", "database", path, "steps", rollback)
		if err := storage.RollbackMigrations(path, rollback); err != nil {
			return err
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Rolled back %d migration(s)", rollback)))
		return nil
	}

	slog.Info("Running database migrations", "database", path)
	if err := storage.RunMigrations(path); err != nil {
		return err
	}
	version, _, err := storage.MigrationVersion(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Database is at version %d", version)))
	return nil
}
