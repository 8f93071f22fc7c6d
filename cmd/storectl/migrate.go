package main

import (
	"pipe-company/internal/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.database()
				if err != nil {
					return err
				}
				if err := database.RunMigrations(cmd.Context(), db.DB(), a.log); err != nil {
					return err
				}
				return printMigrationState(a, cmd)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.database()
				if err != nil {
					return err
				}
				if err := database.MigrateDown(cmd.Context(), db.DB(), a.log); err != nil {
					return err
				}
				return printMigrationState(a, cmd)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied and latest schema versions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := printMigrationState(a, cmd); err != nil {
					return err
				}
				files, err := database.MigrationFiles()
				if err != nil {
					return err
				}
				for _, f := range files {
					a.printf("  %s\n", f)
				}
				return nil
			},
		},
	)
	return cmd
}

func printMigrationState(a *app, cmd *cobra.Command) error {
	db, err := a.database()
	if err != nil {
		return err
	}
	state, err := database.GetMigrationState(cmd.Context(), db.DB())
	if err != nil {
		return err
	}
	a.printf("Schema version %d of %d, %d pending\n", state.CurrentVersion, state.LatestVersion, state.Pending)
	return nil
}
