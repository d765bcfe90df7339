package main

import (
	"fmt"

	"github.com/dafibh/ledgerflow/internal/repository/postgres"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info().Msg("Migrations applied")
			return nil
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if err := postgres.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
				return err
			}
			log.Info().Int("steps", steps).Msg("Migrations reverted")
			return nil
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, dirty, err := postgres.MigrationVersion(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	})

	return cmd
}
