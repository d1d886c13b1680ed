package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iho/splitledger/internal/infrastructure/config"
	"github.com/iho/splitledger/internal/infrastructure/logger"
	"github.com/iho/splitledger/internal/infrastructure/postgres"
)

// migrateCmd runs schema migrations using the server's DATABASE_URL and
// MIGRATIONS_PATH settings.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	newMigrator := func() (*postgres.Migrator, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logger.Component(logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr, Service: "splitledger-cli"}), "migrator")
		return postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := newMigrator()
				if err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)

	return cmd
}
