package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/database/postgres"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
)

// NewDBCmd creates the db command.
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the run history database",
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	migrateCmd.AddCommand(newMigrateUpCmd(), newMigrateDownCmd(), newMigrateStatusCmd())
	cmd.AddCommand(migrateCmd)
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}
}

func migratorFor(cmd *cobra.Command) (*postgres.Migrator, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return newMigrator(cliCtx.Config, cliCtx.Logger)
}

func newMigrator(cfg *config.Config, logger logging.Logger) (*postgres.Migrator, error) {
	if !cfg.Postgres.Enabled {
		return nil, errRunHistoryDisabled()
	}
	return postgres.NewMigrator(postgresConfig(cfg), logger), nil
}

func printMigrationStatus(cmd *cobra.Command, m *postgres.Migrator) error {
	version, dirty, err := m.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationStatus{Version: version, Dirty: dirty})
}

type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s migrationStatus) String() string {
	return fmt.Sprintf("version=%d dirty=%t\n", s.Version, s.Dirty)
}
