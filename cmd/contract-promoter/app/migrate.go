package app

import (
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/contract-promoter/database"
	"github.com/stacklok/contract-promoter/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
The connection parameters are read from the database section of the config file.`,
		RunE: runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  contract-promoter migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all records)
  contract-promoter migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

// migrationTarget returns the connection string of the configured database
func migrationTarget(cmd *cobra.Command) (*config.DatabaseConfig, string, error) {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return nil, "", err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, "", err
	}
	if cfg.Storage.Type != config.StorageTypeDatabase || cfg.Database == nil {
		return nil, "", fmt.Errorf("migrations require storage type %q", config.StorageTypeDatabase)
	}
	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build connection string: %w", err)
	}
	return cfg.Database, connString, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("About to apply migrations to %s@%s:%d/%s. Continue?", db.User, db.Host, db.Port, db.Database)
	if err := confirm(cmd, prompt); err != nil {
		return err
	}

	slog.Info("Applying database migrations")
	version, err := database.MigrateUp(connString)
	if err != nil {
		return err
	}
	slog.Info("Migrations applied", "version", version)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	_, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("num-steps %d is too large", numSteps)
	}

	prompt := "WARNING: This will migrate down ALL steps and delete every record. Continue?"
	if numSteps > 0 {
		prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", numSteps)
	}
	if err := confirm(cmd, prompt); err != nil {
		return err
	}

	if numSteps == 0 {
		slog.Warn("Migrating down all steps")
	} else {
		slog.Info("Migrating down", "steps", numSteps)
	}
	version, err := database.MigrateDown(connString, int(numSteps))
	if err != nil {
		return err
	}
	slog.Info("Migration complete", "version", version)
	return nil
}

// confirm asks prompt on the command output unless --yes was given
func confirm(cmd *cobra.Command, prompt string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt); err != nil {
		return err
	}
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && response == "" {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return nil
	default:
		return fmt.Errorf("migration cancelled by user")
	}
}
