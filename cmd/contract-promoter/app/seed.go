package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	promoter "github.com/stacklok/contract-promoter/internal/app"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a seed document into the record store",
		Long: `Load type definitions, records, links and sessions from a YAML seed document
into the configured record store and print what was inserted. Entries that
already exist are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := newViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	comps, err := promoter.NewComponents(ctx, promoter.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer func() {
		_ = comps.Close(context.Background())
	}()

	res, err := applySeed(ctx, comps, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}
