package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	promoter "github.com/stacklok/contract-promoter/internal/app"
	"github.com/stacklok/contract-promoter/internal/seed"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the promotion API server",
		Long: `Start the promotion API server.

The server requires a configuration file (--config) that selects the record
store, the OCI registry and the authentication mode. With --seed, the given
seed document is applied before the server starts listening; the tokens of the
sessions it creates are printed to standard output.

See the examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("seed", "", "Seed document applied before serving")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	slog.Info("Starting contract promoter", "address", v.GetString("address"))

	app, err := promoter.NewPromoterApp(ctx,
		promoter.WithConfig(cfg),
		promoter.WithAddress(v.GetString("address")),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if path := v.GetString("seed"); path != "" {
		res, err := applySeed(ctx, app.Components(), path)
		if err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), res.Sessions); err != nil {
			_ = app.Stop(defaultGracefulTimeout)
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		_ = app.Stop(defaultGracefulTimeout)
		return err
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	}

	return app.Stop(defaultGracefulTimeout)
}

func applySeed(ctx context.Context, comps *promoter.AppComponents, path string) (*seed.Result, error) {
	doc, err := seed.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := seed.New(comps.Store).Apply(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to apply seed %s: %w", path, err)
	}
	return res, nil
}
