// Package app provides application lifecycle management for the contract
// promoter server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/contract-promoter/internal/config"
)

// PromoterApp encapsulates the components of the API server and manages
// their lifecycle
type PromoterApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
}

// Start serves HTTP until the server is stopped or fails
func (app *PromoterApp) Start() error {
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully within timeout, then releases
// the components
func (app *PromoterApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.components.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to release components: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *PromoterApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *PromoterApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the application components
func (app *PromoterApp) Components() *AppComponents {
	return app.components
}
