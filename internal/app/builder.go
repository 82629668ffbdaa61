package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/contract-promoter/internal/api"
	"github.com/stacklok/contract-promoter/internal/app/storage"
	"github.com/stacklok/contract-promoter/internal/auth"
	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/promotion"
	"github.com/stacklok/contract-promoter/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 45 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// PromoterAppOption configures the application builder
type PromoterAppOption func(*promoterAppConfig) error

type promoterAppConfig struct {
	config *config.Config

	// Optional component overrides
	storageFactory storage.Factory
	retagger       promotion.Retagger
	telemetry      *telemetry.Telemetry
	authMiddleware func(http.Handler) http.Handler

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...PromoterAppOption) (*promoterAppConfig, error) {
	cfg := &promoterAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// NewPromoterApp builds the application: store, promotion service, auth and
// the HTTP server in front of them
func NewPromoterApp(ctx context.Context, opts ...PromoterAppOption) (*PromoterApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = auth.NewAuthMiddleware(cfg.config.Auth, comps.Store)
		if err != nil {
			_ = comps.Close(ctx)
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(cfg, comps)
	if err != nil {
		_ = comps.Close(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &PromoterApp{
		config:     cfg.config,
		components: comps,
		httpServer: httpServer,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}
		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory injects the storage factory
func WithStorageFactory(f storage.Factory) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithRetagger injects the artifact publisher instead of building a registry
// client from the configuration
func WithRetagger(r promotion.Retagger) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.retagger = r
		return nil
	}
}

// WithTelemetry injects the telemetry providers
func WithTelemetry(t *telemetry.Telemetry) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// WithAuthMiddleware replaces the authentication middleware built from the
// configuration. Public paths are not applied to it.
func WithAuthMiddleware(mw func(http.Handler) http.Handler) PromoterAppOption {
	return func(cfg *promoterAppConfig) error {
		cfg.authMiddleware = mw
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *promoterAppConfig, comps *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so requests rejected by auth are still observed
	telemetryMw, err := comps.Telemetry.HTTPMiddleware()
	if err != nil {
		return nil, err
	}
	middlewares := append(telemetryMw, b.middlewares...)
	middlewares = append(middlewares, b.authMiddleware)

	router := api.NewServer(comps.Promotion, api.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
