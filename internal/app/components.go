package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/contract-promoter/internal/app/storage"
	"github.com/stacklok/contract-promoter/internal/promotion"
	"github.com/stacklok/contract-promoter/internal/registry"
	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/internal/store/postgres"
	"github.com/stacklok/contract-promoter/internal/store/typecache"
	"github.com/stacklok/contract-promoter/internal/telemetry"
)

// AppComponents groups the components shared by the server and the CLI
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store is the record store, behind the type definition cache
	Store store.Store

	// Promotion runs promotions against Store
	Promotion promotion.Service

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	storageFactory storage.Factory
}

// Close flushes telemetry and releases the storage resources
func (c *AppComponents) Close(ctx context.Context) error {
	var errs []error
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.storageFactory != nil {
		c.storageFactory.Cleanup()
	}
	return errors.Join(errs...)
}

// NewComponents builds the store and promotion service described by the
// configuration, without any HTTP surface.
func NewComponents(ctx context.Context, opts ...PromoterAppOption) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, cfg)
}

func buildComponents(ctx context.Context, b *promoterAppConfig) (comps *AppComponents, retErr error) {
	if b.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	slog.Info("Initializing components", "storage", b.config.Storage.Type)

	comps = &AppComponents{Telemetry: b.telemetry}
	defer func() {
		if retErr != nil {
			_ = comps.Close(ctx)
		}
	}()

	if comps.Telemetry == nil {
		tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(b.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		comps.Telemetry = tel
	}

	comps.storageFactory = b.storageFactory
	if comps.storageFactory == nil {
		f, err := storage.NewStorageFactory(ctx, b.config,
			storage.WithTracer(comps.Telemetry.Tracer(postgres.StoreTracerName)))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		comps.storageFactory = f
	}

	s, err := comps.storageFactory.CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	cacheTTL, err := b.config.GetTypeCacheTTL()
	if err != nil {
		return nil, err
	}
	comps.Store = typecache.New(s, typecache.WithTTL(cacheTTL))

	comps.Promotion, err = buildPromotionService(b, comps)
	if err != nil {
		return nil, fmt.Errorf("failed to build promotion service: %w", err)
	}

	slog.Info("Components initialized")
	return comps, nil
}

func buildPromotionService(b *promoterAppConfig, comps *AppComponents) (promotion.Service, error) {
	sessionTTL, err := b.config.GetSessionTTL()
	if err != nil {
		return nil, err
	}

	metrics, err := comps.Telemetry.PromotionMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create promotion metrics: %w", err)
	}

	opts := []promotion.Option{
		promotion.WithTracer(comps.Telemetry.Tracer(promotion.ServiceTracerName)),
		promotion.WithMetrics(metrics),
		promotion.WithSessionTTL(sessionTTL),
	}

	retagger := b.retagger
	if retagger == nil && b.config.Registry != nil {
		timeout, err := b.config.Registry.GetTimeout()
		if err != nil {
			return nil, err
		}
		client, err := registry.New(registry.Config{
			Host:     b.config.Registry.Host,
			Insecure: b.config.Registry.Insecure,
			Timeout:  timeout,
		}, registry.WithTracer(comps.Telemetry.Tracer(registry.ClientTracerName)))
		if err != nil {
			return nil, fmt.Errorf("failed to create registry client: %w", err)
		}
		slog.Info("Registry client configured", "host", client.Host())
		retagger = client
	}
	if retagger != nil {
		opts = append(opts, promotion.WithRetagger(retagger))
	} else {
		slog.Warn("No registry configured, drafts with a ready artifact cannot be promoted")
	}

	return promotion.New(comps.Store, opts...)
}
