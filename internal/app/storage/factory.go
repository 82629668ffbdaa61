// Package storage creates the record store selected by configuration and
// owns the resources behind it.
package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/store"
)

// Factory creates the record store and releases the resources it holds
type Factory interface {
	// CreateStore returns the record store. Repeated calls share the same
	// underlying storage.
	CreateStore(ctx context.Context) (store.Store, error)

	// Cleanup releases held resources, such as database connections
	Cleanup()
}

// Option configures the created store
type Option func(*factoryOptions)

type factoryOptions struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer used by database-backed stores
func WithTracer(tracer trace.Tracer) Option {
	return func(o *factoryOptions) {
		o.tracer = tracer
	}
}

// NewStorageFactory creates the factory for the configured storage type
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Storage.Type {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg.Database, o)
	case config.StorageTypeMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", cfg.Storage.Type)
	}
}
