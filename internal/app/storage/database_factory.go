package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/internal/store/postgres"
)

// DatabaseFactory creates PostgreSQL-backed stores sharing one pool
type DatabaseFactory struct {
	pool *pgxpool.Pool
	opts *factoryOptions
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory connects to the configured database
func NewDatabaseFactory(ctx context.Context, cfg *config.DatabaseConfig, opts *factoryOptions) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}
	if opts == nil {
		opts = &factoryOptions{}
	}

	slog.Info("Creating database-backed storage factory", "host", cfg.Host, "database", cfg.Database)

	pool, err := BuildConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DatabaseFactory{pool: pool, opts: opts}, nil
}

// CreateStore implements Factory.CreateStore
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	storeOpts := []postgres.Option{postgres.WithConnectionPool(d.pool)}
	if d.opts.tracer != nil {
		storeOpts = append(storeOpts, postgres.WithTracer(d.opts.tracer))
		slog.Debug("Database store tracing enabled")
	}
	return postgres.New(storeOpts...)
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}

// BuildConnectionPool creates a connection pool sized from cfg
func BuildConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to build database connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	lifetime, err := cfg.GetConnMaxLifetime()
	if err != nil {
		return nil, err
	}
	if lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	slog.Info("Database connection pool created")
	return pool, nil
}
