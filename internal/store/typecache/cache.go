// Package typecache decorates a store.Store with a TTL cache for type
// definition lookups.
package typecache

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

const (
	// DefaultTTL is how long a resolved type definition is reused
	DefaultTTL = 5 * time.Minute
)

// cachedStore caches GetTypeDefinition results. Every other method goes
// straight to the wrapped store.
type cachedStore struct {
	store.Store
	cache *gocache.Cache
}

var _ store.Store = (*cachedStore)(nil)

// Option is a functional option for configuring the cache
type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithTTL sets the cache entry lifetime. A non-positive ttl disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// New wraps s with a type definition cache.
func New(s store.Store, opts ...Option) store.Store {
	o := &options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(o)
	}
	if o.ttl <= 0 {
		return s
	}
	return &cachedStore{
		Store: s,
		cache: gocache.New(o.ttl, 2*o.ttl),
	}
}

// GetTypeDefinition implements store.Store.GetTypeDefinition. Only exact
// references are cached; "latest" lookups always reach the store.
func (c *cachedStore) GetTypeDefinition(ctx context.Context, typeRef string) (*record.TypeDefinition, error) {
	ref, err := record.ParseTypeRef(typeRef)
	if err != nil || ref.Version == "" {
		return c.Store.GetTypeDefinition(ctx, typeRef)
	}

	key := ref.String()
	if v, ok := c.cache.Get(key); ok {
		return v.(*record.TypeDefinition), nil
	}

	def, err := c.Store.GetTypeDefinition(ctx, typeRef)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, def)
	slog.DebugContext(ctx, "Cached type definition", "type", key)
	return def, nil
}
