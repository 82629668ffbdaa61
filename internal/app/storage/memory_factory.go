package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/internal/store/inmemory"
)

// MemoryFactory creates a process-local store
type MemoryFactory struct {
	once  sync.Once
	store store.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a factory for an in-memory store
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// CreateStore implements Factory.CreateStore
func (m *MemoryFactory) CreateStore(_ context.Context) (store.Store, error) {
	m.once.Do(func() {
		slog.Warn("Using in-memory storage, records are lost on restart")
		m.store = inmemory.New()
	})
	return m.store, nil
}

// Cleanup implements Factory.Cleanup
func (*MemoryFactory) Cleanup() {}
