// Package cache holds the Mapping Cache stores behind importer.MappingCache.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

// Store is a mapping cache that can be swept.
type Store interface {
	importer.MappingCache
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryMappingCache is a process-local Store, used by the CLI and tests.
type MemoryMappingCache struct {
	mu      sync.RWMutex
	entries map[string]importer.CachedMapping
}

func NewMemoryMappingCache() *MemoryMappingCache {
	return &MemoryMappingCache{entries: make(map[string]importer.CachedMapping)}
}

func (m *MemoryMappingCache) Get(_ context.Context, key importer.CacheKey) (*importer.CachedMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.String()]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryMappingCache) Put(_ context.Context, entry importer.CachedMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key.String()] = entry
	return nil
}

func (m *MemoryMappingCache) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryMappingCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
