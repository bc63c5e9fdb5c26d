// Package kvstore provides the durable key-value surface the ledger persists through.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fleetledger/pkg/metrics"
)

// Store reads and writes opaque values by key.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases the underlying resources.
	Close() error
}

// SaveJSON encodes v and writes it under key, recording persistence metrics.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	start := time.Now()
	raw, err := json.Marshal(v)
	if err == nil {
		err = s.Put(ctx, key, raw)
	}
	metrics.RecordPersist(key, float64(time.Since(start).Microseconds())/1000, err)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadJSON reads key and decodes it into v. It reports false when the key is absent.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// MemoryStore keeps values in process memory. Used for tests and the memory backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
