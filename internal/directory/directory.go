// Package directory holds the driver records the ledger mutates.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

// StorageKey is the key the driver set is persisted under.
const StorageKey = "drivers"

// ErrInvalidDriver is returned by Upsert for a nil driver or empty id.
var ErrInvalidDriver = errors.New("invalid driver")

// Directory is the canonical driver set. Returned pointers are shared; the
// ledger serializes mutation of their aggregate fields.
type Directory interface {
	Get(id string) (*model.Driver, bool)
	All() []*model.Driver
	Save(ctx context.Context) error
}

// Memory is a Directory kept in memory and persisted as a JSON array.
type Memory struct {
	mu      sync.RWMutex
	drivers map[string]*model.Driver
	kv      kvstore.Store
	logger  logger.Logger
}

// NewMemory creates an empty directory. A nil kv disables persistence.
func NewMemory(kv kvstore.Store) *Memory {
	return &Memory{
		drivers: make(map[string]*model.Driver),
		kv:      kv,
		logger:  logger.Get().Named("directory"),
	}
}

// Load replaces the directory with the persisted set.
func (m *Memory) Load(ctx context.Context) error {
	if m.kv == nil {
		return nil
	}
	var stored []model.Driver
	found, err := kvstore.LoadJSON(ctx, m.kv, StorageKey, &stored)
	if err != nil || !found {
		return err
	}

	drivers := make(map[string]*model.Driver, len(stored))
	for i := range stored {
		d := stored[i]
		drivers[d.ID] = &d
	}
	m.mu.Lock()
	m.drivers = drivers
	m.mu.Unlock()
	m.logger.Info(ctx, "drivers loaded", logger.Int("drivers", len(drivers)))
	return nil
}

// Upsert adds d or replaces the identity fields of an existing driver with
// the same id. Aggregates of an existing driver are kept.
func (m *Memory) Upsert(d *model.Driver) error {
	if d == nil || d.ID == "" {
		return ErrInvalidDriver
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.drivers[d.ID]; ok {
		cur.Name = d.Name
		cur.Email = d.Email
		cur.Phone = d.Phone
		cur.Status = d.Status
		cur.VehicleID = d.VehicleID
		cur.ContractID = d.ContractID
		return nil
	}
	cp := *d
	m.drivers[d.ID] = &cp
	return nil
}

// Get returns the shared record for id.
func (m *Memory) Get(id string) (*model.Driver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	return d, ok
}

// All returns every driver ordered by id.
func (m *Memory) All() []*model.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of drivers.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drivers)
}

// Save persists the whole set. Callers that race the ledger should call it
// inside Ledger.Exclusive.
func (m *Memory) Save(ctx context.Context) error {
	if m.kv == nil {
		return nil
	}
	all := m.All()
	out := make([]model.Driver, len(all))
	for i, d := range all {
		out[i] = *d
	}
	if err := kvstore.SaveJSON(ctx, m.kv, StorageKey, out); err != nil {
		return fmt.Errorf("save drivers: %w", err)
	}
	return nil
}
