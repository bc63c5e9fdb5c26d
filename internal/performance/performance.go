// Package performance keeps one score entry per driver per local calendar day.
package performance

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/domain/scoring"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// StorageKey is the key the history map is persisted under.
const StorageKey = "performance_history"

// ErrNilDriver is returned when an update is asked for a nil driver.
var ErrNilDriver = errors.New("nil driver")

// Alerter receives score changes. *notify.Trigger implements it.
type Alerter interface {
	PerformanceChanged(ctx context.Context, d *model.Driver, score int) bool
}

// Store is the performance history keyed by driver id. Entries for a driver
// are kept oldest first with at most one entry per date.
type Store struct {
	mu      sync.RWMutex
	history map[string][]model.PerformanceEntry

	kv      kvstore.Store
	alerter Alerter
	now     func() time.Time
	loc     *time.Location
	logger  logger.Logger
}

// New creates an empty store persisting through kv. A nil kv keeps history in memory only.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		history: make(map[string][]model.PerformanceEntry),
		kv:      kv,
		now:     time.Now,
		loc:     time.Local,
		logger:  logger.Get().Named("performance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory history with the persisted one. A missing key
// leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	loaded := make(map[string][]model.PerformanceEntry)
	found, err := kvstore.LoadJSON(ctx, s.kv, StorageKey, &loaded)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found {
		for id, entries := range loaded {
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
			loaded[id] = entries
		}
		s.history = loaded
	}
	metrics.UpdateHistoryEntries(s.countLocked())
	s.logger.Info(ctx, "performance history loaded", logger.Int("drivers", len(s.history)))
	return nil
}

// UpdateDriverPerformance scores the driver's same-day activity, upserts
// today's entry, sets driver.PerformanceScore and raises an alert when the
// score is low. The caller must own the driver for the duration of the call.
func (s *Store) UpdateDriverPerformance(ctx context.Context, d *model.Driver) (int, error) {
	if d == nil {
		return 0, ErrNilDriver
	}

	trips, earnings := d.TripsToday, d.EarningsToday
	if err := scoring.ValidateInputs(trips, earnings); err != nil {
		metrics.RecordNegativeInput()
		s.logger.Warn(ctx, "negative score input clamped to zero",
			logger.String("driver_id", d.ID),
			logger.Int("trips_today", trips),
			logger.Float64("earnings_today", earnings),
		)
		if trips < 0 {
			trips = 0
		}
		if earnings < 0 || math.IsNaN(earnings) {
			earnings = 0
		}
	}

	score := scoring.Score(trips, earnings)
	entry := model.PerformanceEntry{
		Date:          model.CalendarDay(s.now(), s.loc),
		Score:         score,
		TripsToday:    trips,
		EarningsToday: earnings,
	}

	s.mu.Lock()
	s.upsertLocked(d.ID, entry)
	metrics.UpdateHistoryEntries(s.countLocked())
	s.persistLocked(ctx)
	s.mu.Unlock()

	d.PerformanceScore = score
	metrics.RecordPerformanceUpdate(score)

	if s.alerter != nil {
		s.alerter.PerformanceChanged(ctx, d, score)
	}
	return score, nil
}

func (s *Store) upsertLocked(driverID string, entry model.PerformanceEntry) {
	entries := s.history[driverID]
	for i := range entries {
		if entries[i].Date == entry.Date {
			entries[i] = entry
			return
		}
	}
	s.history[driverID] = append(entries, entry)
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := kvstore.SaveJSON(ctx, s.kv, StorageKey, s.history); err != nil {
		s.logger.Error(ctx, "failed to persist performance history", logger.Error(err))
	}
}

func (s *Store) countLocked() int {
	n := 0
	for _, entries := range s.history {
		n += len(entries)
	}
	return n
}

// DriverHistory returns a copy of the driver's entries, oldest first.
func (s *Store) DriverHistory(driverID string) []model.PerformanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[driverID]
	out := make([]model.PerformanceEntry, len(entries))
	copy(out, entries)
	return out
}

// DriverToday returns the driver's entry for the current local date.
func (s *Store) DriverToday(driverID string) (model.PerformanceEntry, bool) {
	today := model.CalendarDay(s.now(), s.loc)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.history[driverID] {
		if e.Date == today {
			return e, true
		}
	}
	return model.PerformanceEntry{}, false
}

// Snapshot returns a deep copy of the whole history.
func (s *Store) Snapshot() map[string][]model.PerformanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.PerformanceEntry, len(s.history))
	for id, entries := range s.history {
		cp := make([]model.PerformanceEntry, len(entries))
		copy(cp, entries)
		out[id] = cp
	}
	return out
}

// Len returns the total number of entries across drivers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}
