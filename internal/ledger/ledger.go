// Package ledger records monetary events for fleet drivers and keeps the
// drivers' aggregate counters in step with the event log.
//
// All record paths, the daily reset and reconciliation run under one
// engine-wide mutex, so driver snapshots handed to the ledger must only be
// mutated through it (or inside Exclusive).
package ledger

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/domain/dedupe"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/domain/scoring"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// StorageKey is the key the event log is persisted under.
const StorageKey = "earning_events"

// Fare and rent constants.
const (
	BaseFare          = 12.0
	RatePerKM         = 2.5
	RatePerMinute     = 0.5
	DailyRent         = 40.0
	DefaultRentalDays = 30
)

const idSuffixLen = 9

// PerformanceUpdater rescores a driver from its same-day counters.
type PerformanceUpdater interface {
	UpdateDriverPerformance(ctx context.Context, d *model.Driver) (int, error)
}

// Notifier applies the notification thresholds. *notify.Trigger implements it.
type Notifier interface {
	EarningRecorded(ctx context.Context, d *model.Driver, amount float64, typ model.EventType, mode model.FleetMode) bool
	DriftDetected(ctx context.Context, driverID, field string, snapshot, ledger float64)
}

// Ranker tracks lifetime earnings for the fleet ranking.
type Ranker interface {
	Set(ctx context.Context, driverID string, earnings float64) error
}

// Ledger is the append-only earnings log plus the record operations that
// keep driver aggregates in step with it.
type Ledger struct {
	mu       sync.RWMutex
	events   []model.EarningEvent // append order, oldest first
	tracking bool

	mode       model.FleetMode
	simulation bool
	kv         kvstore.Store
	perf       PerformanceUpdater
	notifier   Notifier
	ranker     Ranker
	archiver   archive.Archiver
	ids        dedupe.Deduper
	now        func() time.Time
	loc        *time.Location
	logger     logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an empty ledger persisting through kv. A nil kv keeps the log in memory only.
func New(kv kvstore.Store, opts ...Option) *Ledger {
	l := &Ledger{
		tracking: true,
		mode:     model.FleetTrip,
		kv:       kv,
		ids:      dedupe.NewInMemoryDeduper(),
		now:      time.Now,
		loc:      time.Local,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation only
		logger:   logger.Get().Named("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mode returns the fleet mode fixed at construction.
func (l *Ledger) Mode() model.FleetMode { return l.mode }

// SetTracking pauses or resumes recording.
func (l *Ledger) SetTracking(on bool) {
	l.mu.Lock()
	l.tracking = on
	l.mu.Unlock()
	l.logger.Info(context.Background(), "tracking changed", logger.Bool("tracking", on))
}

// IsTracking reports whether events are currently recorded.
func (l *Ledger) IsTracking() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracking
}

// Exclusive runs fn while holding the engine lock. Use it to read or persist
// driver snapshots without racing the record paths.
func (l *Ledger) Exclusive(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Load replaces the in-memory log with the persisted one.
func (l *Ledger) Load(ctx context.Context) error {
	if l.kv == nil {
		return nil
	}
	var stored []model.EarningEvent
	found, err := kvstore.LoadJSON(ctx, l.kv, StorageKey, &stored)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !found {
		stored = nil
	}
	events := make([]model.EarningEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		events = append(events, stored[i])
		l.ids.SeenAndRecord(ctx, stored[i].ID)
	}
	l.events = events
	metrics.UpdateLedgerEvents(len(l.events))
	l.logger.Info(ctx, "earnings log loaded", logger.Int("events", len(l.events)))
	return nil
}

// RecordEarning appends an event for d and applies it to the driver's
// aggregates. While tracking is paused it returns (nil, nil) and changes nothing.
func (l *Ledger) RecordEarning(ctx context.Context, d *model.Driver, amount float64, typ model.EventType, details model.Details) (*model.EarningEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(ctx, d, amount, typ, details, 0)
}

// RecordTripCompletion prices a trip and records it. Trip mode only.
func (l *Ledger) RecordTripCompletion(ctx context.Context, d *model.Driver, distanceKM, durationMin float64, start, end string) (*model.EarningEvent, error) {
	if err := l.requireMode(ctx, model.FleetTrip, "record_trip_completion"); err != nil {
		return nil, err
	}
	if invalidMeasure(distanceKM) || invalidMeasure(durationMin) {
		metrics.RecordRejected("invalid_trip")
		return nil, fmt.Errorf("%w: distance %v km, duration %v min", ErrInvalidTrip, distanceKM, durationMin)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	details := model.Details{
		TripID:        tripID(l.now()),
		DistanceKM:    distanceKM,
		DurationMin:   durationMin,
		StartLocation: start,
		EndLocation:   end,
	}
	return l.recordLocked(ctx, d, Fare(distanceKM, durationMin), model.EventTrip, details, 1)
}

// RecordRentalPayment records days of rent for a contract. Rental mode only.
// Non-positive days default to DefaultRentalDays.
func (l *Ledger) RecordRentalPayment(ctx context.Context, d *model.Driver, contractID string, days int) (*model.EarningEvent, error) {
	if err := l.requireMode(ctx, model.FleetRental, "record_rental_payment"); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultRentalDays
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	details := model.Details{ContractID: contractID, RentalDays: days}
	return l.recordLocked(ctx, d, Rent(days), model.EventRental, details, 0)
}

// Fare prices a trip: 12 + 2.5 per km + 0.5 per minute, rounded half up.
func Fare(distanceKM, durationMin float64) float64 {
	return scoring.RoundHalfUp(BaseFare + distanceKM*RatePerKM + durationMin*RatePerMinute)
}

// Rent returns the rental amount for days.
func Rent(days int) float64 {
	return DailyRent * float64(days)
}

// recordLocked appends the event, updates aggregates and rescores. trips is
// added to the trip counters before rescoring so a trip is scored once.
func (l *Ledger) recordLocked(ctx context.Context, d *model.Driver, amount float64, typ model.EventType, details model.Details, trips int) (*model.EarningEvent, error) {
	if d == nil {
		return nil, ErrNilDriver
	}
	if !typ.Valid() {
		metrics.RecordRejected("invalid_type")
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		metrics.RecordRejected("invalid_amount")
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if !l.tracking {
		metrics.RecordEarningDeclined()
		l.logger.Debug(ctx, "tracking paused, earning declined",
			logger.String("driver_id", d.ID),
			logger.String("type", string(typ)),
		)
		return nil, nil //nolint:nilnil // declined is not an error
	}

	now := l.now()
	ev := model.EarningEvent{
		ID:        l.nextID(ctx, now),
		DriverID:  d.ID,
		Amount:    amount,
		Timestamp: now,
		Type:      typ,
		Details:   details,
	}
	l.events = append(l.events, ev)

	d.Earnings += amount
	d.EarningsToday += amount
	d.Trips += trips
	d.TripsToday += trips

	metrics.RecordEarning(string(typ), amount)
	metrics.UpdateLedgerEvents(len(l.events))
	l.logger.Info(ctx, "earning recorded",
		logger.String("event_id", ev.ID),
		logger.String("driver_id", d.ID),
		logger.String("type", string(typ)),
		logger.Float64("amount", amount),
	)

	l.persistLocked(ctx)

	if l.ranker != nil {
		if err := l.ranker.Set(ctx, d.ID, d.Earnings); err != nil {
			l.logger.Warn(ctx, "ranking update failed", logger.String("driver_id", d.ID), logger.Error(err))
		}
	}
	if l.perf != nil {
		if _, err := l.perf.UpdateDriverPerformance(ctx, d); err != nil {
			l.logger.Error(ctx, "performance update failed", logger.String("driver_id", d.ID), logger.Error(err))
		}
	}
	if l.notifier != nil {
		l.notifier.EarningRecorded(ctx, d, amount, typ, l.mode)
	}

	out := ev
	return &out, nil
}

func (l *Ledger) requireMode(ctx context.Context, want model.FleetMode, op string) error {
	if l.mode == want {
		return nil
	}
	metrics.RecordModeMismatch(op)
	l.logger.Warn(ctx, "operation not available in fleet mode",
		logger.String("operation", op),
		logger.String("mode", string(l.mode)),
	)
	return fmt.Errorf("%w: %s requires %s mode, ledger runs in %s mode", ErrModeMismatch, op, want, l.mode)
}

// persistLocked writes the whole log, newest first. Failures are logged and
// counted; the in-memory state is kept.
func (l *Ledger) persistLocked(ctx context.Context) {
	if l.kv == nil {
		return
	}
	if err := kvstore.SaveJSON(ctx, l.kv, StorageKey, newestFirst(l.events)); err != nil {
		l.logger.Error(ctx, "failed to persist earnings log", logger.Error(err))
	}
}

func (l *Ledger) nextID(ctx context.Context, now time.Time) string {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLen]
		id := fmt.Sprintf("earn-%d-%s", now.UnixMilli(), suffix)
		if !l.ids.SeenAndRecord(ctx, id) {
			return id
		}
	}
}

func tripID(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "T-" + ms
}

func invalidMeasure(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

func newestFirst(events []model.EarningEvent) []model.EarningEvent {
	out := make([]model.EarningEvent, len(events))
	for i, ev := range events {
		out[len(events)-1-i] = ev
	}
	return out
}
