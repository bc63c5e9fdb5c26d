package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fleetledger/internal/adapters/repository"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/ledger"
	"github.com/okian/fleetledger/pkg/logger"
)

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) driver(id string) (*model.Driver, error) {
	d, ok := s.directory.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, id)
	}
	return d, nil
}

// SeedDrivers upserts drivers into the directory and persists it. Drivers
// already in the directory keep their aggregates. A new driver's lifetime
// earnings not backed by ledger events become its opening balance, and its
// same-day counters start from zero.
func (s *Service) SeedDrivers(ctx context.Context, drivers []model.Driver) error {
	if err := s.ready(); err != nil {
		return err
	}
	drivers = append([]model.Driver(nil), drivers...)
	for i := range drivers {
		d := &drivers[i]
		if _, ok := s.directory.Get(d.ID); ok {
			continue
		}
		d.OpeningEarnings = d.Earnings - s.ledger.DriverTotalEarnings(d.ID)
		d.ResetToday()
	}
	var err error
	s.ledger.Exclusive(func() {
		for i := range drivers {
			if err = s.directory.Upsert(&drivers[i]); err != nil {
				return
			}
		}
		err = s.directory.Save(ctx)
	})
	if err != nil {
		return fmt.Errorf("seed drivers: %w", err)
	}
	seeded := make([]*model.Driver, 0, len(drivers))
	for i := range drivers {
		if d, ok := s.directory.Get(drivers[i].ID); ok {
			seeded = append(seeded, d)
		}
	}
	s.rankDrivers(ctx, seeded)
	s.logger.Info(ctx, "drivers seeded", logger.Int("drivers", len(drivers)))
	return nil
}

// Driver returns a copy of one driver record.
func (s *Service) Driver(id string) (model.Driver, error) {
	if err := s.ready(); err != nil {
		return model.Driver{}, err
	}
	d, err := s.driver(id)
	if err != nil {
		return model.Driver{}, err
	}
	var out model.Driver
	s.ledger.Exclusive(func() { out = *d })
	return out, nil
}

// Drivers returns copies of every driver record.
func (s *Service) Drivers() ([]model.Driver, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all := s.directory.All()
	out := make([]model.Driver, len(all))
	s.ledger.Exclusive(func() {
		for i, d := range all {
			out[i] = *d
		}
	})
	return out, nil
}

// RecordEarning records a free-form earning for a driver.
func (s *Service) RecordEarning(ctx context.Context, driverID string, amount float64, typ model.EventType, details model.Details) (*model.EarningEvent, error) {
	return s.record(ctx, driverID, func(d *model.Driver) (*model.EarningEvent, error) {
		return s.ledger.RecordEarning(ctx, d, amount, typ, details)
	})
}

// RecordTrip records a completed trip. Trip mode only.
func (s *Service) RecordTrip(ctx context.Context, driverID string, distanceKM, durationMin float64, start, end string) (*model.EarningEvent, error) {
	return s.record(ctx, driverID, func(d *model.Driver) (*model.EarningEvent, error) {
		return s.ledger.RecordTripCompletion(ctx, d, distanceKM, durationMin, start, end)
	})
}

// RecordRental records a rental payment. Rental mode only.
func (s *Service) RecordRental(ctx context.Context, driverID, contractID string, days int) (*model.EarningEvent, error) {
	return s.record(ctx, driverID, func(d *model.Driver) (*model.EarningEvent, error) {
		if contractID == "" {
			s.ledger.Exclusive(func() { contractID = d.ContractID })
		}
		return s.ledger.RecordRentalPayment(ctx, d, contractID, days)
	})
}

func (s *Service) record(ctx context.Context, driverID string, fn func(*model.Driver) (*model.EarningEvent, error)) (*model.EarningEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	d, err := s.driver(driverID)
	if err != nil {
		return nil, err
	}
	ev, err := fn(d)
	if err != nil || ev == nil {
		return ev, err
	}
	s.saveDrivers(ctx)
	return ev, nil
}

// SetTracking pauses or resumes recording.
func (s *Service) SetTracking(on bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.ledger.SetTracking(on)
	return nil
}

// DriverEarnings returns the driver's events, newest first.
func (s *Service) DriverEarnings(driverID string) ([]model.EarningEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.driver(driverID); err != nil {
		return nil, err
	}
	return s.ledger.DriverEarnings(driverID), nil
}

// DriverPerformance returns the driver's history, oldest first.
func (s *Service) DriverPerformance(driverID string) ([]model.PerformanceEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, err := s.driver(driverID); err != nil {
		return nil, err
	}
	return s.perf.DriverHistory(driverID), nil
}

// Summary totals events by type for one driver, or for the fleet when driverID is empty.
func (s *Service) Summary(driverID string) (ledger.Summary, error) {
	if err := s.ready(); err != nil {
		return ledger.Summary{}, err
	}
	return s.ledger.EarningsSummaryByType(driverID), nil
}

// EarningsForPeriod returns events between from and to inclusive.
func (s *Service) EarningsForPeriod(from, to time.Time, driverID string) ([]model.EarningEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ledger.EarningsForPeriod(from, to, driverID), nil
}

// Leaderboard returns the top n drivers by lifetime earnings.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]repository.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranking.TopN(ctx, n)
}

// DriverRank returns one driver's position in the earnings ranking.
func (s *Service) DriverRank(ctx context.Context, driverID string) (repository.Entry, error) {
	if err := s.ready(); err != nil {
		return repository.Entry{}, err
	}
	if _, err := s.driver(driverID); err != nil {
		return repository.Entry{}, err
	}
	return s.ranking.Rank(ctx, driverID)
}

// Reconcile compares every driver with the ledger as of now.
func (s *Service) Reconcile(ctx context.Context) ([]ledger.Drift, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.reconcile(ctx), nil
}

// Simulate runs one simulation cycle immediately.
func (s *Service) Simulate(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, err := s.ledger.SimulateAutomaticEarnings(ctx, s.directory.All())
	if n > 0 {
		s.saveDrivers(ctx)
	}
	return n, err
}

// ArchiveDay uploads one local calendar day of events.
func (s *Service) ArchiveDay(ctx context.Context, day string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.ledger.ArchiveDay(ctx, day)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"mode":        string(s.mode),
		"simulation":  s.simulation,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if !s.started {
		return stats
	}

	stats["tracking"] = s.ledger.IsTracking()
	stats["drivers"] = s.directory.Len()
	stats["events"] = s.ledger.Len()
	stats["performanceEntries"] = s.perf.Len()
	stats["rankedDrivers"] = s.ranking.Count(context.Background())
	stats["schedulerState"] = s.scheduler.State().String()
	if next := s.scheduler.Next(); !next.IsZero() {
		stats["nextReset"] = next.Format(time.RFC3339)
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len(context.Background())
	}
	return stats
}
