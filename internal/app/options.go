package service

import (
	"time"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/adapters/notifier"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/scheduler"
	"github.com/okian/fleetledger/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the durable key-value store. Defaults to an in-memory store.
func WithStore(kv kvstore.Store) Option {
	return func(s *Service) { s.kv = kv }
}

// WithCenter sets the notification center. Defaults to the log center.
func WithCenter(c notifier.Center) Option {
	return func(s *Service) { s.center = c }
}

// WithArchiver enables daily archiving of the earnings log.
func WithArchiver(a archive.Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithMode sets the fleet mode.
func WithMode(mode model.FleetMode) Option {
	return func(s *Service) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithLocation sets the zone that defines calendar days and midnight.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithTracking sets whether earnings are recorded at start.
func WithTracking(on bool) Option {
	return func(s *Service) { s.tracking = on }
}

// WithSimulation enables synthetic earnings every interval, seeded with seed.
func WithSimulation(interval time.Duration, seed int64) Option {
	return func(s *Service) {
		s.simulation = true
		if interval > 0 {
			s.simInterval = interval
		}
		s.seed = seed
	}
}

// WithReconcileInterval runs reconciliation periodically. Zero disables it.
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.reconcileInterval = d
		}
	}
}

// WithQueueSize sets the notification queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithSyncNotifications delivers notifications on the caller's goroutine
// instead of through the queue.
func WithSyncNotifications() Option {
	return func(s *Service) { s.syncNotify = true }
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterFunc replaces the scheduler's timer factory.
func WithAfterFunc(f scheduler.AfterFunc) Option {
	return func(s *Service) { s.afterFunc = f }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
