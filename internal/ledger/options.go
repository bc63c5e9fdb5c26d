package ledger

import (
	"math/rand"
	"time"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/domain/dedupe"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithMode fixes the fleet mode. Defaults to trip.
func WithMode(mode model.FleetMode) Option {
	return func(l *Ledger) {
		if mode != "" {
			l.mode = mode
		}
	}
}

// WithPerformance sets the store that rescores drivers after each earning.
func WithPerformance(p PerformanceUpdater) Option {
	return func(l *Ledger) { l.perf = p }
}

// WithRanker keeps a fleet ranking in step with driver totals.
func WithRanker(r Ranker) Option {
	return func(l *Ledger) { l.ranker = r }
}

// WithNotifier sets the notification policy.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithTracking sets the initial tracking state. Defaults to true.
func WithTracking(on bool) Option {
	return func(l *Ledger) { l.tracking = on }
}

// WithSimulation enables SimulateAutomaticEarnings.
func WithSimulation(on bool) Option {
	return func(l *Ledger) { l.simulation = on }
}

// WithRand sets the random source used by the simulator.
func WithRand(r *rand.Rand) Option {
	return func(l *Ledger) {
		if r != nil {
			l.rng = r
		}
	}
}

// WithArchiver enables ArchiveDay.
func WithArchiver(a archive.Archiver) Option {
	return func(l *Ledger) { l.archiver = a }
}

// WithDeduper replaces the event-id collision guard.
func WithDeduper(d dedupe.Deduper) Option {
	return func(l *Ledger) {
		if d != nil {
			l.ids = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}
