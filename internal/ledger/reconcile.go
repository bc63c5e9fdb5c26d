package ledger

import (
	"context"
	"math"
	"time"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// Reconciled fields.
const (
	FieldEarnings      = "earnings"
	FieldEarningsToday = "earnings_today"
	FieldTripsToday    = "trips_today"
)

// driftTolerance absorbs float summation noise.
const driftTolerance = 0.005

// Drift is one mismatch between a driver snapshot and the ledger.
type Drift struct {
	DriverID string  `json:"driverId"`
	Field    string  `json:"field"`
	Snapshot float64 `json:"snapshot"`
	Ledger   float64 `json:"ledger"`
}

// ResetDaily zeroes the same-day counters of every driver. Lifetime totals
// and performance history are untouched.
func (l *Ledger) ResetDaily(ctx context.Context, drivers []*model.Driver) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range drivers {
		if d == nil {
			continue
		}
		d.ResetToday()
		n++
	}
	l.logger.Info(ctx, "daily metrics reset", logger.Int("drivers", n))
	return n
}

// Reconcile compares each driver's aggregates with what the ledger implies
// for the calendar day of now. It raises one notification per mismatch and
// never repairs anything.
func (l *Ledger) Reconcile(ctx context.Context, drivers []*model.Driver, now time.Time) []Drift {
	today := model.CalendarDay(now, l.loc)

	l.mu.RLock()
	type totals struct {
		all, today float64
		tripsToday int
	}
	byDriver := make(map[string]*totals)
	for i := range l.events {
		ev := &l.events[i]
		t := byDriver[ev.DriverID]
		if t == nil {
			t = &totals{}
			byDriver[ev.DriverID] = t
		}
		t.all += ev.Amount
		if model.CalendarDay(ev.Timestamp, l.loc) == today {
			t.today += ev.Amount
			if ev.Type == model.EventTrip {
				t.tripsToday++
			}
		}
	}

	var drifts []Drift
	for _, d := range drivers {
		if d == nil {
			continue
		}
		t := byDriver[d.ID]
		if t == nil {
			t = &totals{}
		}
		check := func(field string, snapshot, ledger float64) {
			if math.Abs(snapshot-ledger) > driftTolerance {
				drifts = append(drifts, Drift{DriverID: d.ID, Field: field, Snapshot: snapshot, Ledger: ledger})
			}
		}
		check(FieldEarnings, d.Earnings, t.all+d.OpeningEarnings)
		check(FieldEarningsToday, d.EarningsToday, t.today)
		check(FieldTripsToday, float64(d.TripsToday), float64(t.tripsToday))
	}
	l.mu.RUnlock()

	fields := make([]string, 0, len(drifts))
	for _, dr := range drifts {
		fields = append(fields, dr.Field)
		l.logger.Warn(ctx, "ledger drift detected",
			logger.String("driver_id", dr.DriverID),
			logger.String("field", dr.Field),
			logger.Float64("snapshot", dr.Snapshot),
			logger.Float64("ledger", dr.Ledger),
		)
		if l.notifier != nil {
			l.notifier.DriftDetected(ctx, dr.DriverID, dr.Field, dr.Snapshot, dr.Ledger)
		}
	}
	metrics.RecordReconciliation(fields)
	return drifts
}
