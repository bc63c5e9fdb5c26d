package ledger

import (
	"time"

	"github.com/okian/fleetledger/internal/domain/model"
)

// Summary totals a driver's (or the fleet's) events by type.
type Summary struct {
	Trip    float64 `json:"trip"`
	Rental  float64 `json:"rental"`
	Bonus   float64 `json:"bonus"`
	Penalty float64 `json:"penalty"`
	Total   float64 `json:"total"`
}

// Events returns a copy of the whole log, newest first.
func (l *Ledger) Events() []model.EarningEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return newestFirst(l.events)
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// DriverEarnings returns the driver's events, newest first.
func (l *Ledger) DriverEarnings(driverID string) []model.EarningEvent {
	return l.filter(func(ev *model.EarningEvent) bool { return ev.DriverID == driverID })
}

// DriverTotalEarnings sums every event amount recorded for the driver.
func (l *Ledger) DriverTotalEarnings(driverID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total float64
	for i := range l.events {
		if l.events[i].DriverID == driverID {
			total += l.events[i].Amount
		}
	}
	return total
}

// EarningsForPeriod returns events with start <= timestamp <= end, newest
// first. An empty driverID matches every driver.
func (l *Ledger) EarningsForPeriod(start, end time.Time, driverID string) []model.EarningEvent {
	return l.filter(func(ev *model.EarningEvent) bool {
		if driverID != "" && ev.DriverID != driverID {
			return false
		}
		return !ev.Timestamp.Before(start) && !ev.Timestamp.After(end)
	})
}

// EarningsSummaryByType totals events per type. An empty driverID covers the fleet.
func (l *Ledger) EarningsSummaryByType(driverID string) Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var s Summary
	for i := range l.events {
		ev := &l.events[i]
		if driverID != "" && ev.DriverID != driverID {
			continue
		}
		switch ev.Type {
		case model.EventTrip:
			s.Trip += ev.Amount
		case model.EventRental:
			s.Rental += ev.Amount
		case model.EventBonus:
			s.Bonus += ev.Amount
		case model.EventPenalty:
			s.Penalty += ev.Amount
		}
		s.Total += ev.Amount
	}
	return s
}

func (l *Ledger) filter(keep func(ev *model.EarningEvent) bool) []model.EarningEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []model.EarningEvent{}
	for i := len(l.events) - 1; i >= 0; i-- {
		if keep(&l.events[i]) {
			out = append(out, l.events[i])
		}
	}
	return out
}
