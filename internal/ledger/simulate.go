package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

// Simulation parameters.
const (
	TripChance     = 0.3
	minTripKM      = 5
	tripKMSpan     = 20
	trafficMinutes = 10
)

// Locations used for synthetic trips.
var Locations = []string{
	"Dubai Mall", "Marina", "JBR", "Airport", "DIFC",
	"Business Bay", "Downtown", "Jumeirah", "Deira", "Mall of Emirates",
}

// SimulateAutomaticEarnings generates synthetic activity for active drivers
// and returns how many events were recorded. In trip mode each driver has an
// independent TripChance of a trip. In rental mode one rental payment is
// recorded per driver with a contract on the 1st of the month or while the
// log is empty.
func (l *Ledger) SimulateAutomaticEarnings(ctx context.Context, drivers []*model.Driver) (int, error) {
	if !l.simulation {
		return 0, ErrSimulationDisabled
	}

	type candidate struct {
		driver     *model.Driver
		contractID string
	}
	active := make([]candidate, 0, len(drivers))
	l.mu.RLock()
	for _, d := range drivers {
		if d != nil && d.Active() {
			active = append(active, candidate{driver: d, contractID: d.ContractID})
		}
	}
	l.mu.RUnlock()

	var (
		recorded int
		errs     []error
	)
	count := func(ev *model.EarningEvent, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		if ev != nil {
			recorded++
		}
	}

	switch l.mode {
	case model.FleetTrip:
		for _, c := range active {
			trip, ok := l.drawTrip()
			if !ok {
				continue
			}
			count(l.RecordTripCompletion(ctx, c.driver, trip.distance, trip.duration, trip.start, trip.end))
		}
	case model.FleetRental:
		if l.now().In(l.loc).Day() != 1 && l.Len() > 0 {
			return 0, nil
		}
		for _, c := range active {
			if c.contractID == "" {
				continue
			}
			count(l.RecordRentalPayment(ctx, c.driver, c.contractID, DefaultRentalDays))
		}
	}

	l.logger.Debug(ctx, "simulation cycle",
		logger.String("mode", string(l.mode)),
		logger.Int("active", len(active)),
		logger.Int("recorded", recorded),
	)
	if len(errs) > 0 {
		return recorded, fmt.Errorf("simulation: %w", errors.Join(errs...))
	}
	return recorded, nil
}

type syntheticTrip struct {
	distance, duration float64
	start, end         string
}

func (l *Ledger) drawTrip() (syntheticTrip, bool) {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()

	if l.rng.Float64() >= TripChance {
		return syntheticTrip{}, false
	}
	km := l.rng.Intn(tripKMSpan) + minTripKM
	minutes := km*2 + l.rng.Intn(trafficMinutes)
	return syntheticTrip{
		distance: float64(km),
		duration: float64(minutes),
		start:    Locations[l.rng.Intn(len(Locations))],
		end:      Locations[l.rng.Intn(len(Locations))],
	}, true
}
