// Package notify owns the notification threshold policy and hands the
// resulting requests to a notification center.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// Threshold policy.
const (
	// EarningThreshold is the amount above which an earning raises an informational notice.
	EarningThreshold = 100.0
	// AlertBelow is the score under which a performance alert is raised.
	AlertBelow = 80
	// HighPriorityBelow escalates a performance alert to high priority.
	HighPriorityBelow = 70
)

// Notification titles.
const (
	TitleRentalPayment = "Rental Payment Recorded"
	TitleTripEarnings  = "Trip Earnings Recorded"
	TitlePerformance   = "Performance Alert"
	TitleDrift         = "Ledger Drift Detected"
)

// Trigger raises notifications through a Dispatcher. It keeps no state of its own.
type Trigger struct {
	dispatcher Dispatcher
	now        func() time.Time
	logger     logger.Logger
}

// NewTrigger creates a trigger delivering through d. A nil d drops everything.
func NewTrigger(d Dispatcher, opts ...Option) *Trigger {
	if d == nil {
		d = Nop{}
	}
	t := &Trigger{
		dispatcher: d,
		now:        time.Now,
		logger:     logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Notify stamps n and forwards it. Delivery problems never surface to the caller.
func (t *Trigger) Notify(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam
	if n.RaisedAt.IsZero() {
		n.RaisedAt = t.now()
	}
	metrics.RecordNotification(string(n.Type), string(n.Priority))
	t.logger.Debug(ctx, "raising notification",
		logger.String("title", n.Title),
		logger.String("priority", string(n.Priority)),
		logger.String("driver_id", n.DriverID),
	)
	t.dispatcher.Dispatch(ctx, n)
}

// EarningRecorded raises a low priority system notice when amount exceeds
// EarningThreshold. It reports whether a notification was raised.
func (t *Trigger) EarningRecorded(ctx context.Context, d *model.Driver, amount float64, typ model.EventType, mode model.FleetMode) bool {
	if d == nil || amount <= EarningThreshold {
		return false
	}
	title := TitleTripEarnings
	if mode == model.FleetRental {
		title = TitleRentalPayment
	}
	t.Notify(ctx, model.Notification{
		Type:     model.NotificationSystem,
		Title:    title,
		Message:  fmt.Sprintf("%s earned $%.2f from %s", d.Name, amount, sourcePhrase(typ)),
		Priority: model.PriorityLow,
		DriverID: d.ID,
	})
	return true
}

// PerformanceChanged raises a performance alert when score is below AlertBelow.
func (t *Trigger) PerformanceChanged(ctx context.Context, d *model.Driver, score int) bool {
	if d == nil || score >= AlertBelow {
		return false
	}
	t.Notify(ctx, model.Notification{
		Type:     model.NotificationPerformance,
		Title:    TitlePerformance,
		Message:  fmt.Sprintf("%s's performance score dropped to %d%%", d.Name, score),
		Priority: AlertPriority(score),
		DriverID: d.ID,
	})
	return true
}

// DriftDetected raises a high priority system notice for a reconciliation mismatch.
func (t *Trigger) DriftDetected(ctx context.Context, driverID, field string, snapshot, ledger float64) {
	t.Notify(ctx, model.Notification{
		Type:     model.NotificationSystem,
		Title:    TitleDrift,
		Message:  fmt.Sprintf("driver %s %s is %.2f but the ledger says %.2f", driverID, field, snapshot, ledger),
		Priority: model.PriorityHigh,
		DriverID: driverID,
	})
}

// AlertPriority maps a below-threshold score to its alert priority.
func AlertPriority(score int) model.Priority {
	if score < HighPriorityBelow {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

func sourcePhrase(typ model.EventType) string {
	switch typ {
	case model.EventTrip:
		return "a trip"
	case model.EventRental:
		return "rental payment"
	case model.EventBonus:
		return "a bonus"
	case model.EventPenalty:
		return "a penalty"
	}
	return string(typ)
}
