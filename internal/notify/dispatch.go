package notify

import (
	"context"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// Center accepts notifications. See adapters/notifier for implementations.
type Center interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Dispatcher moves a notification toward a center without reporting failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification)
}

// Enqueuer is the producer side of the notification queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, n model.Notification) bool
}

// Nop drops every notification.
type Nop struct{}

// Dispatch implements Dispatcher.
func (Nop) Dispatch(context.Context, model.Notification) {}

// Direct delivers synchronously on the caller's goroutine.
type Direct struct {
	center Center
	logger logger.Logger
}

// NewDirect creates a synchronous dispatcher.
func NewDirect(center Center) *Direct {
	return &Direct{center: center, logger: logger.Get().Named("notify-direct")}
}

// Dispatch implements Dispatcher.
func (d *Direct) Dispatch(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam
	if err := d.center.Deliver(ctx, n); err != nil {
		metrics.RecordNotificationDispatchError("center")
		d.logger.Warn(ctx, "notification delivery failed",
			logger.String("title", n.Title),
			logger.String("driver_id", n.DriverID),
			logger.Error(err),
		)
	}
}

// Async enqueues for the worker pool. A full or closed queue drops the notification.
type Async struct {
	queue  Enqueuer
	logger logger.Logger
}

// NewAsync creates a queue-backed dispatcher.
func NewAsync(q Enqueuer) *Async {
	return &Async{queue: q, logger: logger.Get().Named("notify-async")}
}

// Dispatch implements Dispatcher.
func (a *Async) Dispatch(ctx context.Context, n model.Notification) { //nolint:gocritic // hugeParam
	if !a.queue.Enqueue(ctx, n) {
		metrics.RecordNotificationDispatchError("queue_rejected")
		a.logger.Warn(ctx, "notification dropped",
			logger.String("title", n.Title),
			logger.String("driver_id", n.DriverID),
		)
	}
}
