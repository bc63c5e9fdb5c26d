// Package notifier holds the notification center sinks: log, memory and Kafka.
package notifier

import (
	"context"
	"sync"

	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
)

// Center accepts notification requests. Delivery is fire-and-forget from
// the ledger's point of view; errors only reach the dispatcher.
type Center interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Log writes each notification as a structured log line.
type Log struct {
	logger logger.Logger
}

// NewLog creates a log-backed center.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Get()
	}
	return &Log{logger: l.Named("notifications")}
}

// Deliver implements Center.
func (c *Log) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	fields := []logger.Field{
		logger.String("type", string(n.Type)),
		logger.String("title", n.Title),
		logger.String("message", n.Message),
		logger.String("priority", string(n.Priority)),
		logger.String("driver_id", n.DriverID),
	}
	switch n.Priority {
	case model.PriorityHigh, model.PriorityCritical:
		c.logger.Warn(ctx, "notification", fields...)
	default:
		c.logger.Info(ctx, "notification", fields...)
	}
	return nil
}

// Memory keeps delivered notifications in order. Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	items []model.Notification
}

// NewMemory creates an empty memory center.
func NewMemory() *Memory { return &Memory{} }

// Deliver implements Center.
func (c *Memory) Deliver(_ context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
	return nil
}

// All returns a copy of every delivered notification, oldest first.
func (c *Memory) All() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of delivered notifications.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Reset drops everything delivered so far.
func (c *Memory) Reset() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Fanout delivers to every center and returns the first error.
type Fanout []Center

// Deliver implements Center.
func (f Fanout) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	var first error
	for _, c := range f {
		if err := c.Deliver(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
