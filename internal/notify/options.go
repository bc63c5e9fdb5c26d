package notify

import (
	"time"

	"github.com/okian/fleetledger/pkg/logger"
)

// Option configures a Trigger.
type Option func(*Trigger)

// WithClock overrides the time source used to stamp notifications.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}
