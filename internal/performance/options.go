package performance

import (
	"time"

	"github.com/okian/fleetledger/pkg/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithAlerter sets who is told about score changes.
func WithAlerter(a Alerter) Option {
	return func(s *Store) {
		s.alerter = a
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
