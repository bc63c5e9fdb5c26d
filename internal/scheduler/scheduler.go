// Package scheduler resets the drivers' same-day counters at local midnight.
//
// Lifecycle: Idle -> Armed -> Firing -> Armed ... -> Stopped. Start catches
// up on a missed reset by comparing the persisted marker with today's date.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/fleetledger/internal/adapters/kvstore"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// MarkerKey holds the local date (YYYY-MM-DD) of the last completed reset,
// stored as a JSON string.
const MarkerKey = "daily_reset_last"

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// State of the scheduler.
type State int

// Scheduler states.
const (
	Idle State = iota
	Armed
	Firing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Resetter performs the reset and reports how many drivers it touched.
type Resetter interface {
	ResetDaily(ctx context.Context) (int, error)
}

// Timer is the handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Scheduler arms one timer at a time for the next local midnight.
type Scheduler struct {
	mu    sync.Mutex
	state State
	timer Timer
	next  time.Time
	ctx   context.Context

	resetter  Resetter
	kv        kvstore.Store
	now       func() time.Time
	loc       *time.Location
	afterFunc AfterFunc
	logger    logger.Logger
}

// New creates an idle scheduler. kv stores the reset marker; nil disables catch-up.
func New(r Resetter, kv kvstore.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		state:     Idle,
		resetter:  r,
		kv:        kv,
		now:       time.Now,
		loc:       time.Local,
		afterFunc: stdAfterFunc,
		logger:    logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextMidnight returns the first instant of the calendar day after now in loc.
// time.Date normalizes the day overflow and DST gaps.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// Start performs catch-up and arms the timer. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx = ctx
	s.state = Firing
	s.mu.Unlock()

	today := model.CalendarDay(s.now(), s.loc)
	last, err := s.readMarker(ctx)
	switch {
	case err != nil:
		s.logger.Warn(ctx, "reading reset marker failed, resetting", logger.Error(err))
		s.reset(ctx)
	case last != today:
		s.logger.Info(ctx, "catching up on missed daily reset",
			logger.String("last", last),
			logger.String("today", today),
		)
		s.reset(ctx)
	}

	s.arm()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels the pending timer without firing it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return
	}
	s.state = Stopped
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Info(context.Background(), "scheduler stopped")
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the instant the armed timer fires at.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return
	}
	now := s.now()
	s.next = NextMidnight(now, s.loc)
	s.timer = s.afterFunc(s.next.Sub(now), s.fire)
	s.state = Armed
	metrics.UpdateSchedulerNext(s.next.Unix())
	s.logger.Debug(s.ctx, "daily reset armed", logger.Time("next", s.next))
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.state != Armed {
		s.mu.Unlock()
		return
	}
	s.state = Firing
	s.timer = nil
	ctx := s.ctx
	s.mu.Unlock()

	s.reset(ctx)
	s.arm()
}

// reset runs the resetter and records the marker. Failures are logged; the
// caller re-arms either way.
func (s *Scheduler) reset(ctx context.Context) {
	n, err := s.resetter.ResetDaily(ctx)
	if err != nil {
		metrics.RecordDailyResetError()
		s.logger.Error(ctx, "daily reset failed", logger.Error(err))
		return
	}
	now := s.now()
	metrics.RecordDailyReset(n, now.Unix())
	if err := s.writeMarker(ctx, model.CalendarDay(now, s.loc)); err != nil {
		metrics.RecordDailyResetError()
		s.logger.Error(ctx, "writing reset marker failed", logger.Error(err))
	}
	s.logger.Info(ctx, "daily reset complete", logger.Int("drivers", n))
}

func (s *Scheduler) readMarker(ctx context.Context) (string, error) {
	if s.kv == nil {
		return "", nil
	}
	var day string
	if _, err := kvstore.LoadJSON(ctx, s.kv, MarkerKey, &day); err != nil {
		return "", err
	}
	return day, nil
}

func (s *Scheduler) writeMarker(ctx context.Context, day string) error {
	if s.kv == nil {
		return nil
	}
	return kvstore.SaveJSON(ctx, s.kv, MarkerKey, day)
}
