// Package service wires the ledger, performance store, directory, scheduler
// and notification pipeline together and exposes them to the HTTP API.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/okian/fleetledger/internal/adapters/archive"
	"github.com/okian/fleetledger/internal/adapters/kvstore"
	eventqueue "github.com/okian/fleetledger/internal/adapters/mq/queue"
	workerpool "github.com/okian/fleetledger/internal/adapters/mq/worker"
	"github.com/okian/fleetledger/internal/adapters/notifier"
	"github.com/okian/fleetledger/internal/adapters/repository"
	"github.com/okian/fleetledger/internal/directory"
	"github.com/okian/fleetledger/internal/domain/model"
	"github.com/okian/fleetledger/internal/ledger"
	"github.com/okian/fleetledger/internal/notify"
	"github.com/okian/fleetledger/internal/performance"
	"github.com/okian/fleetledger/internal/scheduler"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service is the composition root of the engine.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	kv       kvstore.Store
	center   notifier.Center
	archiver archive.Archiver

	// Configuration
	mode              model.FleetMode
	loc               *time.Location
	tracking          bool
	simulation        bool
	simInterval       time.Duration
	seed              int64
	reconcileInterval time.Duration
	queueSize         int
	workerCount       int
	syncNotify        bool
	now               func() time.Time
	afterFunc         scheduler.AfterFunc

	// Components built by Start
	directory *directory.Memory
	perf      *performance.Store
	ledger    *ledger.Ledger
	ranking   *repository.TreapStore
	trigger   *notify.Trigger
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	scheduler *scheduler.Scheduler

	// State
	started    bool
	cancel     context.CancelFunc
	poolCancel context.CancelFunc
	loops      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		mode:        model.FleetTrip,
		loc:         time.Local,
		tracking:    true,
		simInterval: time.Minute,
		seed:        42,
		queueSize:   10000,
		workerCount: 2,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components, loads persisted state and starts the
// background actors: notification workers, the daily reset scheduler and the
// optional simulation and reconciliation loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting fleet ledger service...", logger.String("mode", string(s.mode)))

	if s.kv == nil {
		s.kv = kvstore.NewMemoryStore()
	}
	if s.center == nil {
		s.center = notifier.NewLog(s.logger)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var dispatcher notify.Dispatcher
	if s.syncNotify {
		dispatcher = notify.NewDirect(s.center)
	} else {
		s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
		s.pool = workerpool.NewPool(s.workerCount, s.queue, s.center)
		// Workers outlive runCtx so Stop can drain the queue after the loops end.
		poolCtx, poolCancel := context.WithCancel(context.WithoutCancel(ctx))
		s.poolCancel = poolCancel
		s.pool.Start(poolCtx)
		dispatcher = notify.NewAsync(s.queue)
	}
	s.trigger = notify.NewTrigger(dispatcher, notify.WithClock(s.now))

	s.directory = directory.NewMemory(s.kv)
	s.perf = performance.New(s.kv,
		performance.WithClock(s.now),
		performance.WithLocation(s.loc),
		performance.WithAlerter(s.trigger),
	)
	s.ranking = repository.NewTreapStore()
	lopts := []ledger.Option{
		ledger.WithMode(s.mode),
		ledger.WithRanker(s.ranking),
		ledger.WithPerformance(s.perf),
		ledger.WithNotifier(s.trigger),
		ledger.WithClock(s.now),
		ledger.WithLocation(s.loc),
		ledger.WithTracking(s.tracking),
		ledger.WithSimulation(s.simulation),
		ledger.WithRand(rand.New(rand.NewSource(s.seed))), //nolint:gosec // simulation only
	}
	if s.archiver != nil {
		lopts = append(lopts, ledger.WithArchiver(s.archiver))
	}
	s.ledger = ledger.New(s.kv, lopts...)

	loaders := []struct {
		name string
		load func(context.Context) error
	}{
		{"drivers", s.directory.Load},
		{"performance", s.perf.Load},
		{"ledger", s.ledger.Load},
	}
	for _, l := range loaders {
		if err := l.load(ctx); err != nil {
			cancel()
			s.shutdownPool(ctx)
			return fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	s.rankDrivers(ctx, s.directory.All())

	sopts := []scheduler.Option{scheduler.WithClock(s.now), scheduler.WithLocation(s.loc)}
	if s.afterFunc != nil {
		sopts = append(sopts, scheduler.WithAfterFunc(s.afterFunc))
	}
	s.scheduler = scheduler.New(s, s.kv, sopts...)
	s.cancel = cancel
	s.started = true

	// The scheduler calls back into ResetDaily, which must not need s.mu.
	if err := s.scheduler.Start(runCtx); err != nil {
		s.logger.Error(ctx, "scheduler start failed", logger.Error(err))
	}

	if s.simulation {
		s.loop(runCtx, "simulation", s.simInterval, s.simulateOnce)
	}
	if s.reconcileInterval > 0 {
		s.loop(runCtx, "reconciliation", s.reconcileInterval, func(ctx context.Context) { s.reconcile(ctx) })
	}
	s.loop(runCtx, "runtime-metrics", 15*time.Second, func(context.Context) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.HeapInuse)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	})

	s.logger.Info(ctx, "fleet ledger service started",
		logger.Int("drivers", s.directory.Len()),
		logger.Int("events", s.ledger.Len()),
		logger.Bool("simulation", s.simulation),
		logger.Bool("async_notifications", !s.syncNotify),
	)
	return nil
}

func (s *Service) loop(ctx context.Context, name string, every time.Duration, fn func(context.Context)) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug(ctx, "loop stopped", logger.String("loop", name))
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Background loops and the scheduler call the unexported helpers, which do
// not take s.mu: Stop holds it while waiting for them.

// Stop gracefully shuts down the service. Queued notifications are drained
// and the driver set is saved.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping fleet ledger service...")

	s.scheduler.Stop()
	s.cancel()
	s.loops.Wait()
	s.shutdownPool(ctx)

	var err error
	s.ledger.Exclusive(func() { err = s.directory.Save(ctx) })
	if err != nil {
		s.logger.Error(ctx, "saving drivers on stop failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "fleet ledger service stopped")
}

func (s *Service) shutdownPool(ctx context.Context) {
	if s.pool == nil {
		return
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "notification workers did not drain", logger.Error(err))
	}
	s.poolCancel()
	s.pool = nil
}

func (s *Service) simulateOnce(ctx context.Context) {
	n, err := s.ledger.SimulateAutomaticEarnings(ctx, s.directory.All())
	if err != nil {
		s.logger.Warn(ctx, "simulation cycle failed", logger.Error(err))
	}
	if n > 0 {
		s.saveDrivers(ctx)
	}
}

// saveDrivers persists the directory under the engine lock. Failures are
// logged and counted; the in-memory state is kept.
func (s *Service) saveDrivers(ctx context.Context) {
	var err error
	s.ledger.Exclusive(func() { err = s.directory.Save(ctx) })
	if err != nil {
		metrics.RecordErrorByComponent("directory", "save")
		s.logger.Error(ctx, "saving drivers failed", logger.Error(err))
	}
}

// ResetDaily zeroes every driver's same-day counters and persists the set.
// It implements scheduler.Resetter.
func (s *Service) ResetDaily(ctx context.Context) (int, error) {
	n := s.ledger.ResetDaily(ctx, s.directory.All())
	var err error
	s.ledger.Exclusive(func() { err = s.directory.Save(ctx) })
	if err != nil {
		return n, fmt.Errorf("persist reset: %w", err)
	}
	return n, nil
}

// rankDrivers sets each driver's ranking entry from its lifetime total,
// the same value the ledger feeds the ranking on every record.
func (s *Service) rankDrivers(ctx context.Context, drivers []*model.Driver) {
	s.ledger.Exclusive(func() {
		for _, d := range drivers {
			if err := s.ranking.Set(ctx, d.ID, d.Earnings); err != nil {
				s.logger.Warn(ctx, "ranking driver failed", logger.String("driver_id", d.ID), logger.Error(err))
			}
		}
	})
}

func (s *Service) reconcile(ctx context.Context) []ledger.Drift {
	drifts := s.ledger.Reconcile(ctx, s.directory.All(), s.now())
	if drifts == nil {
		drifts = []ledger.Drift{}
	}
	return drifts
}
