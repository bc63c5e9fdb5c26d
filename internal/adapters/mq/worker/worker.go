// Package worker drains queued notifications into a notification center.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/fleetledger/internal/adapters/mq/queue"
	"github.com/okian/fleetledger/pkg/logger"
	"github.com/okian/fleetledger/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// Item is what workers read off the queue.
type Item = queue.Item

// Center accepts notifications. Implementations live in adapters/notifier.
type Center interface {
	Deliver(ctx context.Context, n Item) error
}

// Queue defines how workers receive items.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Item
}

// Worker delivers queued notifications.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue  Queue
	center Center
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, center Center, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		center:   center,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Error(ctx, "error delivering notification", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current delivery to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, n Item) error { //nolint:gocritic // hugeParam: items travel by value over the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.center.Deliver(ctx, n); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordNotificationDispatchError("center")
		metrics.RecordErrorByComponent("worker", "delivery_error")
		return fmt.Errorf("deliver %q for %s: %w", n.Title, n.DriverID, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count falls back to the default.
func NewPool(workerCount int, q Queue, center Center, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, center, wopts...)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
