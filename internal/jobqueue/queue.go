package jobqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

// task is one submitted work item
type task struct {
	name     string
	action   Action
	queuedAt time.Time
}

// Queue is a bounded worker pool. Work is never retried; a failing or
// panicking action is logged and counted.
type Queue struct {
	config  Config
	metrics *metrics.JobQueueMetrics
	log     logger.Logger

	mu        sync.Mutex
	work      chan task
	isRunning bool
	stats     Stats

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewQueue creates a queue. Call Start before submitting work.
func NewQueue(config Config, m *metrics.JobQueueMetrics, log logger.Logger) *Queue {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.Capacity <= 0 {
		config.Capacity = defaults.Capacity
	}
	if log == nil {
		log = logger.Global().Module(componentJobQueue)
	}

	return &Queue{
		config:  config,
		metrics: m,
		log:     log,
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return
	}

	q.work = make(chan task, q.config.Capacity)
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.isRunning = true

	for range q.config.Workers {
		q.workers.Add(1)
		go q.worker(q.work)
	}

	q.log.Debug("job queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("capacity", q.config.Capacity))
}

// Submit enqueues action under name without waiting for it to run. It fails
// when the queue is stopped or already holds Capacity pending items.
func (q *Queue) Submit(name string, action Action) error {
	if action == nil {
		return q.rejected(name, ErrNilAction)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return q.rejected(name, ErrQueueStopped)
	}

	select {
	case q.work <- task{name: name, action: action, queuedAt: time.Now()}:
	default:
		return q.rejected(name, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.config.Capacity))
	}

	q.stats.Submitted++
	q.metrics.RecordSubmit(name, nil)
	return nil
}

// rejected counts a refused submission and wraps the reason. Callers may hold q.mu.
func (q *Queue) rejected(name string, reason error) error {
	q.stats.Rejected++
	err := errors.New(reason).
		Component(componentJobQueue).
		Category(errors.CategoryJobQueue).
		Context("job", name).
		Build()
	q.metrics.RecordSubmit(name, err)
	return err
}

// Stop refuses new work and waits up to timeout for pending and running
// items to finish. On timeout the shared context is cancelled and an error
// is returned; the remaining items observe the cancellation.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	close(q.work)
	cancel := q.cancel
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		q.log.Debug("job queue stopped")
		return nil
	case <-time.After(timeout):
		cancel()
		return errors.Newf("timed out waiting for jobs to complete after %v", timeout).
			Component(componentJobQueue).
			Category(errors.CategoryJobQueue).
			Context("operation", "stop").
			Build()
	}
}

// IsRunning reports whether the queue accepts work
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isRunning
}

// Stats returns a snapshot of queue activity
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := q.stats
	if q.work != nil {
		snapshot.Pending = len(q.work)
	}
	return snapshot
}

func (q *Queue) worker(work <-chan task) {
	defer q.workers.Done()
	for t := range work {
		q.execute(t)
	}
}

// execute runs one task with panic recovery
func (q *Queue) execute(t task) {
	q.mu.Lock()
	q.stats.Running++
	ctx := q.ctx
	q.mu.Unlock()

	q.metrics.JobStarted()
	start := time.Now()

	var panicked bool
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = fmt.Errorf("job execution panicked: %v", r)
				q.log.Error("job panicked",
					logger.String("job", t.name),
					logger.Any("panic", r),
					logger.String("stack", string(debug.Stack())))
			}
		}()
		return t.action(ctx)
	}()

	elapsed := time.Since(start)
	q.metrics.JobFinished(t.name, elapsed, err)

	q.mu.Lock()
	q.stats.Running--
	switch {
	case panicked:
		q.stats.Panicked++
		q.stats.Failed++
	case err != nil:
		q.stats.Failed++
	default:
		q.stats.Succeeded++
	}
	if err != nil {
		q.stats.LastError = err.Error()
		q.stats.LastErrorTime = time.Now()
	}
	q.mu.Unlock()

	if err != nil {
		q.log.Warn("job failed",
			logger.String("job", t.name),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return
	}
	q.log.Debug("job completed",
		logger.String("job", t.name),
		logger.Duration("queued", start.Sub(t.queuedAt)),
		logger.Duration("elapsed", elapsed))
}
