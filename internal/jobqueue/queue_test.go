package jobqueue

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("testing.(*T).Run"))
}

func newTestQueue(t *testing.T, config Config) *Queue {
	t.Helper()
	q := NewQueue(config, nil, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	q.Start()
	t.Cleanup(func() { _ = q.Stop(testutil.DefaultTestTimeout) })
	return q
}

func TestSubmitRunsAction(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 4})

	done := make(chan struct{})
	require.NoError(t, q.Submit("fill", func(ctx context.Context) error {
		close(done)
		return nil
	}))

	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "action did not run")
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))

	stats := q.Stats()
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Zero(t, stats.Failed)
}

func TestSubmitRejectsNilAction(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 1})

	err := q.Submit("nil", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilAction)
	assert.True(t, errors.IsCategory(err, errors.CategoryJobQueue))
}

func TestSubmitBeforeStartIsRejected(t *testing.T) {
	q := NewQueue(Config{}, nil, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))

	err := q.Submit("early", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.False(t, q.IsRunning())
}

func TestSubmitAfterStopIsRejected(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 1})
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))

	err := q.Submit("late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.Equal(t, 1, q.Stats().Rejected)
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "blocker did not start")

	// One slot in the buffer, then the queue is full.
	require.NoError(t, q.Submit("pending", func(context.Context) error { return nil }))
	err := q.Submit("overflow", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))
	assert.Equal(t, 2, q.Stats().Succeeded)
}

func TestPanicIsRecovered(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 2})

	require.NoError(t, q.Submit("explode", func(context.Context) error {
		panic("boom")
	}))
	done := make(chan struct{})
	require.NoError(t, q.Submit("after", func(context.Context) error {
		close(done)
		return nil
	}))

	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "worker died after panic")
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))

	stats := q.Stats()
	assert.Equal(t, 1, stats.Panicked)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Contains(t, stats.LastError, "panicked")
}

func TestFailedActionIsNotRetried(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 1})

	var calls atomic.Int32
	require.NoError(t, q.Submit("fails", func(context.Context) error {
		calls.Add(1)
		return errors.NewStd("upstream unavailable")
	}))
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, q.Stats().Failed)
}

func TestStopDrainsPendingWork(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 2, Capacity: 10})

	var mu sync.Mutex
	ran := 0
	for range 10 {
		require.NoError(t, q.Submit("count", func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}))
	}

	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))
	assert.Equal(t, 10, ran)
}

func TestStopTimeoutCancelsContext(t *testing.T) {
	q := newTestQueue(t, Config{Workers: 1, Capacity: 1})

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, q.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "slow job did not start")

	err := q.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryJobQueue))

	testutil.WaitForChannel(t, cancelled, testutil.DefaultTestTimeout, "context was not cancelled")
	q.workers.Wait()
}

func TestQueueRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewJobQueueMetrics(registry)
	require.NoError(t, err)

	q := NewQueue(Config{Workers: 1, Capacity: 1}, m, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	q.Start()
	require.NoError(t, q.Submit("fill", func(context.Context) error { return nil }))
	require.NoError(t, q.Stop(testutil.DefaultTestTimeout))
	_ = q.Submit("fill", func(context.Context) error { return nil })

	count, err := promtest.GatherAndCount(registry, "naskban_jobqueue_submitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one accepted and one rejected series")

	count, err = promtest.GatherAndCount(registry, "naskban_jobqueue_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
