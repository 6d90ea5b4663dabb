// Package jobqueue runs fire-and-forget background work on a bounded worker
// pool and persists the progress of long-running jobs.
package jobqueue

import (
	"context"
	"time"

	"github.com/rmuseum/naskban-go/internal/errors"
)

const componentJobQueue = "jobqueue"

// Common errors that can be returned by job queue operations
var (
	ErrNilAction    = errors.NewStd("cannot submit nil action")
	ErrQueueStopped = errors.NewStd("job queue has been stopped")
	ErrQueueFull    = errors.NewStd("job queue is full")
)

// Action is a unit of background work. The context is cancelled when the
// queue gives up waiting for running work during Stop.
type Action func(ctx context.Context) error

// Config holds the worker pool sizing
type Config struct {
	Workers  int // concurrent work items
	Capacity int // pending work items before Submit rejects
}

// DefaultConfig returns the pool sizing used when settings leave it unset
func DefaultConfig() Config {
	return Config{Workers: 2, Capacity: 100}
}

// Stats is a point-in-time snapshot of queue activity
type Stats struct {
	Submitted int
	Rejected  int
	Succeeded int
	Failed    int
	Panicked  int

	Pending int
	Running int

	LastError     string
	LastErrorTime time.Time
}
