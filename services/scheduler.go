package services

// Cluster wide at-most-once task scheduling. Tasks are deduplicated
// by name: among all nodes that concurrently register the same name,
// exactly one wins and runs the timer, the others receive
// ErrDuplicateTask which they are expected to swallow.

import (
	"context"
	"sync"
	"time"
)

var (
	scheduler_mu sync.Mutex
	gScheduler   Scheduler
)

func RegisterScheduler(scheduler Scheduler) {
	scheduler_mu.Lock()
	defer scheduler_mu.Unlock()

	gScheduler = scheduler
}

func GetScheduler() (Scheduler, error) {
	scheduler_mu.Lock()
	defer scheduler_mu.Unlock()

	if gScheduler == nil {
		return nil, ServiceNotReadyError
	}
	return gScheduler, nil
}

// TaskFunc runs on the node that won the registration race.
type TaskFunc func(ctx context.Context)

type Scheduler interface {
	// ScheduleOnce fires fn once at the given time. The returned
	// handle is the task name; it is valid on any node.
	ScheduleOnce(ctx context.Context, name string,
		at time.Time, fn TaskFunc) (string, error)

	// ScheduleFixedRate fires fn every period until the context is
	// cancelled or the task disposed.
	ScheduleFixedRate(ctx context.Context, name string,
		period time.Duration, fn TaskFunc) (string, error)

	// GetFuture resolves a handle into the underlying scheduled
	// execution. Returns ErrStaleTask when the task was disposed
	// elsewhere.
	GetFuture(ctx context.Context, handle string) (ScheduledFuture, error)
}

// ScheduledFuture describes one cluster wide scheduled execution.
type ScheduledFuture interface {
	Name() string

	// IsDone reports whether the task fired or was cancelled.
	IsDone(ctx context.Context) bool

	// Cancel prevents a not yet fired task from firing. Cancelling a
	// done task is a no-op.
	Cancel(ctx context.Context) error

	// Dispose releases the server side bookkeeping. Disposing an
	// already fired or already disposed task must not fail.
	Dispose(ctx context.Context) error
}
