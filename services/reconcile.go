package services

// The reconciler drains the session caches into durable storage once
// per tick and owns the quiz start tasks.

import (
	"context"
	"sync"
)

var (
	reconciler_mu sync.Mutex
	gReconciler   Reconciler
)

func RegisterReconciler(reconciler Reconciler) {
	reconciler_mu.Lock()
	defer reconciler_mu.Unlock()

	gReconciler = reconciler
}

func GetReconciler() (Reconciler, error) {
	reconciler_mu.Lock()
	defer reconciler_mu.Unlock()

	if gReconciler == nil {
		return nil, ServiceNotReadyError
	}
	return gReconciler, nil
}

type Reconciler interface {
	// Tick processes every live cache exactly once. Failures in one
	// exercise never abort the others.
	Tick(ctx context.Context) error

	// ScheduleExerciseStart registers the one shot start task for a
	// synchronized exercise. Safe to call from every node; the
	// duplicate task race is swallowed internally.
	ScheduleExerciseStart(ctx context.Context, exercise_id int64) error

	// CancelScheduledStart cancels and disposes any pending start
	// tasks for the exercise.
	CancelScheduledStart(ctx context.Context, exercise_id int64) error
}
