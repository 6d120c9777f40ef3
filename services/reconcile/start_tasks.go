package reconcile

// Quiz start tasks. Every node learning about a planned synchronized
// quiz registers the same "<id>-start" task; the scheduler
// deduplicates by name so exactly one node fires the start. The task
// handles are stored in the session cache where every node can reach
// them to cancel when the quiz is changed or deleted.

import (
	"context"
	"fmt"

	"github.com/ls1intum/Artemis-sub079/constants"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
)

func startTaskName(exercise_id int64) string {
	return fmt.Sprintf("%d-start", exercise_id)
}

// ScheduleExerciseStart (re)registers the one shot start task for the
// exercise. Any previously scheduled start is cancelled first so a
// rescheduled quiz never fires at its old time.
func (self *Engine) ScheduleExerciseStart(
	ctx context.Context, exercise_id int64) error {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	err := self.CancelScheduledStart(ctx, exercise_id)
	if err != nil {
		return err
	}

	repository, err := services.GetRepositoryManager()
	if err != nil {
		return err
	}

	exercise, err := repository.Exercises().FindExerciseById(ctx, exercise_id)
	if err != nil {
		return err
	}

	if !self.needsStartTask(exercise) {
		return nil
	}

	batch := exercise.SynchronizedBatch()

	scheduler, err := services.GetScheduler()
	if err != nil {
		return err
	}

	handle, err := scheduler.ScheduleOnce(ctx,
		startTaskName(exercise_id), *batch.StartTime,
		func(ctx context.Context) {
			self.executeStart(ctx, exercise_id)
		})
	if err == services.ErrDuplicateTask {
		// Another node registered the start first - it will fire.
		logger.Debug("Start task for exercise %v already scheduled "+
			"by another node", exercise_id)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("Scheduled start of exercise %v at %v",
		exercise_id, batch.StartTime)

	registry, err := services.GetSessionCacheRegistry()
	if err != nil {
		return err
	}

	return registry.AtomicWrite(exercise_id,
		func(cache services.SessionCache) error {
			handles, err := cache.GetStartTaskHandles()
			if err != nil {
				return err
			}
			return cache.SetStartTaskHandles(append(handles, handle))
		})
}

func (self *Engine) needsStartTask(exercise *models.Exercise) bool {
	if !exercise.IsSynchronized() {
		return false
	}

	batch := exercise.SynchronizedBatch()
	if batch == nil || batch.Started || batch.StartTime == nil {
		return false
	}
	return batch.StartTime.After(self.Clock.Now())
}

// CancelScheduledStart cancels and disposes every pending start task
// handle. The scheduler calls run outside any registry lock; the
// handle list is cleared afterwards only if a cache still exists.
func (self *Engine) CancelScheduledStart(
	ctx context.Context, exercise_id int64) error {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	registry, err := services.GetSessionCacheRegistry()
	if err != nil {
		return err
	}

	handles, err := registry.ReadOnly(exercise_id).GetStartTaskHandles()
	if err != nil {
		return err
	}

	if len(handles) == 0 {
		return nil
	}

	scheduler, err := services.GetScheduler()
	if err != nil {
		return err
	}

	for _, handle := range handles {
		future, err := scheduler.GetFuture(ctx, handle)
		if err == services.ErrStaleTask {
			// Already disposed elsewhere.
			logger.Warn("Start task %v vanished before cancellation",
				handle)
			continue
		}
		if err != nil {
			return err
		}

		if !future.IsDone(ctx) {
			err := future.Cancel(ctx)
			if err != nil {
				logger.Warn("Cancelling start task %v: %v", handle, err)
			}
		}

		err = future.Dispose(ctx)
		if err != nil {
			logger.Warn("Disposing start task %v: %v", handle, err)
		}
	}

	return registry.AtomicWriteIfPresent(exercise_id,
		func(cache services.SessionCache) error {
			return cache.SetStartTaskHandles(nil)
		})
}

// executeStart fires on the single node that won the start task. It
// marks the global batch started, persists nothing itself (the
// exercise row is owned by the management layer) but pushes the
// started exercise to every node and every subscribed client.
func (self *Engine) executeStart(ctx context.Context, exercise_id int64) {
	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)
	logger.Info("<green>Starting quiz</> exercise %v", exercise_id)

	registry, err := services.GetSessionCacheRegistry()
	if err != nil {
		logger.Error("executeStart: %v", err)
		return
	}

	// The task fired, the stored handles are dead weight now.
	err = registry.AtomicWriteIfPresent(exercise_id,
		func(cache services.SessionCache) error {
			return cache.SetStartTaskHandles(nil)
		})
	if err != nil {
		logger.Warn("Clearing start task handles for exercise %v: %v",
			exercise_id, err)
	}

	repository, err := services.GetRepositoryManager()
	if err != nil {
		logger.Error("executeStart: %v", err)
		return
	}

	exercise, err := repository.Exercises().
		FindExerciseWithQuestionsAndStatistics(ctx, exercise_id)
	if err != nil {
		logger.Error("Starting exercise %v: %v", exercise_id, err)
		return
	}

	batch := exercise.SynchronizedBatch()
	if batch == nil {
		logger.Error("Exercise %v has no batch to start", exercise_id)
		return
	}

	// The record carries the actual start moment, not the planned one.
	start_time := self.Clock.Now()
	batch.Started = true
	batch.StartTime = &start_time

	// Every node refreshes its snapshot before any client asks.
	err = registry.UpdateExercise(ctx, exercise)
	if err != nil {
		logger.Error("Broadcasting started exercise %v: %v",
			exercise_id, err)
	}

	notifier, err := services.GetNotifier()
	if err != nil {
		logger.Error("executeStart: %v", err)
		return
	}

	// Clients receive the sanitized exercise - questions without
	// solutions.
	announced := *exercise
	announced.Statistics = nil
	announced.FilterSolutions()

	err = notifier.Broadcast(ctx,
		fmt.Sprintf(constants.QuizStartTopicFormat, exercise_id),
		&announced)
	if err != nil {
		logger.Error("Announcing start of exercise %v: %v",
			exercise_id, err)
	}
}

// scheduleAllPlannedExercises registers start tasks for every
// synchronized exercise whose start still lies in the future. Runs on
// every node at service start; the scheduler's name deduplication
// keeps the cluster at one task per exercise.
func (self *Engine) scheduleAllPlannedExercises(ctx context.Context) error {
	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	repository, err := services.GetRepositoryManager()
	if err != nil {
		return err
	}

	exercises, err := repository.Exercises().FindPlannedFutureExercises(ctx)
	if err != nil {
		return err
	}

	for _, exercise := range exercises {
		err := self.ScheduleExerciseStart(ctx, exercise.Id)
		if err != nil {
			logger.Error("Scheduling start of exercise %v: %v",
				exercise.Id, err)
		}
	}

	if len(exercises) > 0 {
		logger.Info("Scheduled start tasks for %v planned exercises",
			len(exercises))
	}
	return nil
}
