package reconcile

// The reconciliation engine. Once per tick it scans every live
// session cache, finalizes and drains pending submissions into
// durable storage, flushes finished participations to waiting clients
// and feeds new results into the statistics module.
//
// Correctness under multiple nodes does not come from locking - the
// drain deliberately performs its persistence calls outside any
// registry lock - but from idempotence: a duplicate key conflict
// means another node already committed the same work, so the local
// cache entries are dropped and the tick moves on.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/constants"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/scoring"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The single cluster wide recurring task. The fixed name means at
// most one node ever owns the tick.
const ReconcileTaskName = "quiz-reconcile-tick"

var (
	submissionsDrainedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_submissions_drained",
		Help: "Number of submissions moved to durable storage.",
	})

	participationsFlushedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_participations_flushed",
		Help: "Number of finished participations delivered to clients.",
	})

	resultsFlushedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_results_flushed",
		Help: "Number of results handed to the statistics module.",
	})

	reconcileErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_reconcile_errors",
		Help: "Number of per-exercise failures during reconciliation.",
	})
)

type Engine struct {
	config_obj *config.Config

	Clock utils.Clock
}

func NewEngine(config_obj *config.Config) *Engine {
	return &Engine{
		config_obj: config_obj,
		Clock:      utils.RealClock{},
	}
}

// Tick processes every live cache. A failure in one exercise never
// aborts the others; a panic anywhere is contained to this tick.
func (self *Engine) Tick(ctx context.Context) (err error) {
	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	defer func() {
		r := recover()
		if r != nil {
			logger.Error("Reconcile tick panicked: %v", r)
			err = fmt.Errorf("Reconcile tick panicked: %v", r)
		}
	}()

	registry, err := services.GetSessionCacheRegistry()
	if err != nil {
		return err
	}

	caches, err := registry.AllCaches(ctx)
	if err != nil {
		return err
	}

	for _, cache := range caches {
		err := self.processExercise(ctx, registry, cache)
		if err != nil {
			reconcileErrorsCounter.Inc()
			logger.Error("Reconciling exercise %v: %v",
				cache.ExerciseId(), err)
		}
	}
	return nil
}

func (self *Engine) processExercise(ctx context.Context,
	registry services.SessionCacheRegistry,
	cache services.SessionCache) error {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)
	exercise_id := cache.ExerciseId()

	repository, err := services.GetRepositoryManager()
	if err != nil {
		return err
	}

	// Refresh the lean snapshot from durable storage. The cached
	// snapshot is never trusted across ticks.
	exercise, err := repository.Exercises().FindExerciseById(ctx, exercise_id)
	if err == services.ErrNotFound {
		// The exercise was deleted while its cache lingered. Cancel
		// any scheduled start, then destroy the cache. The orphaned
		// submissions are discarded - there is nothing to attach
		// them to.
		logger.Info("Exercise %v no longer exists, dropping its cache",
			exercise_id)

		err := self.CancelScheduledStart(ctx, exercise_id)
		if err != nil {
			logger.Warn("Cancelling start tasks for deleted "+
				"exercise %v: %v", exercise_id, err)
		}
		return registry.RemoveAndClear(exercise_id)
	}
	if err != nil {
		return err
	}

	now := self.Clock.Now()
	has_ended := exercise.HasEnded(now)

	submissions, err := cache.GetSubmissions()
	if err != nil {
		return err
	}
	participations, err := cache.GetParticipations()
	if err != nil {
		return err
	}
	results, err := cache.GetResults()
	if err != nil {
		return err
	}

	if len(submissions) == 0 && len(participations) == 0 &&
		len(results) == 0 {
		if has_ended {
			// Nothing pending and the quiz is over - the cache has
			// served its purpose.
			err := self.CancelScheduledStart(ctx, exercise_id)
			if err != nil {
				return err
			}
			return registry.RemoveAndClear(exercise_id)
		}
		return nil
	}

	// Only now pay for the expensive detailed snapshot.
	detailed, err := repository.Exercises().
		FindExerciseWithQuestionsAndStatistics(ctx, exercise_id)
	if err != nil {
		return err
	}

	self.drainSubmissions(ctx, cache, detailed, submissions, now)

	// The drain stages participations and produces results. Re-read
	// both so they flush in this tick rather than the next one.
	if has_ended {
		participations, err = cache.GetParticipations()
		if err != nil {
			return err
		}
		self.flushParticipations(ctx, cache, participations)
	}

	results, err = cache.GetResults()
	if err != nil {
		return err
	}
	self.flushResults(ctx, cache, detailed, results)
	return nil
}

// drainSubmissions finalizes and persists every submission that is
// final (explicitly submitted or timed out). In progress submissions
// stay cached untouched.
func (self *Engine) drainSubmissions(ctx context.Context,
	cache services.SessionCache,
	exercise *models.Exercise,
	submissions map[string]*models.Submission,
	now time.Time) {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	for login, submission := range submissions {
		batch_ended := self.batchEnded(cache, exercise, login, now)

		if !submission.Submitted {
			if !batch_ended {
				// Still in progress.
				continue
			}

			// The batch ended without an explicit submit - force
			// finalize as a timeout.
			submission.Submitted = true
			submission.Type = models.SubmissionTypeTimeout
			submission_time := now
			submission.SubmissionDate = &submission_time

		} else if submission.Type == "" {
			submission.Type = models.SubmissionTypeManual
		}

		err := self.drainOne(ctx, cache, exercise, login, submission, now)
		if err != nil {
			logger.Error("Draining submission for %v on exercise %v: %v",
				login, exercise.Id, err)
		}
	}
}

func (self *Engine) batchEnded(cache services.SessionCache,
	exercise *models.Exercise, login string, now time.Time) bool {

	batch_id, pres, err := cache.GetBatchAssignment(login)
	if err == nil && pres {
		batch := exercise.GetBatch(batch_id)
		if batch != nil {
			return batch.HasEnded(now, exercise.Duration)
		}
	}
	return exercise.HasEnded(now)
}

// drainOne commits a single final submission: build the
// participation, score the submission, persist both, stage the
// participation for delivery (synchronized mode only) and feed the
// result to statistics. Runs outside any registry lock; duplicate key
// conflicts mean another node got here first and are treated as
// success.
func (self *Engine) drainOne(ctx context.Context,
	cache services.SessionCache,
	exercise *models.Exercise,
	login string,
	submission *models.Submission,
	now time.Time) error {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	repository, err := services.GetRepositoryManager()
	if err != nil {
		return err
	}

	participant, err := repository.Participants().
		FindParticipantByLogin(ctx, login)
	if err != nil {
		return err
	}

	result := scoring.Evaluate(exercise, submission, now)

	init_time := now
	participation := &models.Participation{
		ExerciseId:         exercise.Id,
		Exercise:           exercise,
		Participant:        participant,
		Submissions:        []*models.Submission{submission},
		Results:            []*models.Result{result},
		InitializationDate: &init_time,
	}

	// Participation first, then submission - two separate calls,
	// deliberately ordered so a duplicate key conflict on one does
	// not silently destroy the other.
	err = repository.Participations().SaveParticipation(ctx, participation)
	if err == services.ErrDuplicateKey {
		// Another tick or node already committed this participant.
		logger.Warn("Participation for %v on exercise %v already "+
			"committed elsewhere", login, exercise.Id)
		return self.dropDrained(cache, login)
	}
	if err != nil {
		// Leave everything cached for the next tick.
		return err
	}

	result.ParticipationId = participation.Id

	err = repository.Submissions().SaveSubmission(ctx, submission)
	if err != nil && err != services.ErrDuplicateKey {
		return err
	}

	// Only the globally synchronized mode pushes results over the
	// live channel when the quiz ends.
	if exercise.IsSynchronized() {
		err := cache.SetParticipation(login, participation)
		if err != nil {
			return err
		}
	}

	err = cache.AddResult(result)
	if err != nil {
		return err
	}

	submissionsDrainedCounter.Inc()
	return self.dropDrained(cache, login)
}

func (self *Engine) dropDrained(
	cache services.SessionCache, login string) error {

	err := cache.RemoveSubmission(login)
	if err != nil {
		return err
	}
	return cache.RemoveBatchAssignment(login)
}

// flushParticipations delivers finished participations to their
// owners, stripping everything the client must not see first.
func (self *Engine) flushParticipations(ctx context.Context,
	cache services.SessionCache,
	participations map[string]*models.Participation) {

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	notifier, err := services.GetNotifier()
	if err != nil {
		logger.Error("flushParticipations: %v", err)
		return
	}

	for login, participation := range participations {
		if participation.ParticipantLogin() == "" {
			// Should be impossible - participations are staged with
			// their participant attached. Dropping the entry is the
			// only option; there is no one to deliver it to.
			logger.Error("Staged participation on exercise %v has no "+
				"participant! Dropping it.", cache.ExerciseId())
			_ = cache.RemoveParticipation(login)
			continue
		}

		filtered := *participation
		filtered.FilterForClientDelivery()

		topic := fmt.Sprintf(constants.ParticipationTopicFormat,
			cache.ExerciseId())
		err := notifier.DeliverToParticipant(ctx, login, topic, &filtered)
		if err != nil {
			// Leave it staged; the next tick retries.
			logger.Warn("Delivering participation to %v: %v", login, err)
			continue
		}

		err = cache.RemoveParticipation(login)
		if err != nil {
			logger.Warn("Removing delivered participation for %v: %v",
				login, err)
			continue
		}
		participationsFlushedCounter.Inc()
	}
}

// flushResults hands the cached results to the statistics module. On
// success exactly the results included in the call are removed -
// never a blanket clear, so results added concurrently survive. On
// failure everything stays cached and the next tick retries.
func (self *Engine) flushResults(ctx context.Context,
	cache services.SessionCache,
	exercise *models.Exercise,
	results map[int64]*models.Result) {

	if len(results) == 0 {
		return
	}

	logger := logging.GetLogger(self.config_obj, &logging.ReconcileComponent)

	statistics, err := services.GetStatisticsUpdater()
	if err != nil {
		logger.Error("flushResults: %v", err)
		return
	}

	included := make([]*models.Result, 0, len(results))
	included_ids := make([]int64, 0, len(results))
	for result_id, result := range results {
		included = append(included, result)
		included_ids = append(included_ids, result_id)
	}

	err = statistics.UpdateStatistics(ctx, included, exercise)
	if err != nil {
		logger.Warn("Statistics update for exercise %v failed, "+
			"keeping %v results for retry: %v",
			exercise.Id, len(included), err)
		return
	}

	for _, result_id := range included_ids {
		err := cache.RemoveResult(result_id)
		if err != nil {
			logger.Warn("Removing flushed result %v: %v", result_id, err)
			continue
		}
		resultsFlushedCounter.Inc()
	}
}

// StartReconcileService registers the engine, claims the cluster wide
// reconcile tick and schedules start tasks for all planned future
// exercises.
func StartReconcileService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.ReconcileComponent)
	logger.Info("<green>Starting</> Reconciliation Engine (tick %v)",
		config_obj.Frontend.ReconcileInterval())

	engine := NewEngine(config_obj)
	services.RegisterReconciler(engine)

	scheduler, err := services.GetScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.ScheduleFixedRate(ctx, ReconcileTaskName,
		config_obj.Frontend.ReconcileInterval(),
		func(ctx context.Context) {
			_ = engine.Tick(ctx)
		})
	if err == services.ErrDuplicateTask {
		// Another node already owns the tick. Expected whenever
		// several nodes start concurrently.
		logger.Warn("Reconcile tick already scheduled by another node")

	} else if err != nil {
		return err
	}

	return engine.scheduleAllPlannedExercises(ctx)
}
