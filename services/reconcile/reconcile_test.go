package reconcile_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/services/reconcile"
	"github.com/ls1intum/Artemis-sub079/services/scheduler"
	"github.com/ls1intum/Artemis-sub079/utils"
	"github.com/ls1intum/Artemis-sub079/vtesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ReconcileTestSuite struct {
	vtesting.TestSuite

	engine *reconcile.Engine
	clock  *utils.MockClock
}

func (self *ReconcileTestSuite) SetupTest() {
	self.ConfigObj = self.LoadConfig()
	self.TestSuite.SetupTest()

	self.clock = utils.NewMockClock(
		time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC))

	self.engine = reconcile.NewEngine(self.ConfigObj)
	self.engine.Clock = self.clock
	services.RegisterReconciler(self.engine)
}

// seedExercise installs a synchronized exercise whose single batch
// started one minute ago with a 2 minute working window.
func (self *ReconcileTestSuite) seedExercise(id int64) *models.Exercise {
	start := self.clock.Now().Add(-time.Minute)
	due := self.clock.Now().Add(time.Hour)

	exercise := &models.Exercise{
		Id:       id,
		Title:    "Sorting algorithms",
		CourseId: 7,
		QuizMode: models.QuizModeSynchronized,
		Duration: 120,
		DueDate:  &due,
		Batches: []*models.QuizBatch{{
			Id:        id*10 + 1,
			StartTime: &start,
			Started:   true,
		}},
		Questions: []*models.QuizQuestion{{
			Id:     100,
			Points: 4,
			Options: []*models.AnswerOption{
				{Id: 1, Correct: true},
				{Id: 2},
			},
		}},
	}
	self.Store().PutExercise(exercise)
	return exercise
}

func (self *ReconcileTestSuite) seedParticipant(login string) {
	self.Store().PutParticipant(&models.Participant{
		Id:    utils.GetGUID(),
		Login: login,
		Name:  "Student " + login,
	})
}

func (self *ReconcileTestSuite) submit(
	exercise_id int64, login string, submitted bool,
	option_ids ...int64) *models.Submission {

	now := self.clock.Now()
	submission := &models.Submission{
		Submitted: submitted,
		Type:      models.SubmissionTypeManual,
		Answers: []*models.SubmittedAnswer{{
			QuestionId:        100,
			SelectedOptionIds: option_ids,
		}},
	}
	if submitted {
		submission.SubmissionDate = &now
	}

	err := self.Registry().UpdateSubmission(exercise_id, login, submission)
	assert.NoError(self.T(), err)
	return submission
}

func (self *ReconcileTestSuite) TestDeletedExerciseDropsCache() {
	self.seedExercise(1)
	self.submit(1, "ada", true, 1)
	self.Store().DeleteExercise(1)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	cache := self.Registry().ReadOnly(1)
	assert.Equal(self.T(), int64(-1), cache.ExerciseId())
}

func (self *ReconcileTestSuite) TestEndedEmptyCacheIsEvicted() {
	self.seedExercise(2)

	// Create the cache without putting anything in it.
	_, err := self.Registry().TransientWrite(2)
	assert.NoError(self.T(), err)

	// Still running - cache survives.
	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), int64(2), self.Registry().ReadOnly(2).ExerciseId())

	// Move past the due date.
	self.clock.Advance(2 * time.Hour)

	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), int64(-1), self.Registry().ReadOnly(2).ExerciseId())
}

func (self *ReconcileTestSuite) TestDrainPersistsFinalSubmission() {
	self.seedExercise(3)
	self.seedParticipant("ada")
	self.submit(3, "ada", true, 1)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	// Participation and submission are durable now.
	participation, pres := self.Store().Participation("ada", 3)
	assert.True(self.T(), pres)
	assert.Equal(self.T(), 1, self.Store().SubmissionCount())

	// Correct answer scores 100%.
	result := participation.LatestResult()
	assert.NotNil(self.T(), result)
	assert.Equal(self.T(), float64(100), result.Score)

	// The submission left the cache; the synchronized participation
	// is staged for delivery until the quiz ends.
	cache := self.Registry().ReadOnly(3)
	submissions, err := cache.GetSubmissions()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), submissions)

	participations, err := cache.GetParticipations()
	assert.NoError(self.T(), err)
	assert.Len(self.T(), participations, 1)

	// The result was flushed into statistics already.
	rated, _ := self.Statistics().Counts(3)
	assert.Equal(self.T(), int64(1), rated)
}

func (self *ReconcileTestSuite) TestInProgressSubmissionIsUntouched() {
	self.seedExercise(4)
	self.seedParticipant("bob")
	self.submit(4, "bob", false /* submitted */, 2)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	_, pres := self.Store().Participation("bob", 4)
	assert.False(self.T(), pres)

	submissions, err := self.Registry().ReadOnly(4).GetSubmissions()
	assert.NoError(self.T(), err)
	assert.Len(self.T(), submissions, 1)
	assert.False(self.T(), submissions["bob"].Submitted)
}

func (self *ReconcileTestSuite) TestTimeoutFinalization() {
	self.seedExercise(5)
	self.seedParticipant("eve")
	self.submit(5, "eve", false, 2)

	// The batch working window (2 min, started 1 min ago) expires.
	self.clock.Advance(5 * time.Minute)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	participation, pres := self.Store().Participation("eve", 5)
	assert.True(self.T(), pres)

	submission := participation.Submissions[0]
	assert.True(self.T(), submission.Submitted)
	assert.Equal(self.T(), models.SubmissionTypeTimeout, submission.Type)
	assert.Equal(self.T(), self.clock.Now(), *submission.SubmissionDate)

	// Wrong answer scores 0.
	assert.Equal(self.T(), float64(0),
		participation.LatestResult().Score)
}

func (self *ReconcileTestSuite) TestDuplicateCommitIsBenign() {
	self.seedExercise(6)
	self.seedParticipant("ada")

	// Another node already committed ada's participation.
	self.Store().PutParticipant(&models.Participant{Login: "ada"})
	err := self.Store().Participations().SaveParticipation(self.Ctx,
		&models.Participation{
			Id:          999,
			ExerciseId:  6,
			Participant: &models.Participant{Login: "ada"},
		})
	assert.NoError(self.T(), err)

	self.submit(6, "ada", true, 1)

	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	// The duplicate was dropped: no submission row was written and
	// the cache entry is gone.
	assert.Equal(self.T(), 0, self.Store().SubmissionCount())

	submissions, err := self.Registry().ReadOnly(6).GetSubmissions()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), submissions)
}

func (self *ReconcileTestSuite) TestParticipationsFlushWhenEnded() {
	exercise := self.seedExercise(7)
	self.seedParticipant("ada")
	self.submit(7, "ada", true, 1)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	// Not delivered yet - quiz still running.
	assert.Empty(self.T(), self.Notifier().DeliveriesFor("ada"))

	self.clock.Advance(2 * time.Hour)
	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	deliveries := self.Notifier().DeliveriesFor("ada")
	assert.Len(self.T(), deliveries, 1)
	assert.Equal(self.T(),
		fmt.Sprintf("/topic/exercise/%d/participation", exercise.Id),
		deliveries[0].Topic)

	// The delivered copy is sanitized.
	delivered, ok := deliveries[0].Payload.(*models.Participation)
	assert.True(self.T(), ok)
	assert.Nil(self.T(), delivered.Participant)
	assert.Equal(self.T(), int64(0), delivered.Exercise.CourseId)

	// Removed from the cache after successful delivery.
	participations, err := self.Registry().ReadOnly(7).GetParticipations()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), participations)
}

func (self *ReconcileTestSuite) TestStagedParticipationWithoutLoginIsDropped() {
	self.seedExercise(8)

	cache, err := self.Registry().TransientWrite(8)
	assert.NoError(self.T(), err)
	err = cache.SetParticipation("ghost", &models.Participation{
		ExerciseId: 8,
	})
	assert.NoError(self.T(), err)

	self.clock.Advance(2 * time.Hour)
	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	participations, err := self.Registry().ReadOnly(8).GetParticipations()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), participations)
	assert.Empty(self.T(), self.Notifier().Deliveries())
}

func (self *ReconcileTestSuite) TestDeliveryKeepsExerciseDefinitionIntact() {
	exercise := self.seedExercise(10)
	exercise.Questions[0].Options[0].Explanation = "pivot selection"

	self.seedParticipant("ada")
	self.submit(10, "ada", true, 1)

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	self.clock.Advance(2 * time.Hour)
	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	assert.Len(self.T(), self.Notifier().DeliveriesFor("ada"), 1)

	// Sanitizing the delivered copy must never reach back into the
	// canonical definition - a later drain still needs the answers.
	stored, err := self.Store().Exercises().
		FindExerciseWithQuestionsAndStatistics(self.Ctx, 10)
	assert.NoError(self.T(), err)

	option := stored.Questions[0].Options[0]
	assert.True(self.T(), option.Correct)
	assert.Equal(self.T(), "pivot selection", option.Explanation)
}

func (self *ReconcileTestSuite) TestStatisticsFailureRetries() {
	self.seedExercise(9)
	self.seedParticipant("ada")
	self.submit(9, "ada", true, 1)

	self.Statistics().FailNext = true

	err := self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	// The result stayed cached for the next tick.
	results, err := self.Registry().ReadOnly(9).GetResults()
	assert.NoError(self.T(), err)
	assert.Len(self.T(), results, 1)

	rated, _ := self.Statistics().Counts(9)
	assert.Equal(self.T(), int64(0), rated)

	err = self.engine.Tick(self.Ctx)
	assert.NoError(self.T(), err)

	results, err = self.Registry().ReadOnly(9).GetResults()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), results)

	rated, _ = self.Statistics().Counts(9)
	assert.Equal(self.T(), int64(1), rated)
}

func (self *ReconcileTestSuite) TestScheduleAndCancelStart() {
	// Plan a quiz one hour ahead.
	start := self.clock.Now().Add(time.Hour)
	self.Store().PutExercise(&models.Exercise{
		Id:       20,
		QuizMode: models.QuizModeSynchronized,
		Duration: 120,
		Batches: []*models.QuizBatch{{
			Id:        201,
			StartTime: &start,
		}},
	})

	err := self.engine.ScheduleExerciseStart(self.Ctx, 20)
	assert.NoError(self.T(), err)

	handles, err := self.Registry().ReadOnly(20).GetStartTaskHandles()
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), []string{"20-start"}, handles)

	// Scheduling again replaces rather than duplicates.
	err = self.engine.ScheduleExerciseStart(self.Ctx, 20)
	assert.NoError(self.T(), err)

	handles, err = self.Registry().ReadOnly(20).GetStartTaskHandles()
	assert.NoError(self.T(), err)
	assert.Len(self.T(), handles, 1)

	err = self.engine.CancelScheduledStart(self.Ctx, 20)
	assert.NoError(self.T(), err)

	handles, err = self.Registry().ReadOnly(20).GetStartTaskHandles()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), handles)

	// The task is gone from the scheduler as well.
	sched, err := services.GetScheduler()
	assert.NoError(self.T(), err)
	_, err = sched.GetFuture(self.Ctx, "20-start")
	assert.Equal(self.T(), services.ErrStaleTask, err)
}

func (self *ReconcileTestSuite) TestExecuteStartAnnouncesQuiz() {
	// Make scheduler timers fire immediately.
	sched, err := services.GetScheduler()
	assert.NoError(self.T(), err)
	local_sched, ok := sched.(*scheduler.LocalScheduler)
	assert.True(self.T(), ok)
	local_sched.Clock = self.clock

	start := self.clock.Now().Add(time.Minute)
	self.Store().PutExercise(&models.Exercise{
		Id:       21,
		QuizMode: models.QuizModeSynchronized,
		Duration: 120,
		Batches: []*models.QuizBatch{{
			Id:        211,
			StartTime: &start,
		}},
		Questions: []*models.QuizQuestion{{
			Id:     100,
			Points: 4,
			Options: []*models.AnswerOption{
				{Id: 1, Correct: true, Explanation: "secret"},
				{Id: 2},
			},
		}},
	})

	err = self.engine.ScheduleExerciseStart(self.Ctx, 21)
	assert.NoError(self.T(), err)

	assert.Eventually(self.T(), func() bool {
		return len(self.Notifier().Deliveries()) > 0
	}, 5*time.Second, 10*time.Millisecond)

	deliveries := self.Notifier().Deliveries()
	assert.Equal(self.T(), "/topic/quizExercise/21/start",
		deliveries[0].Topic)

	// The announced exercise never leaks solutions.
	announced, ok := deliveries[0].Payload.(*models.Exercise)
	assert.True(self.T(), ok)
	assert.True(self.T(), announced.SynchronizedBatch().Started)
	for _, option := range announced.Questions[0].Options {
		assert.False(self.T(), option.Correct)
		assert.Empty(self.T(), option.Explanation)
	}

	// Every node's snapshot converges on the started exercise.
	assert.Eventually(self.T(), func() bool {
		exercise, pres := self.Registry().ReadOnly(21).GetExercise()
		return pres && exercise.SynchronizedBatch().Started
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReconcile(t *testing.T) {
	suite.Run(t, &ReconcileTestSuite{})
}
