package sessioncache_test

import (
	"testing"
	"time"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/vtesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LocalCacheTestSuite struct {
	vtesting.TestSuite
}

func (self *LocalCacheTestSuite) TestReadOnlySentinel() {
	cache := self.Registry().ReadOnly(99)
	assert.Equal(self.T(), int64(-1), cache.ExerciseId())

	err := cache.SetSubmission("ada", &models.Submission{})
	assert.Equal(self.T(), services.ErrUnsupportedMutation, err)

	err = cache.AddResult(&models.Result{})
	assert.Equal(self.T(), services.ErrUnsupportedMutation, err)

	submissions, err := cache.GetSubmissions()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), submissions)
}

func (self *LocalCacheTestSuite) TestTransientWriteMemoizes() {
	first, err := self.Registry().TransientWrite(1)
	assert.NoError(self.T(), err)

	second, err := self.Registry().TransientWrite(1)
	assert.NoError(self.T(), err)
	assert.Same(self.T(), first, second)

	assert.Same(self.T(), first, self.Registry().ReadOnly(1))
}

func (self *LocalCacheTestSuite) TestSubmissionLifecycle() {
	registry := self.Registry()

	err := registry.UpdateSubmission(2, "ada", &models.Submission{
		Submitted: true,
		Type:      models.SubmissionTypeManual,
	})
	assert.NoError(self.T(), err)

	submission, err := registry.GetCachedSubmission(2, "ada")
	assert.NoError(self.T(), err)
	assert.True(self.T(), submission.Submitted)

	// A miss yields an empty submission, never nil.
	submission, err = registry.GetCachedSubmission(2, "bob")
	assert.NoError(self.T(), err)
	assert.NotNil(self.T(), submission)
	assert.False(self.T(), submission.Submitted)

	err = registry.ReadOnly(2).RemoveSubmission("ada")
	assert.NoError(self.T(), err)

	submissions, err := registry.ReadOnly(2).GetSubmissions()
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), submissions)
}

func (self *LocalCacheTestSuite) TestParticipationNeedsParticipant() {
	err := self.Registry().AddParticipation(3, &models.Participation{
		ExerciseId: 3,
	})
	assert.Error(self.T(), err)

	err = self.Registry().AddParticipation(3, &models.Participation{
		ExerciseId:  3,
		Participant: &models.Participant{Login: "ada"},
	})
	assert.NoError(self.T(), err)

	participation, pres := self.Registry().GetCachedParticipation(3, "ada")
	assert.True(self.T(), pres)
	assert.Equal(self.T(), "ada", participation.ParticipantLogin())
}

func (self *LocalCacheTestSuite) TestResultGetsIdAssigned() {
	result := &models.Result{Score: 75}
	err := self.Registry().AddResultForStatisticUpdate(4, result)
	assert.NoError(self.T(), err)
	assert.NotZero(self.T(), result.Id)

	results, err := self.Registry().ReadOnly(4).GetResults()
	assert.NoError(self.T(), err)
	assert.Len(self.T(), results, 1)
	assert.Equal(self.T(), float64(75), results[result.Id].Score)
}

func (self *LocalCacheTestSuite) TestBatchAssignments() {
	registry := self.Registry()

	err := registry.AddBatchAssignment(5, "ada", 51)
	assert.NoError(self.T(), err)

	batch_id, pres := registry.GetBatchAssignment(5, "ada")
	assert.True(self.T(), pres)
	assert.Equal(self.T(), int64(51), batch_id)

	_, pres = registry.GetBatchAssignment(5, "bob")
	assert.False(self.T(), pres)
}

func (self *LocalCacheTestSuite) TestUpdateExerciseRefreshesSnapshot() {
	err := self.Registry().UpdateExercise(self.Ctx, &models.Exercise{
		Id:    6,
		Title: "Recursion",
	})
	assert.NoError(self.T(), err)

	// The update travels through the broadcast loop.
	assert.Eventually(self.T(), func() bool {
		exercise, pres := self.Registry().ReadOnly(6).GetExercise()
		return pres && exercise.Title == "Recursion"
	}, 5*time.Second, 10*time.Millisecond)
}

func (self *LocalCacheTestSuite) TestClearRemovesEverything() {
	_, err := self.Registry().TransientWrite(7)
	assert.NoError(self.T(), err)
	_, err = self.Registry().TransientWrite(8)
	assert.NoError(self.T(), err)

	err = self.Registry().Clear()
	assert.NoError(self.T(), err)

	caches, err := self.Registry().AllCaches(self.Ctx)
	assert.NoError(self.T(), err)
	assert.Empty(self.T(), caches)
}

func TestLocalCache(t *testing.T) {
	suite.Run(t, &LocalCacheTestSuite{})
}
