package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/stretchr/testify/assert"
)

func TestParticipationUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	participation := &models.Participation{
		ExerciseId:  1,
		Participant: &models.Participant{Login: "ada"},
	}
	err := store.Participations().SaveParticipation(ctx, participation)
	assert.NoError(t, err)
	assert.NotZero(t, participation.Id)

	// Same row again is an upsert, not a conflict.
	err = store.Participations().SaveParticipation(ctx, participation)
	assert.NoError(t, err)

	// A different participation for the same participant and
	// exercise violates uniqueness.
	err = store.Participations().SaveParticipation(ctx,
		&models.Participation{
			ExerciseId:  1,
			Participant: &models.Participant{Login: "ada"},
		})
	assert.Equal(t, services.ErrDuplicateKey, err)

	// Another exercise is fine.
	err = store.Participations().SaveParticipation(ctx,
		&models.Participation{
			ExerciseId:  2,
			Participant: &models.Participant{Login: "ada"},
		})
	assert.NoError(t, err)
}

func TestSubmissionDuplicateId(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	submission := &models.Submission{Id: 77}
	assert.NoError(t, store.Submissions().SaveSubmission(ctx, submission))

	err := store.Submissions().SaveSubmission(ctx,
		&models.Submission{Id: 77})
	assert.Equal(t, services.ErrDuplicateKey, err)
}

func TestLeanExerciseOmitsQuestions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	store.PutExercise(&models.Exercise{
		Id:        5,
		Questions: []*models.QuizQuestion{{Id: 1}},
	})

	lean, err := store.Exercises().FindExerciseById(ctx, 5)
	assert.NoError(t, err)
	assert.Empty(t, lean.Questions)

	detailed, err := store.Exercises().
		FindExerciseWithQuestionsAndStatistics(ctx, 5)
	assert.NoError(t, err)
	assert.Len(t, detailed.Questions, 1)

	_, err = store.Exercises().FindExerciseById(ctx, 6)
	assert.Equal(t, services.ErrNotFound, err)
}

func TestPlannedFutureExercises(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	future := time.Now().Add(time.Hour)

	// Planned and synchronized - included.
	store.PutExercise(&models.Exercise{
		Id:       1,
		QuizMode: models.QuizModeSynchronized,
		Batches:  []*models.QuizBatch{{Id: 11, StartTime: &future}},
	})

	// Already started - excluded.
	store.PutExercise(&models.Exercise{
		Id:       2,
		QuizMode: models.QuizModeSynchronized,
		Batches: []*models.QuizBatch{{
			Id: 21, StartTime: &future, Started: true}},
	})

	// Batched mode - excluded.
	store.PutExercise(&models.Exercise{
		Id:       3,
		QuizMode: models.QuizModeBatched,
	})

	planned, err := store.Exercises().FindPlannedFutureExercises(ctx)
	assert.NoError(t, err)
	assert.Len(t, planned, 1)
	assert.Equal(t, int64(1), planned[0].Id)
}
