package scoring

import (
	"testing"
	"time"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/stretchr/testify/assert"
)

func makeExercise() *models.Exercise {
	return &models.Exercise{
		Id: 1,
		Questions: []*models.QuizQuestion{
			{
				Id:     10,
				Points: 3,
				Options: []*models.AnswerOption{
					{Id: 1, Correct: true},
					{Id: 2, Correct: true},
					{Id: 3},
				},
			},
			{
				Id:     11,
				Points: 1,
				Options: []*models.AnswerOption{
					{Id: 4, Correct: true},
					{Id: 5},
				},
			},
		},
	}
}

func TestAllOrNothingScoring(t *testing.T) {
	now := time.Now()
	exercise := makeExercise()

	// First question exactly right, second wrong.
	submission := &models.Submission{
		Submitted: true,
		Type:      models.SubmissionTypeManual,
		Answers: []*models.SubmittedAnswer{
			{QuestionId: 10, SelectedOptionIds: []int64{1, 2}},
			{QuestionId: 11, SelectedOptionIds: []int64{5}},
		},
	}

	result := Evaluate(exercise, submission, now)
	assert.Equal(t, float64(75), result.Score)
	assert.True(t, result.Rated)
	assert.True(t, result.Completed)
	assert.Equal(t, models.SubmissionTypeManual, result.SubmissionType)
	assert.NotZero(t, result.Id)

	// Per answer points were embedded back into the submission.
	assert.Equal(t, float64(3), submission.Answers[0].ScoreInPoints)
	assert.Equal(t, float64(0), submission.Answers[1].ScoreInPoints)
}

func TestPartialSelectionScoresNothing(t *testing.T) {
	exercise := makeExercise()

	// Selecting a strict subset of the correct options is worth 0.
	submission := &models.Submission{
		Answers: []*models.SubmittedAnswer{
			{QuestionId: 10, SelectedOptionIds: []int64{1}},
		},
	}

	result := Evaluate(exercise, submission, time.Now())
	assert.Equal(t, float64(0), result.Score)
}

func TestSupersetSelectionScoresNothing(t *testing.T) {
	exercise := makeExercise()

	submission := &models.Submission{
		Answers: []*models.SubmittedAnswer{
			{QuestionId: 10, SelectedOptionIds: []int64{1, 2, 3}},
		},
	}

	result := Evaluate(exercise, submission, time.Now())
	assert.Equal(t, float64(0), result.Score)
}

func TestUnansweredQuestions(t *testing.T) {
	exercise := makeExercise()

	result := Evaluate(exercise, &models.Submission{}, time.Now())
	assert.Equal(t, float64(0), result.Score)
}

func TestScoreRounding(t *testing.T) {
	// One of three single point questions -> 33.33%.
	exercise := &models.Exercise{
		Questions: []*models.QuizQuestion{
			{Id: 1, Points: 1, Options: []*models.AnswerOption{
				{Id: 1, Correct: true}}},
			{Id: 2, Points: 1, Options: []*models.AnswerOption{
				{Id: 2, Correct: true}}},
			{Id: 3, Points: 1, Options: []*models.AnswerOption{
				{Id: 3, Correct: true}}},
		},
	}

	submission := &models.Submission{
		Answers: []*models.SubmittedAnswer{
			{QuestionId: 1, SelectedOptionIds: []int64{1}},
		},
	}

	result := Evaluate(exercise, submission, time.Now())
	assert.Equal(t, 33.33, result.Score)
}

func TestExerciseWithoutQuestions(t *testing.T) {
	result := Evaluate(&models.Exercise{}, &models.Submission{}, time.Now())
	assert.Equal(t, float64(0), result.Score)
}
