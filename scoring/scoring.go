// Evaluate final quiz submissions against the exercise definition.
//
// Scoring is all-or-nothing per question: a question contributes its
// full weight when the selected option set exactly matches the
// correct set, otherwise nothing. The result score is the percentage
// of achieved weight over total weight.
package scoring

import (
	"math"
	"time"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/utils"
)

// Evaluate scores the submission in place (embedding the question
// snapshot into each answer) and returns the produced result. The
// exercise must carry its full question set.
func Evaluate(exercise *models.Exercise,
	submission *models.Submission, now time.Time) *models.Result {

	achieved := float64(0)

	for _, question := range exercise.Questions {
		answer := submission.GetAnswer(question.Id)
		if answer == nil {
			continue
		}

		answer.Question = question
		answer.ScoreInPoints = scoreQuestion(question, answer)
		achieved += answer.ScoreInPoints
	}

	score := float64(0)
	total := exercise.TotalPoints()
	if total > 0 {
		score = math.Round(achieved/total*10000) / 100
	}

	return &models.Result{
		Id:             utils.GetGUID(),
		Score:          score,
		Rated:          true,
		Completed:      true,
		Date:           &now,
		SubmissionType: submission.Type,
		Submission:     submission,
	}
}

func scoreQuestion(question *models.QuizQuestion,
	answer *models.SubmittedAnswer) float64 {

	correct := question.CorrectOptionIds()
	if len(answer.SelectedOptionIds) != len(correct) {
		return 0
	}

	for _, id := range answer.SelectedOptionIds {
		if !correct[id] {
			return 0
		}
	}
	return question.Points
}
