package models

import (
	"time"
)

// How a submission reached its final state.
const (
	SubmissionTypeManual  = "manual"
	SubmissionTypeTimeout = "timeout"
)

// Submission is one participant's set of answers for one exercise
// attempt. While the quiz runs it lives in the session cache only; the
// reconciler moves it to durable storage once it is final.
type Submission struct {
	Id int64 `json:"id,omitempty"`

	Submitted      bool       `json:"submitted,omitempty"`
	SubmissionDate *time.Time `json:"submissionDate,omitempty"`

	// manual or timeout. Set when the submission becomes final.
	Type string `json:"type,omitempty"`

	Answers []*SubmittedAnswer `json:"submittedAnswers,omitempty"`
}

func (self *Submission) IsFinal() bool {
	return self.Submitted && self.Type != ""
}

func (self *Submission) GetAnswer(question_id int64) *SubmittedAnswer {
	for _, answer := range self.Answers {
		if answer.QuestionId == question_id {
			return answer
		}
	}
	return nil
}

// Copy returns a deep copy so cache readers can not mutate entries
// another writer is about to commit.
func (self *Submission) Copy() *Submission {
	result := *self
	result.Answers = nil
	for _, answer := range self.Answers {
		answer_copy := *answer
		if answer.Question != nil {
			question_copy := *answer.Question
			question_copy.Options = nil
			for _, option := range answer.Question.Options {
				option_copy := *option
				question_copy.Options = append(
					question_copy.Options, &option_copy)
			}
			answer_copy.Question = &question_copy
		}
		answer_copy.SelectedOptionIds = append(
			[]int64{}, answer.SelectedOptionIds...)
		result.Answers = append(result.Answers, &answer_copy)
	}
	return &result
}

// FilterSolutionInfo removes per question key material embedded in
// already scored answers before delivery to a client.
func (self *Submission) FilterSolutionInfo() {
	for _, answer := range self.Answers {
		answer.ScoreInPoints = 0
		if answer.Question == nil {
			continue
		}
		for _, option := range answer.Question.Options {
			option.Correct = false
			option.Explanation = ""
		}
	}
}

// SubmittedAnswer holds the selected options for one question. The
// question snapshot is embedded when the answer is evaluated so the
// result is self contained.
type SubmittedAnswer struct {
	QuestionId        int64   `json:"quizQuestionId"`
	SelectedOptionIds []int64 `json:"selectedOptions,omitempty"`

	Question      *QuizQuestion `json:"quizQuestion,omitempty"`
	ScoreInPoints float64       `json:"scoreInPoints,omitempty"`
}
