package models

import (
	"time"
)

// Quiz modes. Only synchronized quizzes deliver their participations
// over the live channel when the quiz ends; the other modes drain to
// storage and feed statistics only.
const (
	QuizModeSynchronized = "SYNCHRONIZED"
	QuizModeBatched      = "BATCHED"
	QuizModeIndividual   = "INDIVIDUAL"
)

// Exercise is an immutable-per-version snapshot of a quiz exercise
// definition. The reconciler refetches it from storage on every tick,
// so a stale copy is never trusted for longer than one tick.
type Exercise struct {
	Id    int64  `json:"id"`
	Title string `json:"title,omitempty"`

	// Back references to the owning course/lecture. Stripped before
	// anything is delivered to a client.
	CourseId  int64 `json:"courseId,omitempty"`
	LectureId int64 `json:"lectureId,omitempty"`

	QuizMode string `json:"quizMode,omitempty"`

	// Working time per attempt in seconds.
	Duration int64 `json:"duration,omitempty"`

	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`

	Batches []*QuizBatch `json:"quizBatches,omitempty"`

	// Only present on the detailed snapshot
	// (FindExerciseWithQuestionsAndStatistics).
	Questions  []*QuizQuestion `json:"quizQuestions,omitempty"`
	Statistics *QuizStatistics `json:"quizPointStatistic,omitempty"`
}

func (self *Exercise) IsSynchronized() bool {
	return self.QuizMode == "" || self.QuizMode == QuizModeSynchronized
}

// HasEnded reports whether no batch can still accept submissions at
// time now.
func (self *Exercise) HasEnded(now time.Time) bool {
	if self.DueDate != nil && now.After(*self.DueDate) {
		return true
	}

	if !self.IsSynchronized() {
		return false
	}

	batch := self.SynchronizedBatch()
	if batch == nil {
		return false
	}
	return batch.HasEnded(now, self.Duration)
}

// SynchronizedBatch returns the single global batch of a synchronized
// quiz, or nil if the quiz was never started.
func (self *Exercise) SynchronizedBatch() *QuizBatch {
	if len(self.Batches) == 0 {
		return nil
	}
	return self.Batches[0]
}

func (self *Exercise) GetBatch(batch_id int64) *QuizBatch {
	for _, batch := range self.Batches {
		if batch.Id == batch_id {
			return batch
		}
	}
	return nil
}

// FilterSolutions replaces the question list with copies that carry
// no correct flags or explanations. The original question objects may
// be shared with the snapshot store and are never touched.
func (self *Exercise) FilterSolutions() {
	questions := make([]*QuizQuestion, 0, len(self.Questions))
	for _, question := range self.Questions {
		question_copy := *question

		options := make([]*AnswerOption, 0, len(question.Options))
		for _, option := range question.Options {
			option_copy := *option
			option_copy.Correct = false
			option_copy.Explanation = ""
			options = append(options, &option_copy)
		}
		question_copy.Options = options
		questions = append(questions, &question_copy)
	}
	self.Questions = questions
}

func (self *Exercise) TotalPoints() float64 {
	total := float64(0)
	for _, question := range self.Questions {
		total += question.Points
	}
	return total
}

type QuizBatch struct {
	Id        int64      `json:"id"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Started   bool       `json:"started,omitempty"`
}

// HasEnded reports whether the batch working time window is over.
func (self *QuizBatch) HasEnded(now time.Time, duration_sec int64) bool {
	if self.StartTime == nil {
		return false
	}
	end := self.StartTime.Add(time.Duration(duration_sec) * time.Second)
	return now.After(end)
}

type QuizQuestion struct {
	Id     int64   `json:"id"`
	Title  string  `json:"title,omitempty"`
	Text   string  `json:"text,omitempty"`
	Points float64 `json:"points,omitempty"`

	Options []*AnswerOption `json:"answerOptions,omitempty"`
}

// CorrectOptionIds returns the set of correct option ids for exact
// match scoring.
func (self *QuizQuestion) CorrectOptionIds() map[int64]bool {
	result := make(map[int64]bool)
	for _, option := range self.Options {
		if option.Correct {
			result[option.Id] = true
		}
	}
	return result
}

type AnswerOption struct {
	Id   int64  `json:"id"`
	Text string `json:"text,omitempty"`

	// Solution fields. Never delivered to a client while the quiz is
	// running and stripped from finished participations as well - the
	// REST layer decides separately when solutions are published.
	Correct     bool   `json:"isCorrect,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// QuizStatistics holds the aggregated counters the statistics module
// maintains. This core only passes it through.
type QuizStatistics struct {
	Id                     int64 `json:"id"`
	ParticipantsRated      int64 `json:"participantsRated,omitempty"`
	ParticipantsUnrated    int64 `json:"participantsUnrated,omitempty"`
	AverageScoreOfBatch    int64 `json:"averageScore,omitempty"`
	QuestionStatisticsDone bool  `json:"questionStatisticsDone,omitempty"`
}
