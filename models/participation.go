package models

import (
	"time"
)

// Participation is the durable record linking a participant, an
// exercise and their submission/result. One per participant per
// exercise.
type Participation struct {
	Id int64 `json:"id,omitempty"`

	ExerciseId int64     `json:"exerciseId"`
	Exercise   *Exercise `json:"exercise,omitempty"`

	Participant *Participant `json:"student,omitempty"`

	// Filled by the drain step.
	Submissions []*Submission `json:"submissions,omitempty"`
	Results     []*Result     `json:"results,omitempty"`

	InitializationDate *time.Time `json:"initializationDate,omitempty"`
}

func (self *Participation) ParticipantLogin() string {
	if self.Participant == nil {
		return ""
	}
	return self.Participant.Login
}

func (self *Participation) LatestResult() *Result {
	if len(self.Results) == 0 {
		return nil
	}
	return self.Results[len(self.Results)-1]
}

// FilterForClientDelivery strips everything a participant must not
// see when their finished participation is pushed over the live
// channel: course/lecture back references, the raw duplicate
// submission list and the participant identity. Embedded solution
// info in scored answers is removed from the result submissions.
//
// The nested objects may be aliased by the cache or the store, so
// they are replaced by filtered copies rather than mutated in place.
func (self *Participation) FilterForClientDelivery() {
	if self.Exercise != nil {
		exercise := *self.Exercise
		exercise.CourseId = 0
		exercise.LectureId = 0
		exercise.FilterSolutions()
		self.Exercise = &exercise
	}

	self.Participant = nil

	// The result carries the authoritative submission copy; the
	// duplicate list on the participation is dropped.
	self.Submissions = nil

	results := make([]*Result, 0, len(self.Results))
	for _, result := range self.Results {
		result_copy := *result
		if result_copy.Submission != nil {
			submission := result_copy.Submission.Copy()
			submission.FilterSolutionInfo()
			result_copy.Submission = submission
		}
		results = append(results, &result_copy)
	}
	self.Results = results
}

type Participant struct {
	Id    int64  `json:"id,omitempty"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
}

type Result struct {
	Id int64 `json:"id,omitempty"`

	ParticipationId int64 `json:"participationId,omitempty"`

	// Percentage score 0-100.
	Score float64 `json:"score"`

	Rated     bool       `json:"rated,omitempty"`
	Completed bool       `json:"completed,omitempty"`
	Date      *time.Time `json:"date,omitempty"`

	// manual or timeout, copied from the submission that produced
	// this result.
	SubmissionType string `json:"submissionType,omitempty"`

	Submission *Submission `json:"submission,omitempty"`
}
