package memory

// In memory statistics updater. Aggregates the same counters the
// relational implementation maintains, and optionally fails on demand
// so tests can exercise the retry path of the reconciler.

import (
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/models"
)

type StatisticsRecorder struct {
	mu sync.Mutex

	// exercise id -> result ids already counted. Guards idempotence
	// when the reconciler retries after a partial failure.
	counted map[int64]map[int64]bool

	rated   map[int64]int64
	unrated map[int64]int64

	FailNext bool
}

func NewStatisticsRecorder() *StatisticsRecorder {
	return &StatisticsRecorder{
		counted: make(map[int64]map[int64]bool),
		rated:   make(map[int64]int64),
		unrated: make(map[int64]int64),
	}
}

func (self *StatisticsRecorder) UpdateStatistics(ctx context.Context,
	results []*models.Result, exercise *models.Exercise) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.FailNext {
		self.FailNext = false
		return errors.New("statistics backend unavailable")
	}

	counted, pres := self.counted[exercise.Id]
	if !pres {
		counted = make(map[int64]bool)
		self.counted[exercise.Id] = counted
	}

	for _, result := range results {
		if counted[result.Id] {
			continue
		}
		counted[result.Id] = true

		if result.Rated {
			self.rated[exercise.Id]++
		} else {
			self.unrated[exercise.Id]++
		}
	}
	return nil
}

func (self *StatisticsRecorder) Counts(exercise_id int64) (rated, unrated int64) {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.rated[exercise_id], self.unrated[exercise_id]
}
