package sessioncache

import (
	"sync"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
)

// LocalSessionCache keeps all maps in process. Used for single node
// deployments and tests; the contract is identical to the distributed
// variant.
type LocalSessionCache struct {
	mu sync.Mutex

	exercise_id int64

	exercise *models.Exercise

	submissions    map[string]*models.Submission
	participations map[string]*models.Participation
	batches        map[string]int64
	results        map[int64]*models.Result

	start_task_handles []string

	config_obj *config.Config
}

func NewLocalSessionCache(
	config_obj *config.Config, exercise_id int64) *LocalSessionCache {
	return &LocalSessionCache{
		exercise_id:    exercise_id,
		submissions:    make(map[string]*models.Submission),
		participations: make(map[string]*models.Participation),
		batches:        make(map[string]int64),
		results:        make(map[int64]*models.Result),
		config_obj:     config_obj,
	}
}

func (self *LocalSessionCache) ExerciseId() int64 {
	return self.exercise_id
}

func (self *LocalSessionCache) GetExercise() (*models.Exercise, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.exercise, self.exercise != nil
}

func (self *LocalSessionCache) SetExercise(exercise *models.Exercise) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.exercise = exercise
	return nil
}

func (self *LocalSessionCache) GetSubmissions() (
	map[string]*models.Submission, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[string]*models.Submission, len(self.submissions))
	for k, v := range self.submissions {
		result[k] = v
	}
	return result, nil
}

func (self *LocalSessionCache) GetSubmission(login string) (
	*models.Submission, bool, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	submission, pres := self.submissions[login]
	return submission, pres, nil
}

func (self *LocalSessionCache) SetSubmission(
	login string, submission *models.Submission) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.submissions[login] = submission
	return nil
}

func (self *LocalSessionCache) RemoveSubmission(login string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.submissions, login)
	return nil
}

func (self *LocalSessionCache) GetParticipations() (
	map[string]*models.Participation, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[string]*models.Participation, len(self.participations))
	for k, v := range self.participations {
		result[k] = v
	}
	return result, nil
}

func (self *LocalSessionCache) GetParticipation(login string) (
	*models.Participation, bool, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	participation, pres := self.participations[login]
	return participation, pres, nil
}

func (self *LocalSessionCache) SetParticipation(
	login string, participation *models.Participation) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.participations[login] = participation
	return nil
}

func (self *LocalSessionCache) RemoveParticipation(login string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.participations, login)
	return nil
}

func (self *LocalSessionCache) GetBatches() (map[string]int64, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[string]int64, len(self.batches))
	for k, v := range self.batches {
		result[k] = v
	}
	return result, nil
}

func (self *LocalSessionCache) GetBatchAssignment(login string) (
	int64, bool, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	batch_id, pres := self.batches[login]
	return batch_id, pres, nil
}

func (self *LocalSessionCache) SetBatchAssignment(
	login string, batch_id int64) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.batches[login] = batch_id
	return nil
}

func (self *LocalSessionCache) RemoveBatchAssignment(login string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.batches, login)
	return nil
}

func (self *LocalSessionCache) GetResults() (
	map[int64]*models.Result, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[int64]*models.Result, len(self.results))
	for k, v := range self.results {
		result[k] = v
	}
	return result, nil
}

func (self *LocalSessionCache) AddResult(result *models.Result) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.results[result.Id] = result
	return nil
}

func (self *LocalSessionCache) RemoveResult(result_id int64) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.results, result_id)
	return nil
}

func (self *LocalSessionCache) GetStartTaskHandles() ([]string, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]string{}, self.start_task_handles...), nil
}

func (self *LocalSessionCache) SetStartTaskHandles(handles []string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.start_task_handles = append([]string{}, handles...)
	return nil
}

func (self *LocalSessionCache) Clear() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	pending := len(self.submissions) + len(self.participations) +
		len(self.results)
	if pending > 0 {
		logger := logging.GetLogger(
			self.config_obj, &logging.FrontendComponent)
		logger.Warn("Clearing session cache for exercise %v discards %v "+
			"in-flight entries", self.exercise_id, pending)
		discardedStateCounter.Add(float64(pending))
	}

	self.exercise = nil
	self.submissions = make(map[string]*models.Submission)
	self.participations = make(map[string]*models.Participation)
	self.batches = make(map[string]int64)
	self.results = make(map[int64]*models.Result)
	self.start_task_handles = nil

	cachesClearedCounter.Inc()
	return nil
}
