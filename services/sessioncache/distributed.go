package sessioncache

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/json"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/redis/go-redis/v9"
)

// DistributedSessionCache backs each map with a cluster shared Redis
// hash. The struct itself is a cheap process local handle: all nodes
// construct their own handle for the same exercise id and see the
// same data. Only the exercise snapshot lives outside Redis, in the
// per node snapshot store.
type DistributedSessionCache struct {
	exercise_id int64

	ctx    context.Context
	client *redis.Client
	keys   keySchema

	snapshots *snapshotStore

	config_obj *config.Config
}

func (self *DistributedSessionCache) ExerciseId() int64 {
	return self.exercise_id
}

func (self *DistributedSessionCache) GetExercise() (*models.Exercise, bool) {
	return self.snapshots.Get(self.exercise_id)
}

func (self *DistributedSessionCache) SetExercise(
	exercise *models.Exercise) error {
	if exercise == nil {
		self.snapshots.Remove(self.exercise_id)
		return nil
	}
	self.snapshots.Set(exercise)
	return nil
}

func (self *DistributedSessionCache) GetSubmissions() (
	map[string]*models.Submission, error) {

	raw, err := self.client.HGetAll(
		self.ctx, self.keys.submissions(self.exercise_id)).Result()
	if err != nil {
		return nil, errors.New(err)
	}

	result := make(map[string]*models.Submission)
	for login, serialized := range raw {
		item := &models.Submission{}
		err := json.Unmarshal([]byte(serialized), item)
		if err != nil {
			continue
		}
		result[login] = item
	}
	return result, nil
}

func (self *DistributedSessionCache) GetSubmission(login string) (
	*models.Submission, bool, error) {

	serialized, err := self.client.HGet(
		self.ctx, self.keys.submissions(self.exercise_id), login).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New(err)
	}

	item := &models.Submission{}
	err = json.Unmarshal([]byte(serialized), item)
	if err != nil {
		return nil, false, errors.New(err)
	}
	return item, true, nil
}

func (self *DistributedSessionCache) SetSubmission(
	login string, submission *models.Submission) error {

	serialized, err := json.Marshal(submission)
	if err != nil {
		return errors.New(err)
	}

	return self.client.HSet(self.ctx,
		self.keys.submissions(self.exercise_id),
		login, string(serialized)).Err()
}

func (self *DistributedSessionCache) RemoveSubmission(login string) error {
	return self.client.HDel(self.ctx,
		self.keys.submissions(self.exercise_id), login).Err()
}

func (self *DistributedSessionCache) GetParticipations() (
	map[string]*models.Participation, error) {

	raw, err := self.client.HGetAll(
		self.ctx, self.keys.participations(self.exercise_id)).Result()
	if err != nil {
		return nil, errors.New(err)
	}

	result := make(map[string]*models.Participation)
	for login, serialized := range raw {
		item := &models.Participation{}
		err := json.Unmarshal([]byte(serialized), item)
		if err != nil {
			continue
		}
		result[login] = item
	}
	return result, nil
}

func (self *DistributedSessionCache) GetParticipation(login string) (
	*models.Participation, bool, error) {

	serialized, err := self.client.HGet(
		self.ctx, self.keys.participations(self.exercise_id), login).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New(err)
	}

	item := &models.Participation{}
	err = json.Unmarshal([]byte(serialized), item)
	if err != nil {
		return nil, false, errors.New(err)
	}
	return item, true, nil
}

func (self *DistributedSessionCache) SetParticipation(
	login string, participation *models.Participation) error {

	serialized, err := json.Marshal(participation)
	if err != nil {
		return errors.New(err)
	}

	return self.client.HSet(self.ctx,
		self.keys.participations(self.exercise_id),
		login, string(serialized)).Err()
}

func (self *DistributedSessionCache) RemoveParticipation(login string) error {
	return self.client.HDel(self.ctx,
		self.keys.participations(self.exercise_id), login).Err()
}

func (self *DistributedSessionCache) GetBatches() (map[string]int64, error) {
	raw, err := self.client.HGetAll(
		self.ctx, self.keys.batches(self.exercise_id)).Result()
	if err != nil {
		return nil, errors.New(err)
	}

	result := make(map[string]int64)
	for login, serialized := range raw {
		batch_id, err := parseId(serialized)
		if err != nil {
			continue
		}
		result[login] = batch_id
	}
	return result, nil
}

func (self *DistributedSessionCache) GetBatchAssignment(login string) (
	int64, bool, error) {

	serialized, err := self.client.HGet(
		self.ctx, self.keys.batches(self.exercise_id), login).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.New(err)
	}

	batch_id, err := parseId(serialized)
	if err != nil {
		return 0, false, errors.New(err)
	}
	return batch_id, true, nil
}

func (self *DistributedSessionCache) SetBatchAssignment(
	login string, batch_id int64) error {
	return self.client.HSet(self.ctx,
		self.keys.batches(self.exercise_id),
		login, formatId(batch_id)).Err()
}

func (self *DistributedSessionCache) RemoveBatchAssignment(
	login string) error {
	return self.client.HDel(self.ctx,
		self.keys.batches(self.exercise_id), login).Err()
}

func (self *DistributedSessionCache) GetResults() (
	map[int64]*models.Result, error) {

	raw, err := self.client.HGetAll(
		self.ctx, self.keys.results(self.exercise_id)).Result()
	if err != nil {
		return nil, errors.New(err)
	}

	result := make(map[int64]*models.Result)
	for id_str, serialized := range raw {
		result_id, err := parseId(id_str)
		if err != nil {
			continue
		}

		item := &models.Result{}
		err = json.Unmarshal([]byte(serialized), item)
		if err != nil {
			continue
		}
		result[result_id] = item
	}
	return result, nil
}

func (self *DistributedSessionCache) AddResult(result *models.Result) error {
	serialized, err := json.Marshal(result)
	if err != nil {
		return errors.New(err)
	}

	return self.client.HSet(self.ctx,
		self.keys.results(self.exercise_id),
		formatId(result.Id), string(serialized)).Err()
}

func (self *DistributedSessionCache) RemoveResult(result_id int64) error {
	return self.client.HDel(self.ctx,
		self.keys.results(self.exercise_id), formatId(result_id)).Err()
}

func (self *DistributedSessionCache) GetStartTaskHandles() ([]string, error) {
	serialized, err := self.client.Get(
		self.ctx, self.keys.startTasks(self.exercise_id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(err)
	}

	var handles []string
	err = json.Unmarshal([]byte(serialized), &handles)
	if err != nil {
		return nil, errors.New(err)
	}
	return handles, nil
}

func (self *DistributedSessionCache) SetStartTaskHandles(
	handles []string) error {

	if len(handles) == 0 {
		return self.client.Del(self.ctx,
			self.keys.startTasks(self.exercise_id)).Err()
	}

	serialized, err := json.Marshal(handles)
	if err != nil {
		return errors.New(err)
	}
	return self.client.Set(self.ctx,
		self.keys.startTasks(self.exercise_id),
		string(serialized), 0).Err()
}

// Clear releases every shared hash for this exercise. Scheduled start
// tasks are NOT cancelled here - cancellation is a separate explicit
// step that must precede destruction.
func (self *DistributedSessionCache) Clear() error {
	pending := 0
	for _, key := range []string{
		self.keys.submissions(self.exercise_id),
		self.keys.participations(self.exercise_id),
		self.keys.results(self.exercise_id),
	} {
		count, err := self.client.HLen(self.ctx, key).Result()
		if err == nil {
			pending += int(count)
		}
	}

	if pending > 0 {
		logger := logging.GetLogger(
			self.config_obj, &logging.FrontendComponent)
		logger.Warn("Clearing session cache for exercise %v discards %v "+
			"in-flight entries", self.exercise_id, pending)
		discardedStateCounter.Add(float64(pending))
	}

	err := self.client.Del(self.ctx,
		self.keys.allForExercise(self.exercise_id)...).Err()
	if err != nil {
		return errors.New(err)
	}

	self.snapshots.Remove(self.exercise_id)
	cachesClearedCounter.Inc()
	return nil
}
