package sessioncache

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/json"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
)

// Topic carrying exercise snapshot updates. The snapshot is expensive
// to (de)serialize repeatedly so it is broadcast once and applied to
// each node's process local snapshot store instead of being stored in
// the shared maps.
const ExerciseUpdateTopic = "quiz.exercise.update"

type accessors interface {
	ReadOnly(exercise_id int64) services.SessionCache
	TransientWrite(exercise_id int64) (services.SessionCache, error)
}

// ops implements the request handler facing operations on top of the
// two access primitives. Shared by both registry variants.
type ops struct {
	acc        accessors
	config_obj *config.Config
}

func (self *ops) UpdateSubmission(exercise_id int64, login string,
	submission *models.Submission) error {

	cache, err := self.acc.TransientWrite(exercise_id)
	if err != nil {
		return err
	}
	return cache.SetSubmission(login, submission)
}

func (self *ops) AddParticipation(exercise_id int64,
	participation *models.Participation) error {

	login := participation.ParticipantLogin()
	if login == "" {
		return errors.New("Participation is missing the participant")
	}

	cache, err := self.acc.TransientWrite(exercise_id)
	if err != nil {
		return err
	}
	return cache.SetParticipation(login, participation)
}

func (self *ops) AddResultForStatisticUpdate(exercise_id int64,
	result *models.Result) error {

	if result.Id == 0 {
		result.Id = utils.GetGUID()
	}

	cache, err := self.acc.TransientWrite(exercise_id)
	if err != nil {
		return err
	}
	return cache.AddResult(result)
}

func (self *ops) AddBatchAssignment(
	exercise_id int64, login string, batch_id int64) error {

	cache, err := self.acc.TransientWrite(exercise_id)
	if err != nil {
		return err
	}
	return cache.SetBatchAssignment(login, batch_id)
}

// GetCachedSubmission returns an empty submission rather than absent
// so callers do not need to handle a miss specially.
func (self *ops) GetCachedSubmission(exercise_id int64, login string) (
	*models.Submission, error) {

	submission, pres, err := self.acc.ReadOnly(exercise_id).
		GetSubmission(login)
	if err != nil {
		return nil, err
	}
	if !pres {
		return &models.Submission{}, nil
	}
	return submission, nil
}

func (self *ops) GetCachedParticipation(exercise_id int64, login string) (
	*models.Participation, bool) {

	participation, pres, err := self.acc.ReadOnly(exercise_id).
		GetParticipation(login)
	if err != nil || !pres {
		return nil, false
	}
	return participation, true
}

func (self *ops) GetBatchAssignment(exercise_id int64, login string) (
	int64, bool) {

	batch_id, pres, err := self.acc.ReadOnly(exercise_id).
		GetBatchAssignment(login)
	if err != nil || !pres {
		return 0, false
	}
	return batch_id, true
}

// UpdateExercise broadcasts the new snapshot cluster wide. Every
// node, including this one, applies it through its broadcast
// listener.
func (self *ops) UpdateExercise(
	ctx context.Context, exercise *models.Exercise) error {

	broadcaster, err := services.GetBroadcaster()
	if err != nil {
		return err
	}

	serialized, err := json.Marshal(exercise)
	if err != nil {
		return errors.New(err)
	}

	return broadcaster.Publish(ctx, ExerciseUpdateTopic,
		ordereddict.NewDict().
			Set("exercise_id", exercise.Id).
			Set("exercise", string(serialized)))
}

// startExerciseUpdateListener applies snapshot broadcasts to the
// process local snapshot store through a transient write.
func startExerciseUpdateListener(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config,
	acc accessors) error {

	broadcaster, err := services.GetBroadcaster()
	if err != nil {
		return err
	}

	output, cancel, err := broadcaster.Watch(
		ctx, ExerciseUpdateTopic, "SessionCacheRegistry")
	if err != nil {
		return err
	}

	logger := logging.GetLogger(config_obj, &logging.FrontendComponent)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return

			case message, ok := <-output:
				if !ok {
					return
				}
				err := applyExerciseUpdate(config_obj, acc, message)
				if err != nil {
					logger.Error(
						"SessionCacheRegistry: invalid exercise update: %v",
						err)
				}
			}
		}
	}()

	return nil
}

func applyExerciseUpdate(config_obj *config.Config,
	acc accessors, message *ordereddict.Dict) error {

	serialized, pres := message.GetString("exercise")
	if !pres {
		return errors.New("Exercise update without payload")
	}

	exercise := &models.Exercise{}
	err := json.Unmarshal([]byte(serialized), exercise)
	if err != nil {
		return errors.New(err)
	}

	cache, err := acc.TransientWrite(exercise.Id)
	if err != nil {
		return err
	}

	err = cache.SetExercise(exercise)
	if err != nil {
		return err
	}

	snapshotBroadcastsReceived.Inc()
	return nil
}
