package memory

// In memory repository used by the local profile and by tests. It
// honors the same uniqueness contract as the relational store: one
// participation per participant and exercise, one submission per
// participation.

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
)

type Store struct {
	mu sync.Mutex

	exercises    map[int64]*models.Exercise
	participants map[string]*models.Participant

	// participant login + exercise id -> participation
	participations map[participationKey]*models.Participation
	submissions    map[int64]*models.Submission
}

type participationKey struct {
	login       string
	exercise_id int64
}

func NewStore() *Store {
	return &Store{
		exercises:      make(map[int64]*models.Exercise),
		participants:   make(map[string]*models.Participant),
		participations: make(map[participationKey]*models.Participation),
		submissions:    make(map[int64]*models.Submission),
	}
}

func (self *Store) Exercises() services.ExerciseRepository       { return &exerciseRepo{self} }
func (self *Store) Participations() services.ParticipationRepository {
	return &participationRepo{self}
}
func (self *Store) Submissions() services.SubmissionRepository   { return &submissionRepo{self} }
func (self *Store) Participants() services.ParticipantRepository { return &participantRepo{self} }

// Seeding helpers for tests and the local profile.

func (self *Store) PutExercise(exercise *models.Exercise) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.exercises[exercise.Id] = exercise
}

func (self *Store) DeleteExercise(exercise_id int64) {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.exercises, exercise_id)
}

func (self *Store) PutParticipant(participant *models.Participant) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.participants[participant.Login] = participant
}

func (self *Store) Participation(
	login string, exercise_id int64) (*models.Participation, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	participation, pres := self.participations[participationKey{
		login: login, exercise_id: exercise_id}]
	return participation, pres
}

func (self *Store) SubmissionCount() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.submissions)
}

type exerciseRepo struct {
	store *Store
}

func (self *exerciseRepo) FindExerciseById(
	ctx context.Context, id int64) (*models.Exercise, error) {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	exercise, pres := self.store.exercises[id]
	if !pres {
		return nil, services.ErrNotFound
	}

	// Lean copy without questions.
	lean := *exercise
	lean.Questions = nil
	lean.Statistics = nil
	return &lean, nil
}

func (self *exerciseRepo) FindExerciseWithQuestionsAndStatistics(
	ctx context.Context, id int64) (*models.Exercise, error) {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	exercise, pres := self.store.exercises[id]
	if !pres {
		return nil, services.ErrNotFound
	}

	detailed := *exercise
	return &detailed, nil
}

func (self *exerciseRepo) FindPlannedFutureExercises(
	ctx context.Context) ([]*models.Exercise, error) {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	result := []*models.Exercise{}
	for _, exercise := range self.store.exercises {
		if !exercise.IsSynchronized() {
			continue
		}
		batch := exercise.SynchronizedBatch()
		if batch == nil || batch.Started || batch.StartTime == nil {
			continue
		}
		result = append(result, exercise)
	}
	return result, nil
}

type participationRepo struct {
	store *Store
}

func (self *participationRepo) SaveParticipation(
	ctx context.Context, participation *models.Participation) error {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	key := participationKey{
		login:       participation.ParticipantLogin(),
		exercise_id: participation.ExerciseId,
	}

	existing, pres := self.store.participations[key]
	if pres && existing.Id != participation.Id {
		return services.ErrDuplicateKey
	}

	if participation.Id == 0 {
		participation.Id = utils.GetGUID()
	}
	self.store.participations[key] = participation
	return nil
}

type submissionRepo struct {
	store *Store
}

func (self *submissionRepo) SaveSubmission(
	ctx context.Context, submission *models.Submission) error {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	if submission.Id == 0 {
		submission.Id = utils.GetGUID()

	} else {
		_, pres := self.store.submissions[submission.Id]
		if pres {
			return services.ErrDuplicateKey
		}
	}
	self.store.submissions[submission.Id] = submission
	return nil
}

type participantRepo struct {
	store *Store
}

func (self *participantRepo) FindParticipantByLogin(
	ctx context.Context, login string) (*models.Participant, error) {
	self.store.mu.Lock()
	defer self.store.mu.Unlock()

	participant, pres := self.store.participants[login]
	if !pres {
		return nil, services.ErrNotFound
	}
	return participant, nil
}
