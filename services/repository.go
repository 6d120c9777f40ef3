package services

// The relational persistence layer is an external collaborator. The
// reconciler only needs the handful of queries below; their
// transactional behavior (and the schema) belongs to the repository
// implementation.
//
// Save operations report ErrDuplicateKey when the row was already
// committed - under multi node drains this is a benign race and the
// caller treats it as success.

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/models"
)

var (
	repository_mu sync.Mutex
	gRepository   RepositoryManager
)

func RegisterRepositoryManager(manager RepositoryManager) {
	repository_mu.Lock()
	defer repository_mu.Unlock()

	gRepository = manager
}

func GetRepositoryManager() (RepositoryManager, error) {
	repository_mu.Lock()
	defer repository_mu.Unlock()

	if gRepository == nil {
		return nil, ServiceNotReadyError
	}
	return gRepository, nil
}

type RepositoryManager interface {
	Exercises() ExerciseRepository
	Participations() ParticipationRepository
	Submissions() SubmissionRepository
	Participants() ParticipantRepository
}

type ExerciseRepository interface {
	// FindExerciseById returns the lean snapshot (no questions).
	// ErrNotFound when the exercise was deleted.
	FindExerciseById(ctx context.Context, id int64) (*models.Exercise, error)

	// The expensive detailed snapshot including questions and
	// statistics. Fetched once per tick and only when there is
	// pending work.
	FindExerciseWithQuestionsAndStatistics(ctx context.Context,
		id int64) (*models.Exercise, error)

	// All synchronized exercises whose start lies in the future.
	// Used at service start to schedule their start tasks.
	FindPlannedFutureExercises(ctx context.Context) ([]*models.Exercise, error)
}

type ParticipationRepository interface {
	SaveParticipation(ctx context.Context,
		participation *models.Participation) error
}

type SubmissionRepository interface {
	SaveSubmission(ctx context.Context,
		submission *models.Submission) error
}

type ParticipantRepository interface {
	FindParticipantByLogin(ctx context.Context,
		login string) (*models.Participant, error)
}
