package mysql

// Relational persistence on MySQL. Rows carry the serialized model as
// a JSON blob next to the few columns the queries need; the schema is
// created on first start. Uniqueness is enforced by the database and
// surfaces as services.ErrDuplicateKey so racing drains on different
// nodes stay benign.

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/json"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
)

const mysqlDuplicateEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quiz_exercises (
       id BIGINT NOT NULL,
       quiz_mode VARCHAR(32) NOT NULL DEFAULT 'SYNCHRONIZED',
       start_time DATETIME(3) NULL,
       started BOOL NOT NULL DEFAULT FALSE,
       data MEDIUMBLOB,
       PRIMARY KEY (id))`,

	`CREATE TABLE IF NOT EXISTS quiz_participants (
       login VARCHAR(190) NOT NULL,
       data MEDIUMBLOB,
       PRIMARY KEY (login))`,

	`CREATE TABLE IF NOT EXISTS quiz_participations (
       id BIGINT NOT NULL,
       exercise_id BIGINT NOT NULL,
       participant_login VARCHAR(190) NOT NULL,
       data MEDIUMBLOB,
       PRIMARY KEY (id),
       UNIQUE KEY by_participant (exercise_id, participant_login))`,

	`CREATE TABLE IF NOT EXISTS quiz_submissions (
       id BIGINT NOT NULL,
       data MEDIUMBLOB,
       PRIMARY KEY (id))`,
}

type Store struct {
	db         *sql.DB
	config_obj *config.Config
}

func NewStore(config_obj *config.Config) (*Store, error) {
	db, err := sql.Open("mysql", config_obj.Database.DSN)
	if err != nil {
		return nil, err
	}

	max_conns := config_obj.Database.MaxOpenConns
	if max_conns == 0 {
		max_conns = 20
	}
	db.SetMaxOpenConns(max_conns)
	db.SetConnMaxLifetime(time.Hour)

	self := &Store{db: db, config_obj: config_obj}
	return self, self.initialize()
}

func (self *Store) initialize() error {
	for _, statement := range schema {
		_, err := self.db.Exec(statement)
		if err != nil {
			return err
		}
	}
	return nil
}

func (self *Store) Close() error {
	return self.db.Close()
}

func (self *Store) Exercises() services.ExerciseRepository {
	return &exerciseRepo{self}
}

func (self *Store) Participations() services.ParticipationRepository {
	return &participationRepo{self}
}

func (self *Store) Submissions() services.SubmissionRepository {
	return &submissionRepo{self}
}

func (self *Store) Participants() services.ParticipantRepository {
	return &participantRepo{self}
}

// isDuplicateEntry recognizes the unique key violation the drain
// treats as another node winning the race.
func isDuplicateEntry(err error) bool {
	mysql_err, ok := err.(*mysql.MySQLError)
	return ok && mysql_err.Number == mysqlDuplicateEntry
}

type exerciseRepo struct {
	store *Store
}

func (self *exerciseRepo) findExercise(
	ctx context.Context, id int64) (*models.Exercise, error) {

	row := self.store.db.QueryRowContext(ctx,
		"SELECT data FROM quiz_exercises WHERE id = ?", id)

	var serialized []byte
	err := row.Scan(&serialized)
	if err == sql.ErrNoRows {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	exercise := &models.Exercise{}
	err = json.Unmarshal(serialized, exercise)
	if err != nil {
		return nil, err
	}
	return exercise, nil
}

func (self *exerciseRepo) FindExerciseById(
	ctx context.Context, id int64) (*models.Exercise, error) {

	exercise, err := self.findExercise(ctx, id)
	if err != nil {
		return nil, err
	}

	exercise.Questions = nil
	exercise.Statistics = nil
	return exercise, nil
}

func (self *exerciseRepo) FindExerciseWithQuestionsAndStatistics(
	ctx context.Context, id int64) (*models.Exercise, error) {
	return self.findExercise(ctx, id)
}

func (self *exerciseRepo) FindPlannedFutureExercises(
	ctx context.Context) ([]*models.Exercise, error) {

	rows, err := self.store.db.QueryContext(ctx, `
       SELECT data FROM quiz_exercises
       WHERE quiz_mode = ? AND started = FALSE AND start_time > ?`,
		models.QuizModeSynchronized, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logger := logging.GetLogger(
		self.store.config_obj, &logging.GenericComponent)

	result := []*models.Exercise{}
	for rows.Next() {
		var serialized []byte
		err := rows.Scan(&serialized)
		if err != nil {
			return nil, err
		}

		exercise := &models.Exercise{}
		err = json.Unmarshal(serialized, exercise)
		if err != nil {
			logger.Warn("Skipping unparsable exercise row: %v", err)
			continue
		}
		result = append(result, exercise)
	}
	return result, rows.Err()
}

// SaveExercise is used by the management layer and by tests to seed
// exercises.
func (self *Store) SaveExercise(
	ctx context.Context, exercise *models.Exercise) error {

	serialized, err := json.Marshal(exercise)
	if err != nil {
		return err
	}

	var start_time *time.Time
	started := false
	batch := exercise.SynchronizedBatch()
	if batch != nil {
		start_time = batch.StartTime
		started = batch.Started
	}

	quiz_mode := exercise.QuizMode
	if quiz_mode == "" {
		quiz_mode = models.QuizModeSynchronized
	}

	_, err = self.db.ExecContext(ctx, `
       INSERT INTO quiz_exercises (id, quiz_mode, start_time, started, data)
       VALUES (?, ?, ?, ?, ?)
       ON DUPLICATE KEY UPDATE quiz_mode = VALUES(quiz_mode),
         start_time = VALUES(start_time), started = VALUES(started),
         data = VALUES(data)`,
		exercise.Id, quiz_mode, start_time, started, serialized)
	return err
}

func (self *Store) DeleteExercise(ctx context.Context, exercise_id int64) error {
	_, err := self.db.ExecContext(ctx,
		"DELETE FROM quiz_exercises WHERE id = ?", exercise_id)
	return err
}

// SaveParticipant seeds participant rows.
func (self *Store) SaveParticipant(
	ctx context.Context, participant *models.Participant) error {

	serialized, err := json.Marshal(participant)
	if err != nil {
		return err
	}

	_, err = self.db.ExecContext(ctx, `
       INSERT INTO quiz_participants (login, data) VALUES (?, ?)
       ON DUPLICATE KEY UPDATE data = VALUES(data)`,
		participant.Login, serialized)
	return err
}

type participationRepo struct {
	store *Store
}

func (self *participationRepo) SaveParticipation(
	ctx context.Context, participation *models.Participation) error {

	if participation.Id == 0 {
		participation.Id = utils.GetGUID()
	}

	serialized, err := json.Marshal(participation)
	if err != nil {
		return err
	}

	_, err = self.store.db.ExecContext(ctx, `
       INSERT INTO quiz_participations
         (id, exercise_id, participant_login, data)
       VALUES (?, ?, ?, ?)`,
		participation.Id, participation.ExerciseId,
		participation.ParticipantLogin(), serialized)
	if err != nil && isDuplicateEntry(err) {
		return services.ErrDuplicateKey
	}
	return err
}

type submissionRepo struct {
	store *Store
}

func (self *submissionRepo) SaveSubmission(
	ctx context.Context, submission *models.Submission) error {

	if submission.Id == 0 {
		submission.Id = utils.GetGUID()
	}

	serialized, err := json.Marshal(submission)
	if err != nil {
		return err
	}

	_, err = self.store.db.ExecContext(ctx, `
       INSERT INTO quiz_submissions (id, data) VALUES (?, ?)`,
		submission.Id, serialized)
	if err != nil && isDuplicateEntry(err) {
		return services.ErrDuplicateKey
	}
	return err
}

type participantRepo struct {
	store *Store
}

func (self *participantRepo) FindParticipantByLogin(
	ctx context.Context, login string) (*models.Participant, error) {

	row := self.store.db.QueryRowContext(ctx,
		"SELECT data FROM quiz_participants WHERE login = ?", login)

	var serialized []byte
	err := row.Scan(&serialized)
	if err == sql.ErrNoRows {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	participant := &models.Participant{}
	err = json.Unmarshal(serialized, participant)
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// StartMySQLStore connects, migrates and registers the repository
// manager.
func StartMySQLStore(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.GenericComponent)
	logger.Info("<green>Connecting</> to MySQL store")

	store, err := NewStore(config_obj)
	if err != nil {
		return err
	}
	services.RegisterRepositoryManager(store)

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		store.Close()
	}()

	return nil
}
