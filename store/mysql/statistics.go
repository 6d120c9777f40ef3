package mysql

// Statistics aggregation over MySQL. Every result is recorded in a
// bookkeeping table with the result id as primary key, so a retried
// flush after a partial failure never counts the same result twice.

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/models"
	"github.com/ls1intum/Artemis-sub079/services"
)

var statisticsSchema = []string{
	`CREATE TABLE IF NOT EXISTS quiz_statistics (
       exercise_id BIGINT NOT NULL,
       participants_rated BIGINT NOT NULL DEFAULT 0,
       participants_unrated BIGINT NOT NULL DEFAULT 0,
       score_sum DOUBLE NOT NULL DEFAULT 0,
       PRIMARY KEY (exercise_id))`,

	`CREATE TABLE IF NOT EXISTS quiz_statistics_counted (
       result_id BIGINT NOT NULL,
       exercise_id BIGINT NOT NULL,
       PRIMARY KEY (result_id))`,
}

type StatisticsStore struct {
	store *Store
}

func NewStatisticsStore(store *Store) (*StatisticsStore, error) {
	for _, statement := range statisticsSchema {
		_, err := store.db.Exec(statement)
		if err != nil {
			return nil, err
		}
	}
	return &StatisticsStore{store: store}, nil
}

func (self *StatisticsStore) UpdateStatistics(ctx context.Context,
	results []*models.Result, exercise *models.Exercise) error {

	tx, err := self.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, result := range results {
		res, err := tx.ExecContext(ctx, `
           INSERT IGNORE INTO quiz_statistics_counted
             (result_id, exercise_id) VALUES (?, ?)`,
			result.Id, exercise.Id)
		if err != nil {
			return err
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			// Counted by an earlier, partially failed flush.
			continue
		}

		rated := int64(0)
		unrated := int64(0)
		if result.Rated {
			rated = 1
		} else {
			unrated = 1
		}

		_, err = tx.ExecContext(ctx, `
           INSERT INTO quiz_statistics
             (exercise_id, participants_rated, participants_unrated, score_sum)
           VALUES (?, ?, ?, ?)
           ON DUPLICATE KEY UPDATE
             participants_rated = participants_rated + VALUES(participants_rated),
             participants_unrated = participants_unrated + VALUES(participants_unrated),
             score_sum = score_sum + VALUES(score_sum)`,
			exercise.Id, rated, unrated, result.Score)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// StartStatisticsService registers the MySQL backed statistics
// updater. Requires the repository manager to be the MySQL store.
func StartStatisticsService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.GenericComponent)

	manager, err := services.GetRepositoryManager()
	if err != nil {
		return err
	}

	store, ok := manager.(*Store)
	if !ok {
		return services.ServiceNotReadyError
	}

	updater, err := NewStatisticsStore(store)
	if err != nil {
		return err
	}
	services.RegisterStatisticsUpdater(updater)

	logger.Info("<green>Starting</> Statistics Updater (mysql)")
	return nil
}
