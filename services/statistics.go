package services

// The statistics aggregation module is an external collaborator; only
// its interface is visible here. Updates must be idempotent on the
// caller side: on failure the reconciler leaves the results cached
// and retries on the next tick.

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/models"
)

var (
	statistics_mu sync.Mutex
	gStatistics   StatisticsUpdater
)

func RegisterStatisticsUpdater(updater StatisticsUpdater) {
	statistics_mu.Lock()
	defer statistics_mu.Unlock()

	gStatistics = updater
}

func GetStatisticsUpdater() (StatisticsUpdater, error) {
	statistics_mu.Lock()
	defer statistics_mu.Unlock()

	if gStatistics == nil {
		return nil, ServiceNotReadyError
	}
	return gStatistics, nil
}

type StatisticsUpdater interface {
	UpdateStatistics(ctx context.Context,
		results []*models.Result, exercise *models.Exercise) error
}
