package sessioncache

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/redisconn"
	"github.com/ls1intum/Artemis-sub079/services"
)

// StartSessionCacheService constructs the registry variant selected
// by the config, subscribes it to exercise snapshot broadcasts and
// registers it for the rest of the process.
func StartSessionCacheService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.FrontendComponent)

	var registry services.SessionCacheRegistry
	var acc accessors

	if config_obj.Services != nil && config_obj.Services.LocalMode {
		logger.Info("<green>Starting</> Local Session Cache Service")
		local := NewLocalRegistry(config_obj)
		registry = local
		acc = local

	} else {
		client, err := redisconn.GetClient(ctx, config_obj)
		if err != nil {
			return err
		}

		logger.Info("<green>Starting</> Distributed Session Cache "+
			"Service on %v", config_obj.Redis.Address)
		distributed := NewDistributedRegistry(ctx, config_obj, client)
		registry = distributed
		acc = distributed
	}

	err := startExerciseUpdateListener(ctx, wg, config_obj, acc)
	if err != nil {
		return err
	}

	services.RegisterSessionCacheRegistry(registry)

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		registry.Shutdown()
	}()

	return nil
}
