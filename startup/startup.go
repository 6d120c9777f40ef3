package startup

// Assembles the service set for one node. Order matters: the
// scheduler and cache come up before the reconciler so the reconcile
// tick can be claimed at once, and the store comes first of all
// because nearly everything reads it.

import (
	"context"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/services/broadcaster"
	"github.com/ls1intum/Artemis-sub079/services/notifications"
	"github.com/ls1intum/Artemis-sub079/services/reconcile"
	"github.com/ls1intum/Artemis-sub079/services/scheduler"
	"github.com/ls1intum/Artemis-sub079/services/sessioncache"
	"github.com/ls1intum/Artemis-sub079/store/memory"
	"github.com/ls1intum/Artemis-sub079/store/mysql"
)

// StartFrontendServices starts the node as a quiz frontend.
func StartFrontendServices(
	ctx context.Context,
	config_obj *config.Config) (*services.Service, error) {

	sm := services.NewServiceManager(ctx, config_obj)

	err := startStore(sm, config_obj)
	if err != nil {
		return sm, err
	}

	err = sm.Start(broadcaster.StartBroadcastService)
	if err != nil {
		return sm, err
	}

	if config_obj.Services == nil {
		return sm, nil
	}

	if config_obj.Services.SessionCache {
		err := sm.Start(sessioncache.StartSessionCacheService)
		if err != nil {
			return sm, err
		}
	}

	if config_obj.Services.Scheduler {
		err := sm.Start(scheduler.StartSchedulerService)
		if err != nil {
			return sm, err
		}
	}

	if config_obj.Services.Notifications {
		err := sm.Start(notifications.StartNotificationService)
		if err != nil {
			return sm, err
		}
	}

	if config_obj.Services.Reconciler {
		err := sm.Start(reconcile.StartReconcileService)
		if err != nil {
			return sm, err
		}
	}

	return sm, nil
}

func startStore(sm *services.Service, config_obj *config.Config) error {
	if config_obj.Database == nil || config_obj.Database.DSN == "" {
		// No database configured - run on the in memory store. Only
		// sensible for single node local deployments.
		store := memory.NewStore()
		services.RegisterRepositoryManager(store)
		services.RegisterStatisticsUpdater(memory.NewStatisticsRecorder())
		return nil
	}

	err := sm.Start(mysql.StartMySQLStore)
	if err != nil {
		return err
	}
	return sm.Start(mysql.StartStatisticsService)
}
