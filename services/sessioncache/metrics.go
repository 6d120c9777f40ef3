package sessioncache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cachesCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_session_caches_created",
		Help: "Number of session caches created on this node.",
	})

	cachesClearedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_session_caches_cleared",
		Help: "Number of session caches cleared.",
	})

	discardedStateCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_session_cache_discarded_entries",
		Help: "Number of in-flight entries discarded by cache clears. " +
			"Non zero values indicate lost data.",
	})

	snapshotBroadcastsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_exercise_snapshot_broadcasts_received",
		Help: "Number of exercise snapshot update broadcasts applied.",
	})
)
