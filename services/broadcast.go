package services

// The broadcast service is a cluster wide publish/subscribe channel
// with at-least-once delivery and no ordering guarantee. It carries
// only small invalidation style messages - here the updated exercise
// snapshots - never bulk data.

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
)

var (
	broadcast_mu     sync.Mutex
	broadcastService Broadcaster
)

func RegisterBroadcaster(b Broadcaster) {
	broadcast_mu.Lock()
	defer broadcast_mu.Unlock()

	broadcastService = b
}

func GetBroadcaster() (Broadcaster, error) {
	broadcast_mu.Lock()
	defer broadcast_mu.Unlock()

	if broadcastService == nil {
		return nil, ServiceNotReadyError
	}
	return broadcastService, nil
}

type Broadcaster interface {
	Publish(ctx context.Context, topic string,
		message *ordereddict.Dict) error

	// Watch delivers all future messages on the topic until cancel
	// is called or the context is done. The watcher name appears in
	// logs and debug profiles.
	Watch(ctx context.Context, topic, watcher_name string) (
		output <-chan *ordereddict.Dict, cancel func(), err error)
}
