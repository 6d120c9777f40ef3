package broadcaster

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/utils"
)

// LocalBroadcaster fans messages out to in-process listeners. Used in
// local mode where the whole "cluster" is one process.
type LocalBroadcaster struct {
	mu sync.Mutex

	config_obj *config.Config

	// topic -> listeners
	listeners map[string][]*localListener
}

type localListener struct {
	id     uint64
	name   string
	output chan *ordereddict.Dict
}

func NewLocalBroadcaster(config_obj *config.Config) *LocalBroadcaster {
	return &LocalBroadcaster{
		config_obj: config_obj,
		listeners:  make(map[string][]*localListener),
	}
}

func (self *LocalBroadcaster) Publish(ctx context.Context,
	topic string, message *ordereddict.Dict) error {

	self.mu.Lock()
	listeners := append([]*localListener{}, self.listeners[topic]...)
	self.mu.Unlock()

	broadcastsSentCounter.Inc()

	for _, listener := range listeners {
		select {
		case listener.output <- message:

		default:
			// A listener that can not keep up loses messages. The
			// contract is at-least-once with periodic refresh from
			// storage healing any loss.
			logger := logging.GetLogger(
				self.config_obj, &logging.FrontendComponent)
			logger.Warn("Broadcaster: dropping message on %v for slow "+
				"listener %v", topic, listener.name)
		}
	}
	return nil
}

func (self *LocalBroadcaster) Watch(ctx context.Context,
	topic, watcher_name string) (<-chan *ordereddict.Dict, func(), error) {

	listener := &localListener{
		id:     utils.NextId(),
		name:   watcher_name,
		output: make(chan *ordereddict.Dict, 1000),
	}

	self.mu.Lock()
	self.listeners[topic] = append(self.listeners[topic], listener)
	self.mu.Unlock()

	cancel := func() {
		self.mu.Lock()
		defer self.mu.Unlock()

		existing := self.listeners[topic]
		new_listeners := make([]*localListener, 0, len(existing))
		for _, l := range existing {
			if l.id != listener.id {
				new_listeners = append(new_listeners, l)
			}
		}
		self.listeners[topic] = new_listeners
		close(listener.output)
	}

	return listener.output, cancel, nil
}
