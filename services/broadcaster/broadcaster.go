package broadcaster

// The broadcast channel carries small invalidation messages between
// nodes with at-least-once delivery and no ordering guarantee. The
// distributed implementation rides on Redis pub/sub; local mode uses
// an in-process fan out pool.

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/json"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/redisconn"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/redis/go-redis/v9"
)

var (
	broadcastsSentCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_broadcasts_sent",
		Help: "Number of broadcast messages published by this node.",
	})

	broadcastsReceivedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_broadcasts_received",
		Help: "Number of broadcast messages received by this node.",
	})
)

// RedisBroadcaster maps each topic onto one Redis pub/sub channel.
type RedisBroadcaster struct {
	config_obj *config.Config
	client     *redis.Client
	prefix     string
}

func NewRedisBroadcaster(
	config_obj *config.Config, client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{
		config_obj: config_obj,
		client:     client,
		prefix:     config_obj.Redis.KeyPrefix,
	}
}

func (self *RedisBroadcaster) channel(topic string) string {
	return self.prefix + ":" + topic
}

func (self *RedisBroadcaster) Publish(ctx context.Context,
	topic string, message *ordereddict.Dict) error {

	serialized, err := json.Marshal(message)
	if err != nil {
		return errors.New(err)
	}

	err = self.client.Publish(
		ctx, self.channel(topic), string(serialized)).Err()
	if err != nil {
		return errors.New(err)
	}

	broadcastsSentCounter.Inc()
	return nil
}

func (self *RedisBroadcaster) Watch(ctx context.Context,
	topic, watcher_name string) (<-chan *ordereddict.Dict, func(), error) {

	pubsub := self.client.Subscribe(ctx, self.channel(topic))

	// Force the subscription to be established before we return so
	// callers do not miss messages published right after Watch.
	_, err := pubsub.Receive(ctx)
	if err != nil {
		pubsub.Close()
		return nil, nil, errors.New(err)
	}

	output := make(chan *ordereddict.Dict, 100)
	logger := logging.GetLogger(self.config_obj, &logging.FrontendComponent)

	go func() {
		defer close(output)

		for message := range pubsub.Channel() {
			dict := ordereddict.NewDict()
			err := json.Unmarshal([]byte(message.Payload), dict)
			if err != nil {
				logger.Warn("Broadcaster: %v: undecodable message "+
					"for %v: %v", topic, watcher_name, err)
				continue
			}

			broadcastsReceivedCounter.Inc()

			select {
			case <-ctx.Done():
				return
			case output <- dict:
			}
		}
	}()

	cancel := func() {
		pubsub.Close()
	}

	return output, cancel, nil
}

// StartBroadcastService registers the broadcaster variant selected by
// the config.
func StartBroadcastService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.FrontendComponent)

	if config_obj.Services != nil && config_obj.Services.LocalMode {
		logger.Info("<green>Starting</> Local Broadcast Service")
		services.RegisterBroadcaster(NewLocalBroadcaster(config_obj))
		return nil
	}

	client, err := redisconn.GetClient(ctx, config_obj)
	if err != nil {
		return err
	}

	logger.Info("<green>Starting</> Redis Broadcast Service")
	services.RegisterBroadcaster(NewRedisBroadcaster(config_obj, client))
	return nil
}
