package services

// Outbound delivery of results to connected clients. Delivery is at
// least once; the transport (websocket broker, AMQP fan out) lives
// outside this core.

import (
	"context"
	"sync"
)

var (
	notifier_mu sync.Mutex
	gNotifier   Notifier
)

func RegisterNotifier(notifier Notifier) {
	notifier_mu.Lock()
	defer notifier_mu.Unlock()

	gNotifier = notifier
}

func GetNotifier() (Notifier, error) {
	notifier_mu.Lock()
	defer notifier_mu.Unlock()

	if gNotifier == nil {
		return nil, ServiceNotReadyError
	}
	return gNotifier, nil
}

type Notifier interface {
	// DeliverToParticipant pushes the payload to the participant
	// identified by login on the given topic
	// (e.g. /topic/exercise/7/participation).
	DeliverToParticipant(ctx context.Context,
		login, topic string, payload interface{}) error

	// Broadcast pushes the payload to every client subscribed to the
	// topic (e.g. the quiz start signal).
	Broadcast(ctx context.Context, topic string, payload interface{}) error
}
