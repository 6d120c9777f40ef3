package notifications

import (
	"context"
	"sync"
)

// Delivery records one message handed to the pool. Tests inspect
// these to assert what a participant would have received.
type Delivery struct {
	Login   string
	Topic   string
	Payload interface{}
}

// NotificationPool is the in-process notifier used by local mode and
// tests. Messages are retained for inspection rather than delivered
// anywhere.
type NotificationPool struct {
	mu sync.Mutex

	deliveries []Delivery
}

func NewNotificationPool() *NotificationPool {
	return &NotificationPool{}
}

func (self *NotificationPool) DeliverToParticipant(ctx context.Context,
	login, topic string, payload interface{}) error {

	self.mu.Lock()
	defer self.mu.Unlock()

	self.deliveries = append(self.deliveries, Delivery{
		Login:   login,
		Topic:   topic,
		Payload: payload,
	})

	notificationsSentCounter.Inc()
	return nil
}

// Broadcast records a message addressed to every subscriber of the
// topic. Login is left empty.
func (self *NotificationPool) Broadcast(ctx context.Context,
	topic string, payload interface{}) error {

	self.mu.Lock()
	defer self.mu.Unlock()

	self.deliveries = append(self.deliveries, Delivery{
		Topic:   topic,
		Payload: payload,
	})

	notificationsSentCounter.Inc()
	return nil
}

func (self *NotificationPool) Deliveries() []Delivery {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]Delivery{}, self.deliveries...)
}

// DeliveriesFor returns all messages addressed to one participant.
func (self *NotificationPool) DeliveriesFor(login string) []Delivery {
	self.mu.Lock()
	defer self.mu.Unlock()

	var result []Delivery
	for _, delivery := range self.deliveries {
		if delivery.Login == login {
			result = append(result, delivery)
		}
	}
	return result
}

func (self *NotificationPool) Reset() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.deliveries = nil
}
