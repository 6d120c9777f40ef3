package notifications

// Outbound delivery of quiz state to connected clients. The core only
// needs fire and forget, at-least-once delivery addressed to one
// participant; the websocket fan out at the edge consumes the AMQP
// exchange and is outside this repository.

import (
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/json"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	notificationsSentCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_notifications_sent",
		Help: "Number of participant notifications published.",
	})
)

// AMQPNotifier publishes participant addressed messages to a topic
// exchange. Routing key is participant.<login> so the edge servers
// can bind per connected user.
type AMQPNotifier struct {
	mu sync.Mutex

	config_obj *config.Config

	conn    *amqp.Connection
	channel *amqp.Channel

	exchange string
}

func NewAMQPNotifier(config_obj *config.Config) (*AMQPNotifier, error) {
	if config_obj.AMQP == nil || config_obj.AMQP.URL == "" {
		return nil, errors.New("No AMQP section in config")
	}

	conn, err := amqp.Dial(config_obj.AMQP.URL)
	if err != nil {
		return nil, errors.New(err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.New(err)
	}

	exchange := config_obj.AMQP.Exchange
	if exchange == "" {
		exchange = "quiz.events"
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.New(err)
	}

	return &AMQPNotifier{
		config_obj: config_obj,
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
	}, nil
}

func (self *AMQPNotifier) DeliverToParticipant(ctx context.Context,
	login, topic string, payload interface{}) error {

	serialized, err := json.Marshal(payload)
	if err != nil {
		return errors.New(err)
	}

	self.mu.Lock()
	defer self.mu.Unlock()

	err = self.channel.PublishWithContext(ctx,
		self.exchange,
		"participant."+login,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Type:        topic,
			Body:        serialized,
		})
	if err != nil {
		return errors.New(err)
	}

	notificationsSentCounter.Inc()
	return nil
}

func (self *AMQPNotifier) Broadcast(ctx context.Context,
	topic string, payload interface{}) error {

	serialized, err := json.Marshal(payload)
	if err != nil {
		return errors.New(err)
	}

	self.mu.Lock()
	defer self.mu.Unlock()

	err = self.channel.PublishWithContext(ctx,
		self.exchange,
		"broadcast",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Type:        topic,
			Body:        serialized,
		})
	if err != nil {
		return errors.New(err)
	}

	notificationsSentCounter.Inc()
	return nil
}

func (self *AMQPNotifier) Close() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.channel.Close()
	self.conn.Close()
}

// StartNotificationService registers the notifier variant selected by
// the config.
func StartNotificationService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.FrontendComponent)

	if config_obj.Services != nil && config_obj.Services.LocalMode {
		logger.Info("<green>Starting</> Local Notification Service")
		services.RegisterNotifier(NewNotificationPool())
		return nil
	}

	notifier, err := NewAMQPNotifier(config_obj)
	if err != nil {
		return err
	}

	logger.Info("<green>Starting</> AMQP Notification Service on %v",
		config_obj.AMQP.URL)
	services.RegisterNotifier(notifier)

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		notifier.Close()
	}()

	return nil
}
