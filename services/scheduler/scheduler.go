package scheduler

// Cluster wide at-most-once scheduling. A task registration claims
// its name in a shared Redis hash; among nodes racing to register the
// same name exactly one succeeds and runs the timer in process. The
// losers receive ErrDuplicateTask - an expected outcome under
// multi node startup races which callers log and swallow.
//
// A claim is a lease, not a permanent record. The owning node keeps
// the hash's TTL refreshed while its timer goroutine is alive; when
// the node shuts down or the one-shot fires the refresh stops and the
// lease runs out, so the name becomes claimable again. Without the
// lease a dead node's claim would outlive it in Redis and no other
// node could ever take the task over.
//
// Task state (done/cancelled) also lives in the hash so any node can
// inspect or cancel a task it does not own. The owner verifies it
// still holds the lease immediately before firing.

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/redisconn"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
	"github.com/redis/go-redis/v9"
)

var (
	tasksScheduledCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_tasks_scheduled",
		Help: "Number of tasks this node won the registration for.",
	})

	duplicateTasksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_tasks_deduplicated",
		Help: "Number of task registrations lost to another node.",
	})

	tasksFiredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_tasks_fired",
		Help: "Number of task executions on this node.",
	})
)

type DistributedScheduler struct {
	config_obj *config.Config
	client     *redis.Client
	prefix     string

	Clock utils.Clock
}

func NewDistributedScheduler(
	config_obj *config.Config, client *redis.Client) *DistributedScheduler {
	return &DistributedScheduler{
		config_obj: config_obj,
		client:     client,
		prefix:     config_obj.Redis.KeyPrefix,
		Clock:      utils.RealClock{},
	}
}

// How long a claim survives without a refresh from its owner.
const taskLeaseTTL = 30 * time.Second

func (self *DistributedScheduler) key(name string) string {
	return self.prefix + ":task:" + name
}

// claim atomically registers the task name cluster wide and returns
// the owner token for the lease.
func (self *DistributedScheduler) claim(
	ctx context.Context, name, kind string) (string, error) {

	won, err := self.client.HSetNX(
		ctx, self.key(name), "kind", kind).Result()
	if err != nil {
		return "", errors.New(err)
	}

	if !won {
		duplicateTasksCounter.Inc()
		return "", services.ErrDuplicateTask
	}

	token := uuid.NewString()
	self.client.HSet(ctx, self.key(name), "owner", token)
	self.client.Expire(ctx, self.key(name), taskLeaseTTL)

	tasksScheduledCounter.Inc()
	return token, nil
}

// owns reports whether this node still holds the lease. A missing
// hash (expired or disposed) or a different token (the name was
// reclaimed) both mean no.
func (self *DistributedScheduler) owns(
	ctx context.Context, name, token string) bool {

	owner, err := self.client.HGet(ctx, self.key(name), "owner").Result()
	return err == nil && owner == token
}

// keepAlive refreshes the lease until stop is called, the context is
// cancelled or ownership is lost.
func (self *DistributedScheduler) keepAlive(
	ctx context.Context, name, token string) (stop func()) {

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-time.After(taskLeaseTTL / 2):
			}

			if !self.owns(ctx, name, token) {
				return
			}
			self.client.Expire(ctx, self.key(name), taskLeaseTTL)
		}
	}()
	return func() { close(done) }
}

func (self *DistributedScheduler) isCancelled(
	ctx context.Context, name string) bool {

	cancelled, err := self.client.HGet(
		ctx, self.key(name), "cancelled").Result()
	return err == nil && cancelled == "1"
}

func (self *DistributedScheduler) markDone(
	ctx context.Context, name string) {
	self.client.HSet(ctx, self.key(name), "done", "1")
}

func (self *DistributedScheduler) ScheduleOnce(ctx context.Context,
	name string, at time.Time, fn services.TaskFunc) (string, error) {

	token, err := self.claim(ctx, name, "once")
	if err != nil {
		return "", err
	}

	self.client.HSet(ctx, self.key(name),
		"fire_at", at.UTC().Format(time.RFC3339))

	go func() {
		stop_lease := self.keepAlive(ctx, name, token)
		defer stop_lease()

		delay := at.Sub(self.Clock.Now())
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-self.Clock.After(delay):
			}
		}

		if self.isCancelled(ctx, name) || !self.owns(ctx, name, token) {
			return
		}

		tasksFiredCounter.Inc()
		fn(ctx)

		// The done flag stays visible until the lease runs out, then
		// the name becomes reusable.
		self.markDone(ctx, name)
	}()

	return name, nil
}

func (self *DistributedScheduler) ScheduleFixedRate(ctx context.Context,
	name string, period time.Duration, fn services.TaskFunc) (string, error) {

	token, err := self.claim(ctx, name, "rate")
	if err != nil {
		return "", err
	}

	go func() {
		stop_lease := self.keepAlive(ctx, name, token)
		defer stop_lease()

		for {
			select {
			case <-ctx.Done():
				return

			case <-self.Clock.After(period):
			}

			if self.isCancelled(ctx, name) || !self.owns(ctx, name, token) {
				return
			}

			tasksFiredCounter.Inc()
			fn(ctx)
		}
	}()

	return name, nil
}

func (self *DistributedScheduler) GetFuture(ctx context.Context,
	handle string) (services.ScheduledFuture, error) {

	count, err := self.client.Exists(ctx, self.key(handle)).Result()
	if err != nil {
		return nil, errors.New(err)
	}
	if count == 0 {
		return nil, services.ErrStaleTask
	}

	return &redisFuture{scheduler: self, name: handle}, nil
}

type redisFuture struct {
	scheduler *DistributedScheduler
	name      string
}

func (self *redisFuture) Name() string {
	return self.name
}

func (self *redisFuture) IsDone(ctx context.Context) bool {
	state, err := self.scheduler.client.HGetAll(
		ctx, self.scheduler.key(self.name)).Result()
	if err != nil || len(state) == 0 {
		// Disposed elsewhere counts as done.
		return true
	}
	return state["done"] == "1" || state["cancelled"] == "1"
}

func (self *redisFuture) Cancel(ctx context.Context) error {
	if self.IsDone(ctx) {
		return nil
	}

	err := self.scheduler.client.HSet(
		ctx, self.scheduler.key(self.name), "cancelled", "1").Err()
	if err != nil {
		return errors.New(err)
	}
	return nil
}

// Dispose drops the cluster wide bookkeeping. Disposing an already
// fired or already disposed task is a no-op.
func (self *redisFuture) Dispose(ctx context.Context) error {
	err := self.scheduler.client.Del(
		ctx, self.scheduler.key(self.name)).Err()
	if err != nil {
		return errors.New(err)
	}
	return nil
}

// WriteProfile dumps the cluster wide task bookkeeping for debugging.
func (self *DistributedScheduler) WriteProfile(
	ctx context.Context, output_chan chan *ordereddict.Dict) {

	names, err := self.client.Keys(ctx, self.prefix+":task:*").Result()
	if err != nil {
		return
	}

	for _, key := range names {
		state, err := self.client.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}

		output_chan <- ordereddict.NewDict().
			Set("Type", "ScheduledTask").
			Set("Name", strings.TrimPrefix(key, self.prefix+":task:")).
			Set("Kind", state["kind"]).
			Set("FireAt", state["fire_at"]).
			Set("Done", state["done"] == "1").
			Set("Cancelled", state["cancelled"] == "1")
	}
}

// StartSchedulerService registers the scheduler variant selected by
// the config.
func StartSchedulerService(
	ctx context.Context,
	wg *sync.WaitGroup,
	config_obj *config.Config) error {

	logger := logging.GetLogger(config_obj, &logging.SchedulerComponent)

	if config_obj.Services != nil && config_obj.Services.LocalMode {
		logger.Info("<green>Starting</> Local Scheduler Service")
		services.RegisterScheduler(NewLocalScheduler(config_obj))
		return nil
	}

	client, err := redisconn.GetClient(ctx, config_obj)
	if err != nil {
		return err
	}

	logger.Info("<green>Starting</> Distributed Scheduler Service")
	services.RegisterScheduler(NewDistributedScheduler(config_obj, client))
	return nil
}
