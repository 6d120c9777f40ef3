package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
)

// LocalScheduler deduplicates tasks by name within one process. Same
// contract as the distributed scheduler, used in local mode and
// tests.
type LocalScheduler struct {
	mu sync.Mutex

	config_obj *config.Config

	Clock utils.Clock

	tasks map[string]*localTask
}

type localTask struct {
	mu sync.Mutex

	name      string
	done      bool
	cancelled bool
}

func (self *localTask) isDone() bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.done || self.cancelled
}

func NewLocalScheduler(config_obj *config.Config) *LocalScheduler {
	return &LocalScheduler{
		config_obj: config_obj,
		Clock:      utils.RealClock{},
		tasks:      make(map[string]*localTask),
	}
}

func (self *LocalScheduler) register(name string) (*localTask, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	// A fired or cancelled task no longer holds its name, matching
	// the distributed variant where the lease runs out after the
	// task completes.
	existing, pres := self.tasks[name]
	if pres && !existing.isDone() {
		return nil, services.ErrDuplicateTask
	}

	task := &localTask{name: name}
	self.tasks[name] = task

	tasksScheduledCounter.Inc()
	return task, nil
}

func (self *LocalScheduler) ScheduleOnce(ctx context.Context,
	name string, at time.Time, fn services.TaskFunc) (string, error) {

	task, err := self.register(name)
	if err != nil {
		return "", err
	}

	go func() {
		delay := at.Sub(self.Clock.Now())
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-self.Clock.After(delay):
			}
		}

		task.mu.Lock()
		if task.cancelled {
			task.mu.Unlock()
			return
		}
		task.mu.Unlock()

		fn(ctx)

		task.mu.Lock()
		task.done = true
		task.mu.Unlock()
	}()

	return name, nil
}

func (self *LocalScheduler) ScheduleFixedRate(ctx context.Context,
	name string, period time.Duration, fn services.TaskFunc) (string, error) {

	task, err := self.register(name)
	if err != nil {
		return "", err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case <-self.Clock.After(period):
			}

			if task.isDone() {
				return
			}
			fn(ctx)
		}
	}()

	return name, nil
}

func (self *LocalScheduler) GetFuture(ctx context.Context,
	handle string) (services.ScheduledFuture, error) {

	self.mu.Lock()
	defer self.mu.Unlock()

	task, pres := self.tasks[handle]
	if !pres {
		return nil, services.ErrStaleTask
	}

	return &localFuture{scheduler: self, task: task}, nil
}

type localFuture struct {
	scheduler *LocalScheduler
	task      *localTask
}

func (self *localFuture) Name() string {
	return self.task.name
}

func (self *localFuture) IsDone(ctx context.Context) bool {
	return self.task.isDone()
}

func (self *localFuture) Cancel(ctx context.Context) error {
	self.task.mu.Lock()
	defer self.task.mu.Unlock()

	if self.task.done {
		return nil
	}
	self.task.cancelled = true
	return nil
}

func (self *LocalScheduler) WriteProfile(
	ctx context.Context, output_chan chan *ordereddict.Dict) {

	self.mu.Lock()
	defer self.mu.Unlock()

	for name, task := range self.tasks {
		task.mu.Lock()
		output_chan <- ordereddict.NewDict().
			Set("Type", "ScheduledTask").
			Set("Name", name).
			Set("Done", task.done).
			Set("Cancelled", task.cancelled)
		task.mu.Unlock()
	}
}

func (self *localFuture) Dispose(ctx context.Context) error {
	self.scheduler.mu.Lock()
	defer self.scheduler.mu.Unlock()

	// The name may have been reclaimed since; never drop someone
	// else's registration.
	if self.scheduler.tasks[self.task.name] == self.task {
		delete(self.scheduler.tasks, self.task.name)
	}
	return nil
}
