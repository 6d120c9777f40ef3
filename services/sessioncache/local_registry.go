package sessioncache

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/services"
)

// LocalRegistry is the process local registry variant used by single
// node deployments and tests. Same contract as the distributed
// registry without any cluster facilities.
type LocalRegistry struct {
	ops

	mu sync.Mutex

	config_obj *config.Config
	lock       *localLock

	caches map[int64]*LocalSessionCache
}

func NewLocalRegistry(config_obj *config.Config) *LocalRegistry {
	self := &LocalRegistry{
		config_obj: config_obj,
		lock:       newLocalLock(),
		caches:     make(map[int64]*LocalSessionCache),
	}
	self.ops = ops{acc: self, config_obj: config_obj}
	return self
}

func (self *LocalRegistry) ReadOnly(
	exercise_id int64) services.SessionCache {

	self.mu.Lock()
	defer self.mu.Unlock()

	cache, pres := self.caches[exercise_id]
	if !pres {
		return emptyCacheInstance
	}
	return cache
}

func (self *LocalRegistry) getOrCreate(
	exercise_id int64) *LocalSessionCache {

	self.mu.Lock()
	defer self.mu.Unlock()

	cache, pres := self.caches[exercise_id]
	if !pres {
		cache = NewLocalSessionCache(self.config_obj, exercise_id)
		self.caches[exercise_id] = cache
		cachesCreatedCounter.Inc()
	}
	return cache
}

func (self *LocalRegistry) TransientWrite(
	exercise_id int64) (services.SessionCache, error) {

	self.mu.Lock()
	cache, pres := self.caches[exercise_id]
	self.mu.Unlock()
	if pres {
		return cache, nil
	}

	unlock, err := self.lock.Lock(context.Background(), exercise_id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return self.getOrCreate(exercise_id), nil
}

func (self *LocalRegistry) AtomicWrite(
	exercise_id int64, fn func(cache services.SessionCache) error) error {

	unlock, err := self.lock.Lock(context.Background(), exercise_id)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(self.getOrCreate(exercise_id))
}

func (self *LocalRegistry) AtomicWriteIfPresent(
	exercise_id int64, fn func(cache services.SessionCache) error) error {

	unlock, err := self.lock.Lock(context.Background(), exercise_id)
	if err != nil {
		return err
	}
	defer unlock()

	self.mu.Lock()
	cache, pres := self.caches[exercise_id]
	self.mu.Unlock()
	if !pres {
		return nil
	}

	return fn(cache)
}

func (self *LocalRegistry) AllCaches(
	ctx context.Context) ([]services.SessionCache, error) {

	self.mu.Lock()
	defer self.mu.Unlock()

	result := make([]services.SessionCache, 0, len(self.caches))
	for _, cache := range self.caches {
		result = append(result, cache)
	}
	return result, nil
}

func (self *LocalRegistry) RemoveAndClear(exercise_id int64) error {
	self.mu.Lock()
	cache, pres := self.caches[exercise_id]
	delete(self.caches, exercise_id)
	self.mu.Unlock()

	if !pres {
		return nil
	}
	return cache.Clear()
}

func (self *LocalRegistry) Clear() error {
	self.mu.Lock()
	caches := self.caches
	self.caches = make(map[int64]*LocalSessionCache)
	self.mu.Unlock()

	for _, cache := range caches {
		err := cache.Clear()
		if err != nil {
			return err
		}
	}
	return nil
}

func (self *LocalRegistry) Shutdown() {}

func (self *LocalRegistry) WriteProfile(
	ctx context.Context, output_chan chan *ordereddict.Dict) {

	caches, _ := self.AllCaches(ctx)
	for _, cache := range caches {
		submissions, _ := cache.GetSubmissions()
		participations, _ := cache.GetParticipations()
		results, _ := cache.GetResults()

		output_chan <- ordereddict.NewDict().
			Set("Type", "SessionCache").
			Set("ExerciseId", cache.ExerciseId()).
			Set("Submissions", len(submissions)).
			Set("Participations", len(participations)).
			Set("Results", len(results))
	}
}
