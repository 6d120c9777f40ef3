package sessioncache

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"github.com/go-errors/errors"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/redis/go-redis/v9"
)

// DistributedRegistry owns the cluster wide mapping from exercise id
// to session cache. Membership lives in one shared Redis set; the
// registry additionally memoizes a process local handle per exercise
// id (the fast path consulted by ReadOnly) and the snapshot store.
type DistributedRegistry struct {
	ops

	mu sync.Mutex

	ctx        context.Context
	config_obj *config.Config

	client *redis.Client
	keys   keySchema
	lock   exerciseLock

	snapshots *snapshotStore

	// Process local handles, one per live exercise id.
	instances map[int64]*DistributedSessionCache
}

func NewDistributedRegistry(
	ctx context.Context,
	config_obj *config.Config,
	client *redis.Client) *DistributedRegistry {

	self := &DistributedRegistry{
		ctx:        ctx,
		config_obj: config_obj,
		client:     client,
		keys:       keySchema{prefix: config_obj.Redis.KeyPrefix},
		lock:       newRedisLock(config_obj, client),
		snapshots:  newSnapshotStore(config_obj.Frontend.SnapshotTTL()),
		instances:  make(map[int64]*DistributedSessionCache),
	}
	self.ops = ops{acc: self, config_obj: config_obj}
	return self
}

// memoize returns the process local handle for the exercise,
// creating it if needed. Handles are cheap; the data lives in Redis.
func (self *DistributedRegistry) memoize(
	exercise_id int64) *DistributedSessionCache {

	self.mu.Lock()
	defer self.mu.Unlock()

	cache, pres := self.instances[exercise_id]
	if !pres {
		cache = &DistributedSessionCache{
			exercise_id: exercise_id,
			ctx:         self.ctx,
			client:      self.client,
			keys:        self.keys,
			snapshots:   self.snapshots,
			config_obj:  self.config_obj,
		}
		self.instances[exercise_id] = cache
	}
	return cache
}

func (self *DistributedRegistry) forget(exercise_id int64) {
	self.mu.Lock()
	defer self.mu.Unlock()

	delete(self.instances, exercise_id)
}

// ReadOnly never creates a cache and never takes the per key
// lock. Misses and infrastructure errors both yield the empty
// sentinel so the read path stays branch free.
func (self *DistributedRegistry) ReadOnly(
	exercise_id int64) services.SessionCache {

	self.mu.Lock()
	cache, pres := self.instances[exercise_id]
	self.mu.Unlock()
	if pres {
		return cache
	}

	member, err := self.client.SIsMember(self.ctx,
		self.keys.liveSet(), formatId(exercise_id)).Result()
	if err != nil {
		logger := logging.GetLogger(
			self.config_obj, &logging.FrontendComponent)
		logger.Warn("SessionCacheRegistry: readOnly(%v): %v",
			exercise_id, err)
		return emptyCacheInstance
	}

	if !member {
		return emptyCacheInstance
	}
	return self.memoize(exercise_id)
}

// TransientWrite creates the cluster entry under the per exercise
// lock when missing. The returned cache's maps are individually safe
// for concurrent mutation, so no lock is held while using it.
func (self *DistributedRegistry) TransientWrite(
	exercise_id int64) (services.SessionCache, error) {

	self.mu.Lock()
	cache, pres := self.instances[exercise_id]
	self.mu.Unlock()
	if pres {
		return cache, nil
	}

	unlock, err := self.lock.Lock(self.ctx, exercise_id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = self.ensureMember(exercise_id)
	if err != nil {
		return nil, err
	}

	return self.memoize(exercise_id), nil
}

func (self *DistributedRegistry) ensureMember(exercise_id int64) error {
	added, err := self.client.SAdd(self.ctx,
		self.keys.liveSet(), formatId(exercise_id)).Result()
	if err != nil {
		return errors.New(err)
	}
	if added > 0 {
		cachesCreatedCounter.Inc()
	}
	return nil
}

// AtomicWrite runs fn on the (possibly newly created) cache under the
// per exercise lock, then re-reads the registry entry so the local
// fast path holds the just-written value before the lock is
// released. fn must not perform external I/O.
func (self *DistributedRegistry) AtomicWrite(
	exercise_id int64, fn func(cache services.SessionCache) error) error {

	unlock, err := self.lock.Lock(self.ctx, exercise_id)
	if err != nil {
		return err
	}
	defer unlock()

	err = self.ensureMember(exercise_id)
	if err != nil {
		return err
	}

	err = fn(self.memoize(exercise_id))
	if err != nil {
		return err
	}

	return self.warm(exercise_id)
}

func (self *DistributedRegistry) AtomicWriteIfPresent(
	exercise_id int64, fn func(cache services.SessionCache) error) error {

	// Cheap existence probe before paying for the lock.
	member, err := self.isMember(exercise_id)
	if err != nil {
		return err
	}
	if !member {
		return nil
	}

	unlock, err := self.lock.Lock(self.ctx, exercise_id)
	if err != nil {
		return err
	}
	defer unlock()

	// Revalidate under the lock - the cache may have been removed
	// while we waited.
	member, err = self.isMember(exercise_id)
	if err != nil {
		return err
	}
	if !member {
		self.forget(exercise_id)
		return nil
	}

	err = fn(self.memoize(exercise_id))
	if err != nil {
		return err
	}

	return self.warm(exercise_id)
}

func (self *DistributedRegistry) isMember(exercise_id int64) (bool, error) {
	member, err := self.client.SIsMember(self.ctx,
		self.keys.liveSet(), formatId(exercise_id)).Result()
	if err != nil {
		return false, errors.New(err)
	}
	return member, nil
}

// warm re-reads the entry just written so subsequent ReadOnly calls
// on this node hit the local fast path.
func (self *DistributedRegistry) warm(exercise_id int64) error {
	member, err := self.isMember(exercise_id)
	if err != nil {
		return err
	}
	if member {
		self.memoize(exercise_id)
	} else {
		self.forget(exercise_id)
	}
	return nil
}

func (self *DistributedRegistry) AllCaches(
	ctx context.Context) ([]services.SessionCache, error) {

	members, err := self.client.SMembers(
		ctx, self.keys.liveSet()).Result()
	if err != nil {
		return nil, errors.New(err)
	}

	live := make(map[int64]bool)
	result := make([]services.SessionCache, 0, len(members))
	for _, member := range members {
		exercise_id, err := parseId(member)
		if err != nil {
			continue
		}
		live[exercise_id] = true
		result = append(result, self.memoize(exercise_id))
	}

	// Drop handles for caches another node removed.
	self.mu.Lock()
	for exercise_id := range self.instances {
		if !live[exercise_id] {
			delete(self.instances, exercise_id)
		}
	}
	self.mu.Unlock()

	return result, nil
}

// RemoveAndClear removes the registry entry and clears the removed
// cache if one existed. Scheduled tasks are not touched; cancellation
// is an explicit separate step.
func (self *DistributedRegistry) RemoveAndClear(exercise_id int64) error {
	unlock, err := self.lock.Lock(self.ctx, exercise_id)
	if err != nil {
		return err
	}
	defer unlock()

	member, err := self.isMember(exercise_id)
	if err != nil {
		return err
	}

	self.forget(exercise_id)
	self.snapshots.Remove(exercise_id)

	if !member {
		return nil
	}

	err = self.client.SRem(self.ctx,
		self.keys.liveSet(), formatId(exercise_id)).Err()
	if err != nil {
		return errors.New(err)
	}

	cache := &DistributedSessionCache{
		exercise_id: exercise_id,
		ctx:         self.ctx,
		client:      self.client,
		keys:        self.keys,
		snapshots:   self.snapshots,
		config_obj:  self.config_obj,
	}
	return cache.Clear()
}

// Clear destroys every live cache and empties the registry.
// Destructive last resort: concurrent writers may lose data mid
// iteration.
func (self *DistributedRegistry) Clear() error {
	caches, err := self.AllCaches(self.ctx)
	if err != nil {
		return err
	}

	for _, cache := range caches {
		err := self.RemoveAndClear(cache.ExerciseId())
		if err != nil {
			return err
		}
	}
	return nil
}

func (self *DistributedRegistry) Shutdown() {
	self.snapshots.Close()

	self.mu.Lock()
	self.instances = make(map[int64]*DistributedSessionCache)
	self.mu.Unlock()
}

func (self *DistributedRegistry) WriteProfile(
	ctx context.Context, output_chan chan *ordereddict.Dict) {

	caches, err := self.AllCaches(ctx)
	if err != nil {
		return
	}

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
