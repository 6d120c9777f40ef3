package sessioncache

import (
	"fmt"
	"time"

	"github.com/Velocidex/ttlcache/v2"
	"github.com/ls1intum/Artemis-sub079/models"
)

// snapshotStore is the process local near-cache for exercise
// snapshots. Snapshots are deliberately never written into the
// cluster shared maps: the object graph is large and repeated
// (de)serialization on every read would dominate the hot path. Each
// node keeps its own copy, refreshed by update broadcasts and expired
// by TTL so a missed broadcast heals itself.
type snapshotStore struct {
	lru *ttlcache.Cache
}

func newSnapshotStore(ttl time.Duration) *snapshotStore {
	lru := ttlcache.NewCache()
	_ = lru.SetTTL(ttl)
	lru.SetCacheSizeLimit(10000)
	lru.SkipTTLExtensionOnHit(true)

	return &snapshotStore{lru: lru}
}

func (self *snapshotStore) Get(exercise_id int64) (*models.Exercise, bool) {
	value, err := self.lru.Get(key(exercise_id))
	if err != nil {
		return nil, false
	}

	exercise, ok := value.(*models.Exercise)
	return exercise, ok
}

func (self *snapshotStore) Set(exercise *models.Exercise) {
	_ = self.lru.Set(key(exercise.Id), exercise)
}

func (self *snapshotStore) Remove(exercise_id int64) {
	_ = self.lru.Remove(key(exercise_id))
}

func (self *snapshotStore) Close() {
	self.lru.Close()
}

func key(exercise_id int64) string {
	return fmt.Sprintf("%d", exercise_id)
}
