package sessioncache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/redis/go-redis/v9"
)

// exerciseLock serializes cache creation and atomic writes per
// exercise id. The distributed implementation is a Redis SET NX PX
// lease; unlock only deletes the key when the owner token still
// matches so an expired lease can not release a lock someone else now
// holds.
type exerciseLock interface {
	Lock(ctx context.Context, exercise_id int64) (unlock func(), err error)
}

// check-and-del so only the owner can release.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
   return redis.call("DEL", KEYS[1])
else
   return 0
end`

type redisLock struct {
	client *redis.Client
	prefix string

	ttl   time.Duration
	retry time.Duration
}

func newRedisLock(config_obj *config.Config, client *redis.Client) *redisLock {
	return &redisLock{
		client: client,
		prefix: config_obj.Redis.KeyPrefix,
		ttl:    config_obj.Frontend.LockTTL(),
		retry:  config_obj.Frontend.LockRetry(),
	}
}

func (self *redisLock) key(exercise_id int64) string {
	return fmt.Sprintf("%s:lock:%d", self.prefix, exercise_id)
}

func (self *redisLock) Lock(ctx context.Context, exercise_id int64) (
	func(), error) {

	key := self.key(exercise_id)
	owner := uuid.NewString()

	for {
		ok, err := self.client.SetNX(ctx, key, owner, self.ttl).Result()
		if err != nil {
			return nil, errors.New(err)
		}

		if ok {
			return func() {
				self.client.Eval(context.Background(),
					unlockScript, []string{key}, owner)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(ctx.Err())
		case <-time.After(self.retry):
		}
	}
}

// localLock is the process local variant: one mutex per exercise id,
// pruned when the last waiter leaves.
type localLock struct {
	mu    sync.Mutex
	locks map[int64]*localLockEntry
}

type localLockEntry struct {
	mu      sync.Mutex
	waiters int
}

func newLocalLock() *localLock {
	return &localLock{locks: make(map[int64]*localLockEntry)}
}

func (self *localLock) Lock(ctx context.Context, exercise_id int64) (
	func(), error) {

	self.mu.Lock()
	entry, pres := self.locks[exercise_id]
	if !pres {
		entry = &localLockEntry{}
		self.locks[exercise_id] = entry
	}
	entry.waiters++
	self.mu.Unlock()

	entry.mu.Lock()

	return func() {
		self.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(self.locks, exercise_id)
		}
		self.mu.Unlock()

		entry.mu.Unlock()
	}, nil
}
