package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/alicebob/miniredis/v2"
	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SchedulerTestSuite struct {
	suite.Suite

	ctx    context.Context
	cancel func()

	config_obj *config.Config
	redis_srv  *miniredis.Miniredis
	client     *redis.Client
	clock      *utils.MockClock

	// Two schedulers simulate two cluster nodes.
	node_a *DistributedScheduler
	node_b *DistributedScheduler
}

func (self *SchedulerTestSuite) SetupTest() {
	self.ctx, self.cancel = context.WithCancel(context.Background())

	self.config_obj = config.GetDefaultConfig()
	self.clock = utils.NewMockClock(
		time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC))

	self.redis_srv = miniredis.RunT(self.T())
	self.client = redis.NewClient(&redis.Options{Addr: self.redis_srv.Addr()})

	self.node_a = NewDistributedScheduler(self.config_obj, self.client)
	self.node_a.Clock = self.clock

	self.node_b = NewDistributedScheduler(self.config_obj, self.client)
	self.node_b.Clock = self.clock
}

func (self *SchedulerTestSuite) TearDownTest() {
	self.cancel()
	self.client.Close()
}

func (self *SchedulerTestSuite) TestNameDeduplication() {
	fired := int64(0)
	fn := func(ctx context.Context) {
		atomic.AddInt64(&fired, 1)
	}

	at := self.clock.Now().Add(time.Minute)

	handle, err := self.node_a.ScheduleOnce(self.ctx, "5-start", at, fn)
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), "5-start", handle)

	// The second node loses the registration race.
	_, err = self.node_b.ScheduleOnce(self.ctx, "5-start", at, fn)
	assert.Equal(self.T(), services.ErrDuplicateTask, err)

	// The mock clock makes the winner's timer fire immediately, and
	// only the winner fires.
	assert.Eventually(self.T(), func() bool {
		return atomic.LoadInt64(&fired) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(self.T(), func() bool {
		future, err := self.node_b.GetFuture(self.ctx, handle)
		return err == nil && future.IsDone(self.ctx)
	}, 5*time.Second, 10*time.Millisecond)
}

func (self *SchedulerTestSuite) TestCancelFromAnotherNode() {
	fired := int64(0)

	// Pending on a real clock so the cancel wins the race.
	self.node_a.Clock = utils.RealClock{}

	handle, err := self.node_a.ScheduleOnce(self.ctx, "6-start",
		time.Now().Add(time.Hour),
		func(ctx context.Context) {
			atomic.AddInt64(&fired, 1)
		})
	assert.NoError(self.T(), err)

	future, err := self.node_b.GetFuture(self.ctx, handle)
	assert.NoError(self.T(), err)
	assert.False(self.T(), future.IsDone(self.ctx))

	err = future.Cancel(self.ctx)
	assert.NoError(self.T(), err)
	assert.True(self.T(), future.IsDone(self.ctx))
	assert.Equal(self.T(), int64(0), atomic.LoadInt64(&fired))

	// Dispose drops the bookkeeping; the handle goes stale
	// everywhere and the name becomes reusable.
	err = future.Dispose(self.ctx)
	assert.NoError(self.T(), err)

	_, err = self.node_a.GetFuture(self.ctx, handle)
	assert.Equal(self.T(), services.ErrStaleTask, err)

	_, err = self.node_a.ScheduleOnce(self.ctx, "6-start",
		time.Now().Add(time.Hour), func(ctx context.Context) {})
	assert.NoError(self.T(), err)
}

func (self *SchedulerTestSuite) TestFixedRate() {
	fired := int64(0)

	_, err := self.node_a.ScheduleFixedRate(self.ctx, "tick",
		time.Second, func(ctx context.Context) {
			atomic.AddInt64(&fired, 1)
		})
	assert.NoError(self.T(), err)

	// Duplicate registration from the other node is rejected.
	_, err = self.node_b.ScheduleFixedRate(self.ctx, "tick",
		time.Second, func(ctx context.Context) {})
	assert.Equal(self.T(), services.ErrDuplicateTask, err)

	assert.Eventually(self.T(), func() bool {
		return atomic.LoadInt64(&fired) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	// Disposing from any node stops the loop.
	future, err := self.node_b.GetFuture(self.ctx, "tick")
	assert.NoError(self.T(), err)
	assert.NoError(self.T(), future.Dispose(self.ctx))

	assert.Eventually(self.T(), func() bool {
		count := atomic.LoadInt64(&fired)
		time.Sleep(50 * time.Millisecond)
		return atomic.LoadInt64(&fired) == count
	}, 5*time.Second, 10*time.Millisecond)
}

func (self *SchedulerTestSuite) TestClaimLeaseExpiresAfterShutdown() {
	node_ctx, node_cancel := context.WithCancel(self.ctx)

	// Pending on a real clock so the owner sits in its wait loop.
	self.node_a.Clock = utils.RealClock{}

	_, err := self.node_a.ScheduleFixedRate(node_ctx, "tick",
		time.Hour, func(ctx context.Context) {})
	assert.NoError(self.T(), err)

	// The owning node shuts down. Its claim must not outlive the
	// lease, or no node could ever run the task again.
	node_cancel()

	_, err = self.node_b.ScheduleFixedRate(self.ctx, "tick",
		time.Hour, func(ctx context.Context) {})
	assert.Equal(self.T(), services.ErrDuplicateTask, err)

	self.redis_srv.FastForward(taskLeaseTTL + time.Second)

	_, err = self.node_b.ScheduleFixedRate(self.ctx, "tick",
		time.Hour, func(ctx context.Context) {})
	assert.NoError(self.T(), err)
}

func (self *SchedulerTestSuite) TestFiredTaskNameBecomesReusable() {
	fired := int64(0)

	_, err := self.node_a.ScheduleOnce(self.ctx, "8-start",
		self.clock.Now(), func(ctx context.Context) {
			atomic.AddInt64(&fired, 1)
		})
	assert.NoError(self.T(), err)

	// The done record stays visible until the lease runs out.
	assert.Eventually(self.T(), func() bool {
		future, err := self.node_b.GetFuture(self.ctx, "8-start")
		return err == nil && future.IsDone(self.ctx)
	}, 5*time.Second, 10*time.Millisecond)

	self.redis_srv.FastForward(taskLeaseTTL + time.Second)

	_, err = self.node_b.GetFuture(self.ctx, "8-start")
	assert.Equal(self.T(), services.ErrStaleTask, err)

	// A rescheduled quiz can claim the name again.
	_, err = self.node_b.ScheduleOnce(self.ctx, "8-start",
		self.clock.Now().Add(time.Hour), func(ctx context.Context) {})
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), int64(1), atomic.LoadInt64(&fired))
}

func (self *SchedulerTestSuite) TestWriteProfile() {
	// Pending on a real clock so the task is still live when dumped.
	self.node_a.Clock = utils.RealClock{}

	_, err := self.node_a.ScheduleOnce(self.ctx, "9-start",
		time.Now().Add(time.Hour), func(ctx context.Context) {})
	assert.NoError(self.T(), err)

	output_chan := make(chan *ordereddict.Dict, 10)
	self.node_b.WriteProfile(self.ctx, output_chan)
	close(output_chan)

	row := <-output_chan
	assert.NotNil(self.T(), row)

	name, _ := row.GetString("Name")
	assert.Equal(self.T(), "9-start", name)

	kind, _ := row.GetString("Kind")
	assert.Equal(self.T(), "once", kind)

	done, _ := row.GetBool("Done")
	assert.False(self.T(), done)
}

type LocalSchedulerTestSuite struct {
	suite.Suite

	ctx    context.Context
	cancel func()

	scheduler *LocalScheduler
}

func (self *LocalSchedulerTestSuite) SetupTest() {
	self.ctx, self.cancel = context.WithCancel(context.Background())

	self.scheduler = NewLocalScheduler(config.GetDefaultConfig())
	self.scheduler.Clock = utils.NewMockClock(
		time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC))
}

func (self *LocalSchedulerTestSuite) TearDownTest() {
	self.cancel()
}

func (self *LocalSchedulerTestSuite) TestDeduplicationAndDispose() {
	// Pending on a real clock so the name stays held.
	self.scheduler.Clock = utils.RealClock{}

	fired := int64(0)
	handle, err := self.scheduler.ScheduleOnce(self.ctx, "7-start",
		time.Now().Add(time.Hour),
		func(ctx context.Context) {
			atomic.AddInt64(&fired, 1)
		})
	assert.NoError(self.T(), err)

	_, err = self.scheduler.ScheduleOnce(self.ctx, "7-start",
		time.Now().Add(time.Hour), func(ctx context.Context) {})
	assert.Equal(self.T(), services.ErrDuplicateTask, err)

	future, err := self.scheduler.GetFuture(self.ctx, handle)
	assert.NoError(self.T(), err)
	assert.False(self.T(), future.IsDone(self.ctx))

	assert.NoError(self.T(), future.Cancel(self.ctx))
	assert.True(self.T(), future.IsDone(self.ctx))
	assert.Equal(self.T(), int64(0), atomic.LoadInt64(&fired))

	assert.NoError(self.T(), future.Dispose(self.ctx))
	_, err = self.scheduler.GetFuture(self.ctx, handle)
	assert.Equal(self.T(), services.ErrStaleTask, err)
}

func (self *LocalSchedulerTestSuite) TestFiredTaskNameBecomesReusable() {
	fired := int64(0)

	_, err := self.scheduler.ScheduleOnce(self.ctx, "9-start",
		self.scheduler.Clock.Now().Add(time.Minute),
		func(ctx context.Context) {
			atomic.AddInt64(&fired, 1)
		})
	assert.NoError(self.T(), err)

	assert.Eventually(self.T(), func() bool {
		future, err := self.scheduler.GetFuture(self.ctx, "9-start")
		return err == nil && future.IsDone(self.ctx)
	}, 5*time.Second, 10*time.Millisecond)

	// A fired one-shot no longer holds its name.
	_, err = self.scheduler.ScheduleOnce(self.ctx, "9-start",
		self.scheduler.Clock.Now().Add(time.Hour),
		func(ctx context.Context) {})
	assert.NoError(self.T(), err)
	assert.Equal(self.T(), int64(1), atomic.LoadInt64(&fired))
}

func TestScheduler(t *testing.T) {
	suite.Run(t, &SchedulerTestSuite{})
	suite.Run(t, &LocalSchedulerTestSuite{})
}
