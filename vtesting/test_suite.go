package vtesting

// Shared test harness. Starts the selected services in local mode
// over the in memory store and hands out typed handles to the fakes
// so tests can seed data and inspect outcomes.

import (
	"context"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/services"
	"github.com/ls1intum/Artemis-sub079/services/notifications"
	"github.com/ls1intum/Artemis-sub079/startup"
	"github.com/ls1intum/Artemis-sub079/store/memory"
	"github.com/stretchr/testify/suite"
)

type TestSuite struct {
	suite.Suite

	ConfigObj *config.Config
	Ctx       context.Context
	cancel    func()
	Sm        *services.Service
}

// LoadConfig returns the base local mode test config. Suites adjust
// the Services section before calling SetupTest.
func (self *TestSuite) LoadConfig() *config.Config {
	config_obj := config.GetDefaultConfig()
	config_obj.NodeName = "test"
	config_obj.Services = &config.ServicesConfig{
		LocalMode:     true,
		SessionCache:  true,
		Scheduler:     true,
		Notifications: true,
	}
	return config_obj
}

func (self *TestSuite) SetupTest() {
	if self.ConfigObj == nil {
		self.ConfigObj = self.LoadConfig()
	}

	logging.Reset()

	self.Ctx, self.cancel = context.WithCancel(context.Background())

	sm, err := startup.StartFrontendServices(self.Ctx, self.ConfigObj)
	self.Require().NoError(err)
	self.Sm = sm
}

func (self *TestSuite) TearDownTest() {
	if self.cancel != nil {
		self.cancel()
	}
	if self.Sm != nil {
		self.Sm.Close()
	}
}

// Store returns the in memory repository backing the suite.
func (self *TestSuite) Store() *memory.Store {
	manager, err := services.GetRepositoryManager()
	self.Require().NoError(err)

	store, ok := manager.(*memory.Store)
	self.Require().True(ok)
	return store
}

// Notifier returns the recording notification pool.
func (self *TestSuite) Notifier() *notifications.NotificationPool {
	notifier, err := services.GetNotifier()
	self.Require().NoError(err)

	pool, ok := notifier.(*notifications.NotificationPool)
	self.Require().True(ok)
	return pool
}

// Statistics returns the recording statistics fake.
func (self *TestSuite) Statistics() *memory.StatisticsRecorder {
	updater, err := services.GetStatisticsUpdater()
	self.Require().NoError(err)

	recorder, ok := updater.(*memory.StatisticsRecorder)
	self.Require().True(ok)
	return recorder
}

// Registry returns the session cache registry under test.
func (self *TestSuite) Registry() services.SessionCacheRegistry {
	registry, err := services.GetSessionCacheRegistry()
	self.Require().NoError(err)
	return registry
}
