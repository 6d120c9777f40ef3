package services

import (
	"context"
	"sync"

	"github.com/ls1intum/Artemis-sub079/config"
)

var (
	service_mu     sync.Mutex
	ServiceManager *Service
)

// Service owns the lifetime of all services started on this
// node. Closing it cancels the service context and waits for all
// service goroutines to exit.
func NewServiceManager(ctx context.Context,
	config_obj *config.Config) *Service {
	service_mu.Lock()
	defer service_mu.Unlock()

	self := &Service{Config: config_obj, Wg: &sync.WaitGroup{}}
	self.Ctx, self.cancel = context.WithCancel(ctx)

	ServiceManager = self
	return self
}

type Service struct {
	Ctx    context.Context
	cancel func()
	Wg     *sync.WaitGroup
	Config *config.Config
}

func (self *Service) Close() {
	self.cancel()

	self.Wg.Wait()
}

type StarterFunc func(ctx context.Context, wg *sync.WaitGroup, config_obj *config.Config) error

func (self *Service) Start(starter StarterFunc) error {
	return starter(self.Ctx, self.Wg, self.Config)
}
