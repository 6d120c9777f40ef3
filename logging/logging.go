package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ls1intum/Artemis-sub079/config"
	"github.com/sirupsen/logrus"
)

var (
	mu       sync.Mutex
	managers map[*config.Config]*LogManager = make(map[*config.Config]*LogManager)

	// Tags like <green>...</> are markup for interactive terminals;
	// they are stripped before the message reaches logrus.
	tag_regex = regexp.MustCompile(`<[/a-z_]*?>`)

	GenericComponent   = "Generic"
	FrontendComponent  = "Frontend"
	SchedulerComponent = "Scheduler"
	ReconcileComponent = "Reconciler"
)

type LogContext struct {
	*logrus.Logger

	component string
}

func (self *LogContext) format(format string, v ...interface{}) string {
	return tag_regex.ReplaceAllString(fmt.Sprintf(format, v...), "")
}

func (self *LogContext) Debug(format string, v ...interface{}) {
	self.Logger.Debug(self.format(format, v...))
}

func (self *LogContext) Info(format string, v ...interface{}) {
	self.Logger.Info(self.format(format, v...))
}

func (self *LogContext) Warn(format string, v ...interface{}) {
	self.Logger.Warn(self.format(format, v...))
}

func (self *LogContext) Error(format string, v ...interface{}) {
	self.Logger.Error(self.format(format, v...))
}

type LogManager struct {
	mu       sync.Mutex
	contexts map[string]*LogContext

	config_obj *config.Config
}

func (self *LogManager) GetLogger(component *string) *LogContext {
	self.mu.Lock()
	defer self.mu.Unlock()

	ctx, pres := self.contexts[*component]
	if pres {
		return ctx
	}

	ctx = self.makeNewComponent(component)
	self.contexts[*component] = ctx
	return ctx
}

func (self *LogManager) makeNewComponent(component *string) *LogContext {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	}
	logger.Level = logrus.InfoLevel

	logging_config := self.config_obj.Logging
	if logging_config != nil {
		if logging_config.Debug {
			logger.Level = logrus.DebugLevel
		}

		if logging_config.OutputDirectory != "" {
			path := filepath.Join(logging_config.OutputDirectory,
				fmt.Sprintf("Artemis_%s.log", *component))
			fd, err := os.OpenFile(path,
				os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err == nil {
				logger.Out = fd
			}
		}
	}

	return &LogContext{
		Logger:    logger.WithField("component", *component).Logger,
		component: *component,
	}
}

// GetLogger returns the shared logger for a component. Loggers are
// cached per config object so tests with different configs do not
// share log files.
func GetLogger(config_obj *config.Config, component *string) *LogContext {
	mu.Lock()
	defer mu.Unlock()

	manager, pres := managers[config_obj]
	if !pres {
		manager = &LogManager{
			contexts:   make(map[string]*LogContext),
			config_obj: config_obj,
		}
		managers[config_obj] = manager
	}

	return manager.GetLogger(component)
}

// Reset clears all cached log managers. Used between test suites.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	managers = make(map[*config.Config]*LogManager)
}
