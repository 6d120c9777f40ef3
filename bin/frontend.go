package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/ls1intum/Artemis-sub079/logging"
	"github.com/ls1intum/Artemis-sub079/startup"
)

var (
	frontend_cmd = app.Command(
		"frontend", "Run the quiz frontend services on this node.")
)

func doFrontend() error {
	config_obj, err := load_cluster_config()
	if err != nil {
		return err
	}

	ctx, cancel := install_sig_handler()
	defer cancel()

	sm, err := startup.StartFrontendServices(ctx, config_obj)
	defer sm.Close()
	if err != nil {
		return err
	}

	logger := logging.GetLogger(config_obj, &logging.FrontendComponent)
	logger.Info("<green>Quiz frontend ready</> on node %v",
		config_obj.NodeName)

	<-ctx.Done()
	logger.Info("<red>Shutting down</> node %v", config_obj.NodeName)
	return nil
}

func install_sig_handler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-quit:
			cancel()

		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		if command == frontend_cmd.FullCommand() {
			err := doFrontend()
			kingpin.FatalIfError(err, "frontend")
			return true
		}
		return false
	})
}
