package main

import (
	"fmt"

	"github.com/Velocidex/yaml/v2"
	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/ls1intum/Artemis-sub079/config"
)

var (
	config_command = app.Command(
		"config", "Manipulate the configuration.")

	config_show_command = config_command.Command(
		"show", "Show the effective configuration.")

	config_generate_command = config_command.Command(
		"generate", "Print a default single node configuration.")
)

func doShowConfig() error {
	config_obj, err := load_config()
	if err != nil {
		return err
	}

	serialized, err := yaml.Marshal(config_obj)
	if err != nil {
		return err
	}

	fmt.Printf("%v", string(serialized))
	return nil
}

func doGenerateConfig() error {
	serialized, err := yaml.Marshal(config.GetDefaultConfig())
	if err != nil {
		return err
	}

	fmt.Printf("%v", string(serialized))
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case config_show_command.FullCommand():
			err := doShowConfig()
			kingpin.FatalIfError(err, "config show")

		case config_generate_command.FullCommand():
			err := doGenerateConfig()
			kingpin.FatalIfError(err, "config generate")

		default:
			return false
		}
		return true
	})
}
