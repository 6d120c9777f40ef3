package main

import (
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/ls1intum/Artemis-sub079/config"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("quizd",
		"Live quiz session cache and reconciliation engine.")

	config_path = app.Flag("config", "The configuration file.").Short('c').
			Envar("QUIZD_CONFIG").String()

	verbose_flag = app.Flag(
		"verbose", "Enable verbose logging.").Short('v').
		Default("false").Bool()

	command_handlers []CommandHandler
)

func load_config() (*config.Config, error) {
	return new(config.Loader).
		WithVerbose(*verbose_flag).
		WithFileLoader(*config_path).
		WithDefaultLoader().
		WithRequiredFrontend().
		LoadAndValidate()
}

func load_cluster_config() (*config.Config, error) {
	return new(config.Loader).
		WithVerbose(*verbose_flag).
		WithFileLoader(*config_path).
		WithDefaultLoader().
		WithRequiredFrontend().
		WithRequiredCluster().
		LoadAndValidate()
}

func main() {
	args := os.Args[1:]

	command := kingpin.MustParse(app.Parse(args))
	for _, handler := range command_handlers {
		if handler(command) {
			break
		}
	}
}
