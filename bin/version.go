package main

import (
	"fmt"
	"runtime/debug"

	"github.com/ls1intum/Artemis-sub079/constants"
)

var (
	version_cmd = app.Command(
		"version", "Report the binary version and build information.")
)

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		if command == version_cmd.FullCommand() {
			fmt.Printf("quizd %v\n", constants.VERSION)

			if *verbose_flag {
				info, ok := debug.ReadBuildInfo()
				if ok {
					fmt.Printf("\nBuild Info:\n%v\n", info)
				}
			}
			return true
		}
		return false
	})
}
