// Package main implements rtconfigd, the configuration service of an
// rtconfig target. It serves the REST API the rtconfig CLI talks to and
// announces the target on the local network through Serf.
package main

import (
	"os"

	"github.com/concave-dev/rtconfig/cmd/rtconfigd/commands"
)

func main() {
	commands.SetupCommands()

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
