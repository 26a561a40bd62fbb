// Package commands provides the CLI command structure for rtconfigd.
//
// The daemon has a single root command. Its flags configure the Serf
// discovery agent, the HTTP API, the target profile and the timing of the
// simulated restart, format and firmware operations.
package commands

import (
	"github.com/concave-dev/rtconfig/cmd/rtconfigd/config"
	"github.com/concave-dev/rtconfig/cmd/rtconfigd/daemon"
	"github.com/concave-dev/rtconfig/cmd/rtconfigd/utils"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/version"
	"github.com/spf13/cobra"
)

// Root command for the rtconfigd daemon
var RootCmd = &cobra.Command{
	Use:   "rtconfigd",
	Short: "Configuration service for embedded real-time controllers",
	Long: `rtconfigd serves the system configuration API of one real-time target.

It keeps the target's profile (identity, network settings, installed
modules, configuration files) in the data directory, answers the rtconfig
CLI over HTTP and announces the target on the network with Serf so other
targets and clients can discover it.`,
	Version:      version.RtconfigdVersion,
	SilenceUsage: true,
	Example: `  # Start a target with a generated profile in ./data
  rtconfigd

  # Start a second target on the same host and join the first
  rtconfigd --data-dir=./data2 --join=127.0.0.1:4640

  # Serve a prepared profile on explicit ports
  rtconfigd --profile=./crio-9045.yaml --serf=0.0.0.0:4640 --api=0.0.0.0:8640`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.DisplayLogo(version.RtconfigdVersion)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		CheckExplicitFlags(cmd)

		// Apply the level before config initialization so --log-level=ERROR
		// silences its output too
		logging.SetLevel(config.Global.LogLevel)
		config.InitializeConfig()
		logging.SetLevel(config.Global.LogLevel)
		return config.ValidateConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon.Run()
	},
}

// SetupCommands initializes all commands and their relationships
func SetupCommands() {
	SetupFlags(RootCmd)
}
