package commands

import (
	"github.com/concave-dev/rtconfig/cmd/rtconfigd/config"
	configDefaults "github.com/concave-dev/rtconfig/internal/config"
	"github.com/spf13/cobra"
)

// SetupFlags configures all command line flags for the daemon
func SetupFlags(cmd *cobra.Command) {
	// Discovery flags
	cmd.Flags().StringVar(&config.Global.SerfAddr, "serf", config.DefaultSerf,
		"Address and port for Serf target discovery (e.g., "+config.DefaultSerf+")")
	cmd.Flags().StringSliceVar(&config.Global.JoinAddrs, "join", nil,
		"Comma-separated list of targets to join (e.g., 10.0.0.5:4640,10.0.0.6:4640)")
	cmd.Flags().BoolVar(&config.Global.StrictJoin, "strict-join", false,
		"Exit if joining fails (default: continue in isolation)")
	cmd.Flags().StringVar(&config.Global.NodeName, "name", "",
		"Serf node name (defaults to the target serial number)")

	// API flags
	cmd.Flags().StringVar(&config.Global.APIAddr, "api", config.DefaultAPI,
		"Address and port for the HTTP API (host defaults to the Serf address)")
	cmd.Flags().DurationVar(&config.Global.SessionIdleTimeout, "session-idle-timeout",
		configDefaults.DefaultSessionIdleTimeout, "Idle time before a session expires")

	// Target flags
	cmd.Flags().StringVar(&config.Global.DataDir, "data-dir", config.DefaultDataDir,
		"Directory holding the target profile")
	cmd.Flags().StringVar(&config.Global.Profile, "profile", "",
		"Profile file to serve instead of the one in --data-dir")
	cmd.Flags().DurationVar(&config.Global.RestartDelay, "restart-delay",
		configDefaults.DefaultRestartDelay, "How long a restart keeps the target offline")
	cmd.Flags().DurationVar(&config.Global.FormatDuration, "format-duration",
		configDefaults.DefaultFormatDuration, "How long a format keeps the target offline")
	cmd.Flags().DurationVar(&config.Global.FirmwareDuration, "firmware-duration",
		configDefaults.DefaultFirmwareDuration, "How long a firmware update takes")

	cmd.Flags().StringVar(&config.Global.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: DEBUG, INFO, WARN, ERROR")
}

// CheckExplicitFlags checks if flags were explicitly set by the user
func CheckExplicitFlags(cmd *cobra.Command) {
	config.Global.SetExplicitlySet(config.SerfField, cmd.Flags().Changed("serf"))
	config.Global.SetExplicitlySet(config.APIAddrField, cmd.Flags().Changed("api"))
	config.Global.SetExplicitlySet(config.DataDirField, cmd.Flags().Changed("data-dir"))
	config.Global.SetExplicitlySet(config.ProfileField, cmd.Flags().Changed("profile"))
}
