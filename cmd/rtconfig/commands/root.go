package commands

import (
	"github.com/concave-dev/rtconfig/cmd/rtconfig/config"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/utils"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command. Global flags are bound to a fresh
// config.Global.
func NewRootCmd() *cobra.Command {
	config.Global = config.Defaults()

	root := &cobra.Command{
		Use:   "rtconfig",
		Short: "Configure embedded real-time targets over the network",
		Long: `rtconfig configures real-time embedded controllers through the system
configuration service (rtconfigd) running on each target.

Targets are named by hostname, IP address, host:port, or a name found with
"rtconfig find". Every command opens one session per target and closes it
before exiting. The exit status is the service status code on failure.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Find every target on the network
  rtconfig find

  # Change a target's hostname and IP address
  rtconfig sethostname 10.0.0.5 cell-3-ctrl
  rtconfig setip cell-3-ctrl 10.0.0.50 255.255.255.0

  # Copy the configuration of one target to another
  rtconfig getimage cell-3-ctrl
  rtconfig setimage cell-4-ctrl ./cell-3-ctrl

  # Update firmware with credentials
  rtconfig updatefirmware cell-3-ctrl ./rtfw-9.1.bin -u admin -p secret

  # Use a discovery service on another host, JSON output
  rtconfig --discovery=10.0.0.5:8640 -o json find`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindEnvironment(cmd); err != nil {
				return err
			}
			if err := config.ValidateGlobalFlags(cmd, args); err != nil {
				return err
			}
			utils.SetupLogging()
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	SetupGlobalFlags(root)
	return root
}

// SetupGlobalFlags configures all global persistent flags
func SetupGlobalFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&config.Global.Discovery, "discovery", config.Global.Discovery,
		"Address of any rtconfigd, used to find targets")
	flags.DurationVar(&config.Global.Timeout, "timeout", config.Global.Timeout,
		"Session timeout")
	flags.StringVarP(&config.Global.User, "user", "u", "",
		"User name for the target session")
	flags.StringVarP(&config.Global.Password, "password", "p", "",
		"Password for the target session")
	flags.StringVarP(&config.Global.Output, "output", "o", config.Global.Output,
		"Output format: table, json")
	flags.StringVar(&config.Global.LogLevel, "log-level", config.Global.LogLevel,
		"Log level: DEBUG, INFO, WARN, ERROR")
	flags.BoolVarP(&config.Global.Verbose, "verbose", "v", false,
		"Show verbose output")
}
