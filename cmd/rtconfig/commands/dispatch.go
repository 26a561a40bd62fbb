package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/config"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/utils"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit statuses other than service status codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// describeTimeout bounds the status description lookup after a failure.
const describeTimeout = 5 * time.Second

// Dispatcher resolves a command line against a Registry, runs it and turns
// the result into an exit status.
type Dispatcher struct {
	Registry *Registry
	Out      io.Writer

	// NewService builds the service once flags are parsed. Nil uses
	// NewServiceClient.
	NewService func() syscfg.Service

	// Getwd defaults to os.Getwd.
	Getwd func() (string, error)
}

// NewServiceClient builds the REST client from the global flags.
func NewServiceClient() syscfg.Service {
	return syscfg.NewClient(syscfg.ClientOptions{
		DiscoveryAddr:  config.Global.Discovery,
		SessionTimeout: config.Global.Timeout,
		UserAgent:      "rtconfig/" + config.Version,
		Logger:         utils.RestyLogger{},
	})
}

// Run executes args (without the program name) and returns the exit status.
// Global flags may come before the command name.
func (d *Dispatcher) Run(ctx context.Context, args []string) int {
	var service syscfg.Service
	root := d.buildCommandTree(&service)

	name, found := commandName(args, root.PersistentFlags())
	if !found {
		fmt.Fprintln(d.Out, "No Command Passed")
		return ExitFailure
	}
	if _, ok := d.Registry.Lookup(name); !ok && !isBuiltin(name) {
		fmt.Fprintf(d.Out, "Invalid Command: %s\n", name)
		return ExitFailure
	}

	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return d.exitStatus(ctx, service, err)
}

// commandName returns the first token that is not a known global flag or
// the value of one. An unknown flag is returned as the name so it is
// reported as an invalid command.
func commandName(args []string, globals *pflag.FlagSet) (string, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return "", false
		}
		if len(arg) < 2 || arg[0] != '-' || isBuiltin(arg) {
			return arg, true
		}

		var flag *pflag.Flag
		inline := strings.Contains(arg, "=")
		if strings.HasPrefix(arg, "--") {
			flag = globals.Lookup(strings.SplitN(arg[2:], "=", 2)[0])
		} else {
			flag = globals.ShorthandLookup(arg[1:2])
			inline = inline || len(arg) > 2
		}
		if flag == nil {
			return arg, true
		}
		// Flags without an optional default take the next token as value
		if !inline && flag.NoOptDefVal == "" {
			i++
		}
	}
	return "", false
}

// isBuiltin reports whether name is handled by cobra itself.
func isBuiltin(name string) bool {
	switch name {
	case "help", "-h", "--help", "--version":
		return true
	}
	return false
}

func (d *Dispatcher) buildCommandTree(service *syscfg.Service) *cobra.Command {
	root := NewRootCmd()
	root.SetOut(d.Out)
	root.SetErr(d.Out)

	for _, entry := range d.Registry.Entries() {
		root.AddCommand(d.newCommand(entry, service))
	}
	return root
}

func (d *Dispatcher) newCommand(entry Entry, service *syscfg.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   entry.Usage,
		Short: entry.Short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !entry.Arity.Accepts(len(args)) {
				return ExpectingArguments(d.Out, entry.Usage)
			}

			*service = d.service()
			env := &Env{
				Service: *service,
				Out:     d.Out,
				Session: syscfg.SessionOptions{
					User:     config.Global.User,
					Password: config.Global.Password,
					Timeout:  config.Global.Timeout,
				},
				JSON:    config.Global.JSON(),
				Verbose: config.Global.Verbose,
				Flags:   cmd.Flags(),
				Getwd:   d.getwd(),
			}
			logging.Debug("Running %s %v", entry.Name, args)
			return entry.Handler(cmd.Context(), env, args)
		},
	}
	if entry.Flags != nil {
		entry.Flags(cmd.Flags())
	}
	return cmd
}

func (d *Dispatcher) service() syscfg.Service {
	if d.NewService != nil {
		return d.NewService()
	}
	return NewServiceClient()
}

func (d *Dispatcher) getwd() func() (string, error) {
	if d.Getwd != nil {
		return d.Getwd
	}
	return os.Getwd
}

// exitStatus prints the diagnostic for err and returns the exit status.
// Service failures exit with their status code and print the service's
// description of it.
func (d *Dispatcher) exitStatus(ctx context.Context, service syscfg.Service, err error) int {
	if err == nil {
		return ExitOK
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		logging.Debug("Usage error: %v", err)
		return ExitUsage
	}

	status, ok := syscfg.StatusOf(err)
	if !ok || status == syscfg.StatusOK || service == nil {
		fmt.Fprintf(d.Out, "Error: %v\n", err)
		return ExitFailure
	}

	logging.Debug("Command failed: %v", err)
	fmt.Fprintf(d.Out, "Error: %d\n", int(status))

	// The command's context may already be canceled
	descCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), describeTimeout)
	defer cancel()
	desc, descErr := service.StatusDescription(descCtx, status)
	if descErr != nil {
		logging.Warn("Failed to get status description: %v", descErr)
	} else if desc != "" {
		fmt.Fprintln(d.Out, desc)
	}
	return int(status)
}
