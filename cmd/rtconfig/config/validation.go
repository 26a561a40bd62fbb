package config

import (
	"fmt"
	"net"
	"strconv"

	configDefaults "github.com/concave-dev/rtconfig/internal/config"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/validate"
	"github.com/spf13/cobra"
)

// ValidateGlobalFlags validates all global flags before running any command
func ValidateGlobalFlags(cmd *cobra.Command, args []string) error {
	if err := ValidateDiscoveryAddress(); err != nil {
		return err
	}

	if err := ValidateOutputFormat(); err != nil {
		return err
	}

	if err := validate.ValidatePositiveTimeout(Global.Timeout, "timeout"); err != nil {
		return err
	}

	return logging.ValidateLogLevel(Global.LogLevel)
}

// ValidateDiscoveryAddress validates the --discovery flag. A bare host gets
// the default API port.
func ValidateDiscoveryAddress() error {
	host, port, err := validate.TargetAddress(Global.Discovery, configDefaults.DefaultAPIPort)
	if err != nil {
		logging.Error("Invalid discovery address '%s': %v", Global.Discovery, err)
		return fmt.Errorf("invalid discovery address - expected format: host:port (e.g., %s)", DefaultDiscovery)
	}

	// Reject unroutable 0.0.0.0 target for client connections
	if host == "0.0.0.0" {
		return fmt.Errorf("unroutable discovery address - use 127.0.0.1 or a specific IP address")
	}

	Global.Discovery = net.JoinHostPort(host, strconv.Itoa(port))
	return nil
}

// ValidateOutputFormat validates the --output flag
func ValidateOutputFormat() error {
	validOutputs := map[string]bool{
		OutputTable: true,
		OutputJSON:  true,
	}
	if !validOutputs[Global.Output] {
		return fmt.Errorf("invalid output format '%s' - valid: table, json", Global.Output)
	}
	return nil
}
