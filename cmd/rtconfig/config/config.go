// Package config provides configuration management for the rtconfig CLI.
package config

import (
	"time"

	configDefaults "github.com/concave-dev/rtconfig/internal/config"
	"github.com/concave-dev/rtconfig/internal/version"
)

const (
	DefaultDiscovery = "127.0.0.1:8640" // Default discovery service address (routable)
	DefaultLogLevel  = "ERROR"          // CLI output stays clean unless asked otherwise

	// EnvPrefix prefixes environment overrides, e.g. RTCONFIG_USER.
	EnvPrefix = "RTCONFIG"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Version returns the current rtconfig CLI version from the centralized version package
var Version = version.RtconfigVersion

// Settings holds the global CLI configuration
type Settings struct {
	Discovery string        // Address of any rtconfigd used for discovery
	Timeout   time.Duration // Session timeout
	User      string        // Session user name
	Password  string        // Session password
	Output    string        // Output format: table, json
	LogLevel  string        // Log level for CLI operations
	Verbose   bool          // Show verbose output
}

// Global holds the global CLI configuration. It is reset to defaults every
// time the command tree is built.
var Global Settings

// Defaults returns the settings used when no flag or environment override
// is given.
func Defaults() Settings {
	return Settings{
		Discovery: DefaultDiscovery,
		Timeout:   configDefaults.DefaultSessionTimeout,
		Output:    OutputTable,
		LogLevel:  DefaultLogLevel,
	}
}

// JSON reports whether output is machine readable.
func (s Settings) JSON() bool {
	return s.Output == OutputJSON
}
