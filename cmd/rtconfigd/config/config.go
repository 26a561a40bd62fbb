// Package config provides configuration management for the rtconfigd daemon.
//
// The daemon runs two network services: the Serf agent used for target
// discovery and the HTTP API used by the rtconfig CLI. The API inherits the
// Serf IP unless --api is given, so a target advertises one reachable
// address. Values explicitly set by the user are tracked so defaults never
// override them.
package config

import (
	"time"

	configDefaults "github.com/concave-dev/rtconfig/internal/config"
)

// ConfigField represents a configuration field that can be explicitly set
type ConfigField int

const (
	// Configuration field identifiers
	SerfField ConfigField = iota
	APIAddrField
	DataDirField
	ProfileField
)

var (
	DefaultSerf     = configDefaults.DefaultBindAddr + ":" + itoa(configDefaults.DefaultSerfPort) // Default serf address
	DefaultAPI      = configDefaults.DefaultBindAddr + ":" + itoa(configDefaults.DefaultAPIPort)  // Default API address
	DefaultDataDir  = configDefaults.DefaultDataDir                                               // Default data directory
	DefaultLogLevel = configDefaults.DefaultLogLevel                                              // Default log level
)

// Config holds all daemon configuration values
type Config struct {
	SerfAddr   string   // Network address for Serf discovery
	SerfPort   int      // Network port for Serf discovery
	APIAddr    string   // HTTP API server address (inherits Serf IP by default)
	APIPort    int      // HTTP API server port (derived from APIAddr)
	NodeName   string   // Serf node name (defaults to the target serial number)
	JoinAddrs  []string // Addresses of other targets to join
	StrictJoin bool     // Exit if joining fails (default: continue in isolation)
	LogLevel   string   // Log level: DEBUG, INFO, WARN, ERROR
	DataDir    string   // Directory holding the target profile
	Profile    string   // Explicit profile file; overrides the one in DataDir

	RestartDelay       time.Duration // How long a restart keeps the target offline
	FormatDuration     time.Duration // How long a format keeps the target offline
	FirmwareDuration   time.Duration // How long flashing firmware takes
	SessionIdleTimeout time.Duration // Idle time before a session expires

	// Flags to track if values were explicitly set by user
	serfExplicitlySet    bool
	apiAddrExplicitlySet bool
	dataDirExplicitlySet bool
	profileExplicitlySet bool
}

// Global configuration instance
var Global Config

// SetExplicitlySet marks a configuration field as explicitly set by the user.
func (c *Config) SetExplicitlySet(field ConfigField, value bool) {
	switch field {
	case SerfField:
		c.serfExplicitlySet = value
	case APIAddrField:
		c.apiAddrExplicitlySet = value
	case DataDirField:
		c.dataDirExplicitlySet = value
	case ProfileField:
		c.profileExplicitlySet = value
	}
}

// IsExplicitlySet returns whether a configuration field was explicitly set by the user.
func (c *Config) IsExplicitlySet(field ConfigField) bool {
	switch field {
	case SerfField:
		return c.serfExplicitlySet
	case APIAddrField:
		return c.apiAddrExplicitlySet
	case DataDirField:
		return c.dataDirExplicitlySet
	case ProfileField:
		return c.profileExplicitlySet
	}
	return false
}
