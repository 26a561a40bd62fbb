// Package config provides common default configuration values shared between
// the rtconfig CLI and the rtconfigd target service. Centralizing them keeps
// the client's assumptions about ports and timeouts in step with the service.
package config

import "time"

const (
	// DefaultBindAddr is the default bind address for all network services
	// Using 0.0.0.0 allows binding to all available network interfaces
	DefaultBindAddr = "0.0.0.0"

	// DefaultAPIPort is the port the target configuration service listens on.
	// Targets given to the CLI without an explicit port are contacted here.
	DefaultAPIPort = 8640

	// DefaultSerfPort is the gossip port used for target discovery
	DefaultSerfPort = 4640

	// DefaultLogLevel is the default log level for all components
	// INFO provides good balance of visibility without verbose debug output
	DefaultLogLevel = "INFO"

	// DefaultDataDir is the default data directory for the target profile
	// and its configuration files
	DefaultDataDir = "./data"

	// DefaultSessionTimeout bounds opening a session to a single target.
	DefaultSessionTimeout = 10 * time.Second

	// DefaultRestartTimeout bounds how long a restart waits for the target
	// to come back online.
	DefaultRestartTimeout = 120 * time.Second

	// DefaultFormatTimeout bounds a disk format on the target.
	DefaultFormatTimeout = 120 * time.Second

	// DefaultFirmwarePollInterval is the delay between firmware status checks.
	DefaultFirmwarePollInterval = time.Second

	// DefaultRestartPollInterval is the delay between availability checks
	// while waiting for a restarted or formatted target.
	DefaultRestartPollInterval = time.Second

	// DefaultRequestTimeout bounds a single HTTP exchange with a target,
	// image and firmware transfers included.
	DefaultRequestTimeout = 5 * time.Minute

	// DefaultSessionIdleTimeout is how long rtconfigd keeps an unused
	// session before expiring it.
	DefaultSessionIdleTimeout = 5 * time.Minute

	// DefaultRestartDelay is how long a simulated target stays offline
	// during a restart.
	DefaultRestartDelay = 3 * time.Second

	// DefaultFormatDuration is how long a simulated disk format takes.
	DefaultFormatDuration = 5 * time.Second

	// DefaultFirmwareDuration is how long a simulated firmware flash takes.
	DefaultFirmwareDuration = 5 * time.Second
)
