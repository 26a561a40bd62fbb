package api

import (
	"fmt"
	"time"

	"github.com/concave-dev/rtconfig/internal/api/handlers"
	"github.com/concave-dev/rtconfig/internal/config"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/concave-dev/rtconfig/internal/validate"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds everything the API server needs to serve one target.
type Config struct {
	BindAddr string // HTTP server bind address (e.g., "0.0.0.0")
	BindPort int    // HTTP server bind port

	Device    *target.Device     // Target the API configures
	Discovery handlers.Discovery // Source for GET /systems; nil lists nothing

	// SessionIdleTimeout expires sessions that have not been used for this
	// long.
	SessionIdleTimeout time.Duration

	// Registry receives the server's metrics. Nil uses a private registry,
	// so several servers can run in one process (tests, multi-target hosts).
	Registry *prometheus.Registry
}

// DefaultConfig returns a Config with default network settings. Device must
// be set by the caller.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:           config.DefaultBindAddr,
		BindPort:           config.DefaultAPIPort,
		SessionIdleTimeout: config.DefaultSessionIdleTimeout,
	}
}

// Validate checks that the server can start.
func (c *Config) Validate() error {
	if err := validate.ValidateRequiredString(c.BindAddr, "bind address"); err != nil {
		return err
	}
	if err := validate.ValidateField(c.BindPort, "min=0,max=65535"); err != nil {
		return fmt.Errorf("bind port validation failed: %w", err)
	}
	if err := validate.ValidatePositiveTimeout(c.SessionIdleTimeout, "session idle timeout"); err != nil {
		return err
	}
	if c.Device == nil {
		return fmt.Errorf("device cannot be nil")
	}
	return nil
}
