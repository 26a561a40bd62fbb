package serf

import (
	"fmt"
	"time"

	"github.com/concave-dev/rtconfig/internal/config"
	"github.com/concave-dev/rtconfig/internal/validate"
)

// Tag names every rtconfigd target advertises. Discovery builds its system
// list from these, so they are reserved and set by the daemon only.
const (
	TagNodeID   = "node_id"
	TagHostname = "hostname"
	TagIP       = "ip"
	TagAPIAddr  = "api_addr"
	TagModel    = "model"
	TagSerial   = "serial"
)

// Holds configuration for the SerfManager
type ManagerConfig struct {
	BindAddr string            // Bind address
	BindPort int               // Bind port
	NodeName string            // Name of the node
	Tags     map[string]string // Tags for the node

	EventBufferSize     int           // Event buffer size
	JoinRetries         int           // Join retries
	JoinTimeout         time.Duration // Join timeout
	LogLevel            string        // Log level
	DeadNodeReclaimTime time.Duration // How long failed targets linger before their name can be reused
}

// DefaultManagerConfig returns a default configuration for SerfManager
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		BindAddr:            config.DefaultBindAddr,
		BindPort:            config.DefaultSerfPort,
		EventBufferSize:     1024,
		JoinRetries:         3,
		JoinTimeout:         30 * time.Second,
		LogLevel:            config.DefaultLogLevel,
		DeadNodeReclaimTime: 10 * time.Minute,
		Tags:                make(map[string]string),
	}
}

// validateConfig validates manager configuration
func validateConfig(config *ManagerConfig) error {
	if config.NodeName == "" {
		return fmt.Errorf("node name cannot be empty")
	}

	if err := validate.ValidateField(config.BindAddr, "required,ip"); err != nil {
		return fmt.Errorf("invalid bind address: %w", err)
	}

	if err := validate.ValidateField(config.BindPort, "min=0,max=65535"); err != nil {
		return fmt.Errorf("invalid bind port: %w", err)
	}

	if config.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be positive, got: %d", config.EventBufferSize)
	}

	if err := validateTags(config.Tags); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}

	return nil
}

// validateTags validates that user-provided tags don't use reserved names
func validateTags(tags map[string]string) error {
	reservedTags := map[string]bool{
		TagNodeID: true,
	}

	for tagName := range tags {
		if reservedTags[tagName] {
			return fmt.Errorf("tag name '%s' is reserved and cannot be used", tagName)
		}
	}

	return nil
}
