package api

import (
	"testing"
	"time"

	"github.com/concave-dev/rtconfig/internal/config"
)

// TestDefaultConfig tests default API configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BindPort != config.DefaultAPIPort {
		t.Errorf("BindPort = %d, want %d", cfg.BindPort, config.DefaultAPIPort)
	}
	if cfg.SessionIdleTimeout != config.DefaultSessionIdleTimeout {
		t.Errorf("SessionIdleTimeout = %v, want %v", cfg.SessionIdleTimeout, config.DefaultSessionIdleTimeout)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without a device")
	}
}

// TestConfig_Validate tests Config.Validate() with key cases
func TestConfig_Validate(t *testing.T) {
	device := newTestDevice(t, nil)

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"ephemeral port", func(c *Config) { c.BindPort = 0 }, false},
		{"empty bind address", func(c *Config) { c.BindAddr = "" }, true},
		{"port out of range", func(c *Config) { c.BindPort = 70000 }, true},
		{"zero idle timeout", func(c *Config) { c.SessionIdleTimeout = 0 }, true},
		{"negative idle timeout", func(c *Config) { c.SessionIdleTimeout = -time.Second }, true},
		{"nil device", func(c *Config) { c.Device = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Device = device
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
