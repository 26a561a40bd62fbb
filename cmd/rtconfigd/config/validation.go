package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/validate"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// InitializeConfig applies environment overrides before validation runs.
func InitializeConfig() {
	if os.Getenv("DEBUG") == "true" {
		Global.LogLevel = "DEBUG"
		logging.Info("DEBUG environment variable detected, setting log level to DEBUG")
	}
}

// ValidateConfig validates and normalizes the daemon configuration before
// any service starts.
func ValidateConfig() error {
	netAddr, err := validate.ParseBindAddress(Global.SerfAddr)
	if err != nil {
		logging.Error("Invalid serf address '%s': %v", Global.SerfAddr, err)
		return fmt.Errorf("invalid serf address: %w", err)
	}
	Global.SerfAddr = netAddr.Host
	Global.SerfPort = netAddr.Port

	if err := logging.ValidateLogLevel(Global.LogLevel); err != nil {
		return err
	}

	if Global.apiAddrExplicitlySet {
		apiNetAddr, err := validate.ParseBindAddress(Global.APIAddr)
		if err != nil {
			logging.Error("Invalid API address '%s': %v", Global.APIAddr, err)
			return fmt.Errorf("invalid API address: %w", err)
		}
		Global.APIAddr = apiNetAddr.Host
		Global.APIPort = apiNetAddr.Port
	} else {
		// Port only; the host is inherited from Serf once it is known
		apiNetAddr, err := validate.ParseBindAddress(DefaultAPI)
		if err != nil {
			return fmt.Errorf("invalid default API address: %w", err)
		}
		Global.APIPort = apiNetAddr.Port
	}

	if Global.SerfPort != 0 && Global.SerfPort == Global.APIPort {
		return fmt.Errorf("serf and API cannot share port %d", Global.SerfPort)
	}

	if len(Global.JoinAddrs) > 0 {
		if err := validate.ValidateAddressList(Global.JoinAddrs); err != nil {
			return fmt.Errorf("invalid join addresses: %w", err)
		}
	}

	if err := validate.ValidateRequiredString(Global.DataDir, "data directory"); err != nil {
		return err
	}
	if Global.profileExplicitlySet {
		if _, err := os.Stat(Global.Profile); err != nil {
			return fmt.Errorf("profile %s: %w", Global.Profile, err)
		}
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"restart delay", Global.RestartDelay},
		{"format duration", Global.FormatDuration},
		{"firmware duration", Global.FirmwareDuration},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s cannot be negative", d.name)
		}
	}
	if err := validate.ValidatePositiveTimeout(Global.SessionIdleTimeout, "session idle timeout"); err != nil {
		return err
	}

	return nil
}
