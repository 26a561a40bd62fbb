// Package daemon runs one rtconfigd target.
//
// Startup order:
//  1. Load or create the target profile and build the simulated device.
//  2. Check or find the Serf port and pre-bind the API listener, so a busy
//     port fails startup before anything is announced.
//  3. Start Serf with the target's identity in its tags, then the API.
//  4. Join other targets, if asked.
//
// Shutdown runs in reverse: API, Serf, device.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concave-dev/rtconfig/cmd/rtconfigd/config"
	"github.com/concave-dev/rtconfig/cmd/rtconfigd/utils"
	"github.com/concave-dev/rtconfig/internal/api"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/netutil"
	"github.com/concave-dev/rtconfig/internal/serf"
	"github.com/concave-dev/rtconfig/internal/target"
	ids "github.com/concave-dev/rtconfig/internal/utils"
	"github.com/concave-dev/rtconfig/internal/version"
)

// shutdownTimeout bounds how long in-flight API requests may take to finish.
const shutdownTimeout = 5 * time.Second

// loadProfile returns the profile to serve and the path it is saved to.
func loadProfile() (target.Profile, string, error) {
	if config.Global.IsExplicitlySet(config.ProfileField) {
		p, err := target.LoadProfile(config.Global.Profile)
		return p, config.Global.Profile, err
	}

	// A fresh data dir gets its own serial number so several daemons on one
	// host are distinct targets.
	fallback := target.DefaultProfile()
	serial, err := ids.GenerateSerial()
	if err != nil {
		return target.Profile{}, "", err
	}
	fallback.Serial = serial
	fallback.Hostname = fmt.Sprintf("NI-%s-%s", fallback.Model, serial)
	return target.LoadOrCreateProfile(config.Global.DataDir, fallback)
}

// buildSerfConfig converts daemon config to SerfManager config
func buildSerfConfig(device *target.Device, apiAddr string) *serf.ManagerConfig {
	serfConfig := serf.DefaultManagerConfig()
	serfConfig.BindAddr = config.Global.SerfAddr
	serfConfig.BindPort = config.Global.SerfPort
	serfConfig.NodeName = config.Global.NodeName
	serfConfig.LogLevel = config.Global.LogLevel
	serfConfig.Tags = serf.TargetTags(device.SystemInfo(), apiAddr)
	return serfConfig
}

// buildAPIConfig converts daemon config to API server config
func buildAPIConfig(device *target.Device, serfManager *serf.SerfManager) *api.Config {
	apiConfig := api.DefaultConfig()
	apiConfig.BindAddr = config.Global.APIAddr
	apiConfig.BindPort = config.Global.APIPort
	apiConfig.Device = device
	apiConfig.Discovery = serfManager
	apiConfig.SessionIdleTimeout = config.Global.SessionIdleTimeout
	return apiConfig
}

// Run starts the target's services and blocks until SIGINT or SIGTERM.
func Run() error {
	logging.SetLevel(config.Global.LogLevel)
	logging.Info("Starting rtconfigd v%s", version.RtconfigdVersion)

	profile, profilePath, err := loadProfile()
	if err != nil {
		logging.Error("Failed to load target profile: %v", err)
		return fmt.Errorf("failed to load target profile: %w", err)
	}
	logging.Info("Serving %s %s (%s) from %s", profile.Model, profile.Serial, profile.Hostname, profilePath)

	device, err := target.New(profile, target.Options{
		ProfilePath:      profilePath,
		DataDir:          config.Global.DataDir,
		RestartDelay:     config.Global.RestartDelay,
		FormatDuration:   config.Global.FormatDuration,
		FirmwareDuration: config.Global.FirmwareDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}
	defer device.Close()

	if config.Global.NodeName == "" {
		config.Global.NodeName = profile.Serial
	}

	// Serf uses UDP for gossip and TCP for state sync on the same port, so
	// both must be free
	if config.Global.IsExplicitlySet(config.SerfField) {
		logging.Info("Binding Serf to %s:%d", config.Global.SerfAddr, config.Global.SerfPort)
		free, err := utils.CheckSerfPort(config.Global.SerfAddr, config.Global.SerfPort)
		if err != nil {
			logging.Error("Failed to bind Serf to %s:%d: %v", config.Global.SerfAddr, config.Global.SerfPort, err)
			return err
		}
		if !free {
			return fmt.Errorf("cannot bind Serf to %s: port %d is already in use", config.Global.SerfAddr, config.Global.SerfPort)
		}
	} else {
		originalSerfPort := config.Global.SerfPort
		port, err := utils.FindAvailablePort(config.Global.SerfAddr, originalSerfPort)
		if err != nil {
			logging.Error("Failed to find available Serf port starting from %d: %v", originalSerfPort, err)
			return fmt.Errorf("failed to find available Serf port: %w", err)
		}
		if port != originalSerfPort {
			logging.Warn("Default port %d was busy, using port %d for Serf", originalSerfPort, port)
		}
		config.Global.SerfPort = port
	}

	// The API inherits the Serf address so the target advertises one host
	if !config.Global.IsExplicitlySet(config.APIAddrField) {
		config.Global.APIAddr = config.Global.SerfAddr
	}
	apiListener, apiPort, err := utils.PreBindAPIListener(
		config.Global.IsExplicitlySet(config.APIAddrField), config.Global.APIAddr, config.Global.APIPort)
	if err != nil {
		logging.Error("%v", err)
		return err
	}
	config.Global.APIPort = apiPort
	apiAddr := serf.APIAddr(config.Global.APIAddr, config.Global.APIPort)

	serfManager, err := serf.NewSerfManager(buildSerfConfig(device, apiAddr))
	if err != nil {
		apiListener.Close()
		return fmt.Errorf("failed to create serf manager: %w", err)
	}
	if err := serfManager.Start(); err != nil {
		apiListener.Close()
		logging.Error("Failed to start serf manager: %v", err)
		return fmt.Errorf("failed to start serf manager: %w", err)
	}

	// Keep discovery tags in step with hostname and IP changes
	device.OnChange(func(p target.Profile) {
		if err := serfManager.UpdateTags(serf.TargetTags(device.SystemInfo(), apiAddr)); err != nil {
			logging.Warn("Failed to update discovery tags: %v", err)
		}
	})

	apiServer, err := api.NewServerWithListener(buildAPIConfig(device, serfManager), apiListener)
	if err != nil {
		apiListener.Close()
		serfManager.Shutdown()
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := apiServer.Start(); err != nil {
		serfManager.Shutdown()
		logging.Error("Failed to start API server: %v", err)
		return fmt.Errorf("failed to start API server: %w", err)
	}

	if len(config.Global.JoinAddrs) > 0 {
		if err := serfManager.Join(config.Global.JoinAddrs); err != nil {
			logging.Error("Failed to join targets: %v", err)
			if netutil.IsConnectionRefusedError(err) {
				logging.Error("TIP: Check that rtconfigd is running on the join addresses")
			}
			if config.Global.StrictJoin {
				logging.Error("Strict join mode enabled: exiting due to join failure")
				shutdown(apiServer, serfManager)
				return fmt.Errorf("failed to join targets: %w", err)
			}
			logging.Warn("Continuing in isolation mode (use --strict-join to exit on join failure)")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logging.Success("rtconfigd started successfully")
	logging.Info("Target services started:")
	logging.Info("  - Serf discovery: %s:%d", config.Global.SerfAddr, config.Global.SerfPort)
	logging.Info("  - HTTP API: %s", apiAddr)

	sig := <-sigCh
	logging.Info("Received signal: %v", sig)
	logging.Info("Initiating graceful shutdown...")
	shutdown(apiServer, serfManager)

	logging.Success("rtconfigd shutdown completed")
	return nil
}

func shutdown(apiServer *api.Server, serfManager *serf.SerfManager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logging.Error("Error shutting down API server: %v", err)
	}

	// Shutdown leaves gracefully first
	if err := serfManager.Shutdown(); err != nil {
		logging.Error("Error shutting down serf manager: %v", err)
	}
}
