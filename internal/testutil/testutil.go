// Package testutil starts in-process rtconfigd targets for tests. Each
// target is a real device model behind the real API router, served by
// httptest, so clients exercise the same HTTP surface the daemon exposes.
package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/concave-dev/rtconfig/internal/api"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

// Target is one running test target.
type Target struct {
	Device *target.Device
	Server *api.Server
	HTTP   *httptest.Server

	// Addr is host:port of the API.
	Addr string
}

// SessionCount returns the number of open sessions on the target.
func (t *Target) SessionCount() int {
	return t.Server.Sessions().Len()
}

// Fleet is a set of targets that discover each other.
type Fleet struct {
	mu      sync.Mutex
	Targets []*Target
}

// Systems implements the discovery source shared by every target.
func (f *Fleet) Systems() []syscfg.DiscoveredSystem {
	f.mu.Lock()
	defer f.mu.Unlock()

	systems := make([]syscfg.DiscoveredSystem, 0, len(f.Targets))
	for _, t := range f.Targets {
		info := t.Device.SystemInfo()
		systems = append(systems, syscfg.DiscoveredSystem{
			Hostname:     info.Hostname,
			IPAddress:    info.IPAddress,
			APIAddress:   t.Addr,
			Model:        info.Model,
			SerialNumber: info.SerialNumber,
			Status:       "alive",
		})
	}
	return systems
}

// Addr returns the address of the first target, used as the discovery
// address by clients.
func (f *Fleet) Addr() string {
	return f.Targets[0].Addr
}

// Options tunes the timing of test targets.
type Options struct {
	RestartDelay     time.Duration
	FormatDuration   time.Duration
	FirmwareDuration time.Duration

	// HostCheck defaults to a passing check so tests never depend on the
	// host's disk usage.
	HostCheck func(ctx context.Context) error
}

// DefaultOptions keeps every timed operation short.
func DefaultOptions() Options {
	return Options{
		RestartDelay:     100 * time.Millisecond,
		FormatDuration:   100 * time.Millisecond,
		FirmwareDuration: 100 * time.Millisecond,
	}
}

// Profile returns a default profile with a distinct identity for index i.
func Profile(i int) target.Profile {
	p := target.DefaultProfile()
	p.Serial = fmt.Sprintf("01F2A3%02X", 0xB4+i)
	p.Hostname = "NI-cRIO-9045-" + p.Serial
	p.IPAddress = fmt.Sprintf("127.0.0.%d", i+1)
	for j := range p.Modules {
		if p.Modules[j].Serial != "" {
			p.Modules[j].Serial = fmt.Sprintf("%s%02X", p.Modules[j].Serial[:6], 0xE7+j+i*8)
		}
	}
	return p
}

// NewFleet starts one target per profile. Targets are closed when the test
// ends.
func NewFleet(t testing.TB, opts Options, profiles ...target.Profile) *Fleet {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if !testing.Verbose() {
		logging.SetLevel("ERROR")
	}

	fleet := &Fleet{}
	for _, p := range profiles {
		fleet.Targets = append(fleet.Targets, startTarget(t, opts, p, fleet))
	}
	return fleet
}

// NewTarget starts a single target that discovers only itself.
func NewTarget(t testing.TB, opts Options, p target.Profile) *Target {
	t.Helper()
	return NewFleet(t, opts, p).Targets[0]
}

func startTarget(t testing.TB, opts Options, p target.Profile, discovery *Fleet) *Target {
	t.Helper()

	hostCheck := opts.HostCheck
	if hostCheck == nil {
		hostCheck = func(context.Context) error { return nil }
	}
	device, err := target.New(p, target.Options{
		RestartDelay:     opts.RestartDelay,
		FormatDuration:   opts.FormatDuration,
		FirmwareDuration: opts.FirmwareDuration,
		HostCheck:        hostCheck,
	})
	if err != nil {
		t.Fatalf("target.New() error = %v", err)
	}

	cfg := api.DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	cfg.Device = device
	cfg.Discovery = discovery
	server, err := api.NewServer(cfg)
	if err != nil {
		t.Fatalf("api.NewServer() error = %v", err)
	}

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		device.Close()
	})

	return &Target{
		Device: device,
		Server: server,
		HTTP:   ts,
		Addr:   strings.TrimPrefix(ts.URL, "http://"),
	}
}

// WaitRunning blocks until the target is running again or the timeout
// passes.
func (t *Target) WaitRunning(tb testing.TB, timeout time.Duration) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for t.Device.State() != target.StateRunning {
		if time.Now().After(deadline) {
			tb.Fatalf("target still %s after %v", t.Device.State(), timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
