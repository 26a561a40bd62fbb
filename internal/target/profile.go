// Package target models the embedded controller that an rtconfigd instance
// serves: its system properties, the hardware modules in its chassis and the
// long-running operations (restart, format, firmware update) that change them.
//
// DEVICE PROFILE:
// Everything persistent about a target lives in a Profile, stored as YAML in
// the daemon's data directory. The profile is rewritten after every change so
// that a daemon restart comes back with the same hostname, network settings,
// module aliases and firmware version. Transient state (sessions, running
// operations) is never persisted.
//
// CONCURRENCY:
// Device is safe for concurrent use. A single RWMutex guards the profile and
// operation state; timers started by Restart, Format and firmware updates take
// the same lock when they fire.
package target

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"gopkg.in/yaml.v3"
)

// ProfileFileName is the name of the profile inside the data directory.
const ProfileFileName = "target.yaml"

// SelfTest outcomes a module profile can be configured with.
const (
	SelfTestPass        = "pass"
	SelfTestUnsupported = "unsupported"
	SelfTestFail        = "fail"
)

// ModuleProfile is one C Series module, or an empty slot when Product is
// empty.
type ModuleProfile struct {
	Slot     int                `yaml:"slot"`
	Product  string             `yaml:"product,omitempty"`
	Serial   string             `yaml:"serial,omitempty"`
	Alias    string             `yaml:"alias,omitempty"`
	Mode     syscfg.ProgramMode `yaml:"mode,omitempty"`
	SelfTest string             `yaml:"selfTest,omitempty"`
}

// PortProfile is a non-slotted resource such as a serial port.
type PortProfile struct {
	Name    string `yaml:"name"`
	Product string `yaml:"product"`
	Alias   string `yaml:"alias,omitempty"`
}

// Profile is the persistent state of a target.
type Profile struct {
	Model           string `yaml:"model"`
	Serial          string `yaml:"serial"`
	Hostname        string `yaml:"hostname"`
	IPAddress       string `yaml:"ipAddress"`
	IPMode          string `yaml:"ipMode"`
	SubnetMask      string `yaml:"subnetMask"`
	MACAddress      string `yaml:"macAddress,omitempty"`
	FirmwareVersion string `yaml:"firmwareVersion"`
	Comment         string `yaml:"comment,omitempty"`

	// User and Password guard session creation. An empty password allows
	// anonymous sessions.
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`

	Modules []ModuleProfile `yaml:"modules"`
	Ports   []PortProfile   `yaml:"ports,omitempty"`

	// Files are the configuration files captured in and restored from
	// system images, keyed by slash-separated relative path.
	Files map[string]string `yaml:"files,omitempty"`
}

// DefaultProfile is the controller an rtconfigd instance simulates when no
// profile exists yet: a four-slot cRIO with three modules and one serial port.
func DefaultProfile() Profile {
	return Profile{
		Model:           "cRIO-9045",
		Serial:          "01F2A3B4",
		Hostname:        "NI-cRIO-9045-01F2A3B4",
		IPAddress:       "127.0.0.1",
		IPMode:          syscfg.IPModeDHCP,
		SubnetMask:      "255.255.255.0",
		FirmwareVersion: "8.8.0",
		User:            "admin",
		Modules: []ModuleProfile{
			{Slot: 1, Product: "NI 9205", Serial: "01C5D6E7", Mode: syscfg.ProgramModeRealtimeScan, SelfTest: SelfTestPass},
			{Slot: 2, Product: "NI 9263", Serial: "01C5D6E8", Mode: syscfg.ProgramModeRealtimeScan, SelfTest: SelfTestPass},
			{Slot: 3, Product: "NI 9401", Serial: "01C5D6E9", Mode: syscfg.ProgramModeRealtimeScan, SelfTest: SelfTestUnsupported},
			{Slot: 4},
		},
		Ports: []PortProfile{
			{Name: "ASRL1::INSTR", Product: "RS-232 Serial Port"},
		},
		Files: map[string]string{
			"etc/natinst/share/ni-rt.ini": "[systemsettings]\nConsoleOut.enabled=false\n",
			"home/lvuser/startup.cfg":     "run_on_startup=false\n",
		},
	}
}

// Validate checks that a loaded profile is usable.
func (p *Profile) Validate() error {
	if p.Model == "" {
		return errors.New("profile model is required")
	}
	if p.Serial == "" {
		return errors.New("profile serial is required")
	}
	if p.Hostname == "" {
		return errors.New("profile hostname is required")
	}
	seen := make(map[int]bool)
	for _, m := range p.Modules {
		if m.Slot < 1 {
			return fmt.Errorf("module slot %d must be 1 or greater", m.Slot)
		}
		if seen[m.Slot] {
			return fmt.Errorf("slot %d is listed twice", m.Slot)
		}
		seen[m.Slot] = true
		if m.Mode != "" && !m.Mode.Valid() {
			return fmt.Errorf("slot %d has unknown program mode %q", m.Slot, m.Mode)
		}
	}
	return nil
}

// normalize fills defaults and orders modules by slot.
func (p *Profile) normalize() {
	if p.IPMode == "" {
		p.IPMode = syscfg.IPModeDHCP
	}
	if p.Files == nil {
		p.Files = make(map[string]string)
	}
	for i := range p.Modules {
		if p.Modules[i].Product != "" && p.Modules[i].Mode == "" {
			p.Modules[i].Mode = syscfg.ProgramModeRealtimeScan
		}
	}
	sort.Slice(p.Modules, func(i, j int) bool { return p.Modules[i].Slot < p.Modules[j].Slot })
}

func (p Profile) clone() Profile {
	out := p
	out.Modules = append([]ModuleProfile(nil), p.Modules...)
	out.Ports = append([]PortProfile(nil), p.Ports...)
	out.Files = make(map[string]string, len(p.Files))
	for k, v := range p.Files {
		out.Files[k] = v
	}
	return out
}

// LoadProfile reads a profile from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	p.normalize()
	return p, nil
}

// LoadOrCreateProfile loads the profile from dataDir, writing fallback there
// first when none exists.
func LoadOrCreateProfile(dataDir string, fallback Profile) (Profile, string, error) {
	path := filepath.Join(dataDir, ProfileFileName)
	p, err := LoadProfile(path)
	if err == nil {
		return p, path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Profile{}, "", err
	}

	if err := fallback.Validate(); err != nil {
		return Profile{}, "", err
	}
	fallback.normalize()
	if err := SaveProfile(path, fallback); err != nil {
		return Profile{}, "", err
	}
	return fallback, path, nil
}

// SaveProfile writes p to path atomically.
func SaveProfile(path string, p Profile) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return os.Rename(tmp, path)
}
