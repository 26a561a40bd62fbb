package target

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/resources"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/validate"
)

// State is the operating state of a target.
type State string

const (
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StateFormatting State = "formatting"
)

// MaxCommentLength bounds the free-form system comment.
const MaxCommentLength = 255

// Options configures a Device.
type Options struct {
	// ProfilePath is where the profile is saved after every change. Empty
	// keeps the profile in memory only.
	ProfilePath string

	// DataDir is checked for free space by the system self-test.
	DataDir string

	RestartDelay     time.Duration
	FormatDuration   time.Duration
	FirmwareDuration time.Duration

	// HostCheck replaces the host health check run by the system
	// self-test.
	HostCheck func(ctx context.Context) error

	// Now replaces time.Now.
	Now func() time.Time
}

// Health is what a target reports about itself without a session.
type Health struct {
	State     State
	Hostname  string
	IPAddress string
}

// Device is a simulated controller.
type Device struct {
	mu       sync.RWMutex
	profile  Profile
	opts     Options
	state    State
	bootTime time.Time
	osName   string
	firmware firmwareJob

	changeHooks []func(Profile)
	rebootHooks []func()

	timers []*time.Timer
	closed bool
}

// New creates a running device from p.
func New(p Profile, opts Options) (*Device, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.clone()
	p.normalize()

	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Device{
		profile: p,
		opts:    opts,
		state:   StateRunning,
	}
	d.bootTime = opts.Now()

	facts := resources.GatherHostFacts(context.Background(), opts.DataDir)
	d.osName = facts.OSName()
	if d.profile.MACAddress == "" {
		d.profile.MACAddress = facts.MACAddress
	}
	return d, nil
}

// OnChange registers fn to be called with a copy of the profile after every
// committed change. Hooks run outside the device lock.
func (d *Device) OnChange(fn func(Profile)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeHooks = append(d.changeHooks, fn)
}

// OnReboot registers fn to be called whenever the target goes down for a
// restart or format. The API server uses it to drop every session.
func (d *Device) OnReboot(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebootHooks = append(d.rebootHooks, fn)
}

// Profile returns a copy of the current profile.
func (d *Device) Profile() Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.profile.clone()
}

// State returns the operating state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Health returns the unauthenticated health summary.
func (d *Device) Health() Health {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Health{
		State:     d.state,
		Hostname:  d.profile.Hostname,
		IPAddress: d.profile.IPAddress,
	}
}

// Authenticate checks session credentials. When the profile has no password
// any user is accepted.
func (d *Device) Authenticate(user, password string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.state != StateRunning {
		return syscfg.Errorf(syscfg.StatusSystemNotFound, "open session", "target is %s", d.state)
	}
	if d.profile.Password == "" {
		return nil
	}
	if user != d.profile.User || password != d.profile.Password {
		return syscfg.Errorf(syscfg.StatusAccessDenied, "open session", "invalid user name or password")
	}
	return nil
}

// SystemInfo returns the system properties.
func (d *Device) SystemInfo() syscfg.SystemInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advanceFirmwareLocked()

	p := d.profile
	return syscfg.SystemInfo{
		Hostname:        p.Hostname,
		IPAddress:       p.IPAddress,
		IPMode:          p.IPMode,
		SubnetMask:      p.SubnetMask,
		MACAddress:      p.MACAddress,
		Model:           p.Model,
		SerialNumber:    p.Serial,
		FirmwareVersion: p.FirmwareVersion,
		Comment:         p.Comment,
		OSName:          d.osName,
		BootTime:        d.bootTime,
	}
}

// ApplySystemChanges validates every property in props and then applies all
// of them. Nothing is applied if any property is rejected.
func (d *Device) ApplySystemChanges(props map[syscfg.SystemProperty]string) (syscfg.SaveResult, error) {
	const op = "save changes"
	var result syscfg.SaveResult

	err := d.update(func(p *Profile) (bool, error) {
		if err := d.requireRunningLocked(op); err != nil {
			return false, err
		}

		next := *p
		for prop, value := range props {
			if !syscfg.WritableSystemProperties[prop] {
				return false, syscfg.Errorf(syscfg.StatusReadOnly, op, "%s cannot be set", prop)
			}
			if err := validateSystemProperty(prop, value); err != nil {
				return false, syscfg.Errorf(syscfg.StatusInvalidArg, op, "%v", err)
			}
			switch prop {
			case syscfg.SysHostname:
				next.Hostname = value
			case syscfg.SysIPAddress:
				next.IPAddress = value
			case syscfg.SysIPMode:
				next.IPMode = value
			case syscfg.SysSubnetMask:
				next.SubnetMask = value
			case syscfg.SysComment:
				next.Comment = value
			}
		}

		if _, ok := props[syscfg.SysIPAddress]; ok && next.IPMode != syscfg.IPModeStatic {
			return false, syscfg.Errorf(syscfg.StatusInvalidArg, op, "an IP address can only be set with IP mode %s", syscfg.IPModeStatic)
		}

		result.RestartRequired = next.Hostname != p.Hostname ||
			next.IPAddress != p.IPAddress ||
			next.IPMode != p.IPMode ||
			next.SubnetMask != p.SubnetMask

		changed := next.Hostname != p.Hostname || next.IPAddress != p.IPAddress ||
			next.IPMode != p.IPMode || next.SubnetMask != p.SubnetMask || next.Comment != p.Comment
		*p = next
		return changed, nil
	})
	return result, err
}

func validateSystemProperty(prop syscfg.SystemProperty, value string) error {
	switch prop {
	case syscfg.SysHostname:
		return validate.Hostname(value)
	case syscfg.SysIPAddress:
		return validate.IPv4Address(value)
	case syscfg.SysSubnetMask:
		return validate.SubnetMask(value)
	case syscfg.SysIPMode:
		switch value {
		case syscfg.IPModeDHCP, syscfg.IPModeStatic, syscfg.IPModeLinkLocal:
			return nil
		}
		return fmt.Errorf("unknown IP mode '%s'", value)
	case syscfg.SysComment:
		if len(value) > MaxCommentLength {
			return fmt.Errorf("comment exceeds %d characters", MaxCommentLength)
		}
	}
	return nil
}

// Restart takes the target offline for RestartDelay. Every reboot hook runs
// before Restart returns.
func (d *Device) Restart() error {
	d.mu.Lock()
	if err := d.requireIdleLocked("restart"); err != nil {
		d.mu.Unlock()
		return err
	}
	d.state = StateRestarting
	hooks := append([]func(){}, d.rebootHooks...)
	d.scheduleLocked(d.opts.RestartDelay, func() {
		d.mu.Lock()
		d.state = StateRunning
		d.bootTime = d.opts.Now()
		hostname := d.profile.Hostname
		d.mu.Unlock()
		logging.Success("Target %s is back online", hostname)
	})
	d.mu.Unlock()

	logging.Info("Restarting target")
	for _, hook := range hooks {
		hook()
	}
	return nil
}

// Format erases configuration files, aliases and comments, resets module
// modes and then reboots. Network settings survive a format.
func (d *Device) Format() error {
	d.mu.Lock()
	if err := d.requireIdleLocked("format"); err != nil {
		d.mu.Unlock()
		return err
	}
	d.state = StateFormatting
	hooks := append([]func(){}, d.rebootHooks...)
	d.scheduleLocked(d.opts.FormatDuration, func() {
		_ = d.update(func(p *Profile) (bool, error) {
			p.Files = make(map[string]string)
			p.Comment = ""
			for i := range p.Modules {
				p.Modules[i].Alias = ""
				if p.Modules[i].Product != "" {
					p.Modules[i].Mode = syscfg.ProgramModeRealtimeScan
				}
			}
			for i := range p.Ports {
				p.Ports[i].Alias = ""
			}
			d.state = StateRunning
			d.bootTime = d.opts.Now()
			return true, nil
		})
		logging.Success("Format complete")
	})
	d.mu.Unlock()

	logging.Warn("Formatting target")
	for _, hook := range hooks {
		hook()
	}
	return nil
}

// Close stops pending timers. Operations in progress never complete.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
}

func (d *Device) scheduleLocked(delay time.Duration, fn func()) {
	if d.closed {
		return
	}
	d.timers = append(d.timers, time.AfterFunc(delay, fn))
}

func (d *Device) requireRunningLocked(op string) error {
	if d.state != StateRunning {
		return syscfg.Errorf(syscfg.StatusBusy, op, "target is %s", d.state)
	}
	return nil
}

// requireIdleLocked also rejects operations while firmware is being flashed.
func (d *Device) requireIdleLocked(op string) error {
	if err := d.requireRunningLocked(op); err != nil {
		return err
	}
	d.advanceFirmwareLocked()
	if d.firmware.progress.State == syscfg.FirmwareUpdating {
		return syscfg.Errorf(syscfg.StatusBusy, op, "a firmware update is in progress")
	}
	return nil
}

// update runs fn under the lock. When fn reports a change the profile is
// saved and change hooks are called with a copy of it.
func (d *Device) update(fn func(p *Profile) (bool, error)) error {
	d.mu.Lock()
	changed, err := fn(&d.profile)
	if err != nil || !changed {
		d.mu.Unlock()
		return err
	}
	d.persistLocked()
	snapshot := d.profile.clone()
	hooks := append([]func(Profile){}, d.changeHooks...)
	d.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot)
	}
	return nil
}

func (d *Device) persistLocked() {
	if d.opts.ProfilePath == "" {
		return
	}
	if err := SaveProfile(d.opts.ProfilePath, d.profile); err != nil {
		logging.Error("Failed to save target profile: %v", err)
	}
}
