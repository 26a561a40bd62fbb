package target

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/concave-dev/rtconfig/internal/syscfg"
)

// fakeClock is a manually advanced clock for firmware progress tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	if opts.HostCheck == nil {
		opts.HostCheck = func(ctx context.Context) error { return nil }
	}
	d, err := New(DefaultProfile(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func wantStatus(t *testing.T, err error, expected syscfg.Status) {
	t.Helper()
	status, ok := syscfg.StatusOf(err)
	if !ok || status != expected {
		t.Fatalf("error = %v, want status %s", err, expected)
	}
}

func TestApplySystemChanges(t *testing.T) {
	d := newTestDevice(t, Options{})

	result, err := d.ApplySystemChanges(map[syscfg.SystemProperty]string{
		syscfg.SysHostname: "line-3-crio",
	})
	if err != nil {
		t.Fatalf("ApplySystemChanges() error = %v", err)
	}
	if !result.RestartRequired {
		t.Error("hostname change should require a restart")
	}
	if got := d.SystemInfo().Hostname; got != "line-3-crio" {
		t.Errorf("Hostname = %q, want line-3-crio", got)
	}

	result, err = d.ApplySystemChanges(map[syscfg.SystemProperty]string{
		syscfg.SysComment: "bench unit",
	})
	if err != nil {
		t.Fatalf("ApplySystemChanges() error = %v", err)
	}
	if result.RestartRequired {
		t.Error("comment change should not require a restart")
	}
}

// TestApplySystemChangesAtomic checks that one bad property leaves every
// other staged property unapplied.
func TestApplySystemChangesAtomic(t *testing.T) {
	tests := []struct {
		name     string
		props    map[syscfg.SystemProperty]string
		expected syscfg.Status
	}{
		{
			"bad mask",
			map[syscfg.SystemProperty]string{
				syscfg.SysIPAddress:  "10.0.0.5",
				syscfg.SysIPMode:     syscfg.IPModeStatic,
				syscfg.SysSubnetMask: "255.0.255.0",
			},
			syscfg.StatusInvalidArg,
		},
		{
			"read-only property",
			map[syscfg.SystemProperty]string{
				syscfg.SysHostname:             "new-name",
				syscfg.SystemProperty("model"): "cRIO-9049",
			},
			syscfg.StatusReadOnly,
		},
		{
			"ip without static mode",
			map[syscfg.SystemProperty]string{syscfg.SysIPAddress: "10.0.0.5"},
			syscfg.StatusInvalidArg,
		},
		{
			"bad hostname",
			map[syscfg.SystemProperty]string{syscfg.SysHostname: "bad_name"},
			syscfg.StatusInvalidArg,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, Options{})
			before := d.SystemInfo()

			_, err := d.ApplySystemChanges(tt.props)
			wantStatus(t, err, tt.expected)

			after := d.SystemInfo()
			if after.Hostname != before.Hostname || after.IPAddress != before.IPAddress ||
				after.IPMode != before.IPMode || after.SubnetMask != before.SubnetMask {
				t.Errorf("system changed after rejected save: %+v -> %+v", before, after)
			}
		})
	}
}

func TestHardwareFilter(t *testing.T) {
	d := newTestDevice(t, Options{})

	all, err := d.Hardware(nil)
	if err != nil {
		t.Fatalf("Hardware() error = %v", err)
	}
	// system, four slots, one serial port
	if len(all) != 6 {
		t.Fatalf("Hardware(nil) returned %d resources, want 6", len(all))
	}

	slotted, _ := d.Hardware(syscfg.NewFilter(syscfg.AllPropertiesExist).Set(syscfg.PropSlotNumber, nil))
	if len(slotted) != 5 {
		t.Errorf("slotted resources = %d, want 5", len(slotted))
	}

	fw, _ := d.Hardware(syscfg.NewFilter(syscfg.MatchValuesAll).
		Set(syscfg.PropSupportsFirmwareUpdate, true).
		Set(syscfg.PropResourceName, syscfg.SystemResourceName))
	if len(fw) != 1 || fw[0].ID != SystemResourceID {
		t.Errorf("firmware resources = %+v", fw)
	}

	slot2, _ := d.Hardware(syscfg.NewFilter(syscfg.MatchValuesAll).Set(syscfg.PropSlotNumber, 2))
	if len(slot2) != 1 || slot2[0].ProductName != "NI 9263" {
		t.Errorf("slot 2 = %+v", slot2)
	}
}

func TestSetResourceProperties(t *testing.T) {
	d := newTestDevice(t, Options{})

	result, err := d.SetResourceProperties("mod1", map[syscfg.Property]string{
		syscfg.PropProgramMode: string(syscfg.ProgramModeLabVIEWFPGA),
	})
	if err != nil {
		t.Fatalf("SetResourceProperties() error = %v", err)
	}
	if !result.RestartRequired {
		t.Error("mode change should require a restart")
	}
	r, _ := d.Resource("mod1")
	if r.ProgramMode != syscfg.ProgramModeLabVIEWFPGA {
		t.Errorf("ProgramMode = %q", r.ProgramMode)
	}

	_, err = d.SetResourceProperties("mod1", map[syscfg.Property]string{syscfg.PropProgramMode: "turbo"})
	wantStatus(t, err, syscfg.StatusInvalidArg)

	_, err = d.SetResourceProperties("mod1", map[syscfg.Property]string{syscfg.PropSerialNumber: "X"})
	wantStatus(t, err, syscfg.StatusReadOnly)

	_, err = d.SetResourceProperties("mod4", map[syscfg.Property]string{syscfg.PropProgramMode: "realtime-cpu"})
	wantStatus(t, err, syscfg.StatusNotImplemented)

	_, err = d.SetResourceProperties("mod9", map[syscfg.Property]string{syscfg.PropProgramMode: "realtime-cpu"})
	wantStatus(t, err, syscfg.StatusResourceNotFound)
}

func TestRename(t *testing.T) {
	d := newTestDevice(t, Options{})

	if _, err := d.Rename("mod1", "Thermocouples", false); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	_, err := d.Rename("mod2", "Thermocouples", false)
	wantStatus(t, err, syscfg.StatusNameCollision)

	result, err := d.Rename("mod2", "Thermocouples", true)
	if err != nil {
		t.Fatalf("Rename(overwrite) error = %v", err)
	}
	if !result.NameExisted || result.Overwritten != "Mod1" {
		t.Errorf("Rename(overwrite) = %+v", result)
	}
	mod1, _ := d.Resource("mod1")
	mod2, _ := d.Resource("mod2")
	if mod1.Alias != "" || mod2.Alias != "Thermocouples" {
		t.Errorf("aliases after overwrite: mod1=%q mod2=%q", mod1.Alias, mod2.Alias)
	}

	_, err = d.Rename("mod3", "Mod1", true)
	wantStatus(t, err, syscfg.StatusNameCollision)

	_, err = d.Rename("mod3", " padded", false)
	wantStatus(t, err, syscfg.StatusInvalidArg)

	_, err = d.Rename(SystemResourceID, "controller", false)
	wantStatus(t, err, syscfg.StatusNotImplemented)
}

func TestSelfTest(t *testing.T) {
	p := DefaultProfile()
	p.Modules[1].SelfTest = SelfTestFail
	d, err := New(p, Options{HostCheck: func(ctx context.Context) error { return nil }})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.Close()

	tests := []struct {
		id       string
		expected syscfg.Status
	}{
		{SystemResourceID, syscfg.StatusOK},
		{"mod1", syscfg.StatusOK},
		{"mod2", syscfg.StatusSelfTestFailed},
		{"mod3", syscfg.StatusNotImplemented},
		{"mod4", syscfg.StatusNotImplemented},
		{"asrl1", syscfg.StatusNotImplemented},
		{"mod7", syscfg.StatusResourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := d.SelfTest(context.Background(), tt.id)
			if tt.expected == syscfg.StatusOK {
				if err != nil {
					t.Errorf("SelfTest() error = %v", err)
				}
				return
			}
			wantStatus(t, err, tt.expected)
		})
	}
}

func TestSystemSelfTestHostFailure(t *testing.T) {
	d := newTestDevice(t, Options{HostCheck: func(ctx context.Context) error {
		return errors.New("disk full")
	}})
	wantStatus(t, d.SelfTest(context.Background(), SystemResourceID), syscfg.StatusSelfTestFailed)
}

func TestFirmwareUpdate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	d := newTestDevice(t, Options{FirmwareDuration: time.Hour, Now: clock.Now})

	progress, err := d.StartFirmwareUpdate(SystemResourceID, []byte("RTFW 9.1.0\npayload"))
	if err != nil {
		t.Fatalf("StartFirmwareUpdate() error = %v", err)
	}
	if progress.State != syscfg.FirmwareUpdating || progress.Percent != 0 {
		t.Errorf("initial progress = %+v", progress)
	}

	_, err = d.StartFirmwareUpdate(SystemResourceID, []byte("RTFW 9.2.0\n"))
	wantStatus(t, err, syscfg.StatusBusy)
	wantStatus(t, d.Restart(), syscfg.StatusBusy)

	clock.Advance(30 * time.Minute)
	progress, _ = d.FirmwareStatus(SystemResourceID)
	if progress.State != syscfg.FirmwareUpdating || progress.Percent != 50 {
		t.Errorf("halfway progress = %+v", progress)
	}

	clock.Advance(30 * time.Minute)
	progress, _ = d.FirmwareStatus(SystemResourceID)
	if progress.State != syscfg.FirmwareComplete || !progress.RestartRequired {
		t.Errorf("final progress = %+v", progress)
	}
	if got := d.SystemInfo().FirmwareVersion; got != "9.1.0" {
		t.Errorf("FirmwareVersion = %q, want 9.1.0", got)
	}
}

func TestFirmwareRejected(t *testing.T) {
	d := newTestDevice(t, Options{})

	_, err := d.StartFirmwareUpdate(SystemResourceID, []byte("MZ not firmware"))
	wantStatus(t, err, syscfg.StatusFirmwareInvalid)

	_, err = d.StartFirmwareUpdate("mod1", []byte("RTFW 1.0\n"))
	wantStatus(t, err, syscfg.StatusNotImplemented)

	// A bad checksum is only detected once flashing finishes.
	progress, err := d.StartFirmwareUpdate(SystemResourceID, []byte("RTFW 9.1.0\nsha256 00ff\npayload"))
	if err != nil {
		t.Fatalf("StartFirmwareUpdate() error = %v", err)
	}
	if progress.State != syscfg.FirmwareFailed || progress.Code != syscfg.StatusFirmwareInvalid {
		t.Errorf("progress = %+v, want failed", progress)
	}
	if got := d.SystemInfo().FirmwareVersion; got != DefaultProfile().FirmwareVersion {
		t.Errorf("FirmwareVersion changed to %q after a failed update", got)
	}
}

func TestParseFirmware(t *testing.T) {
	fw, err := ParseFirmware([]byte("RTFW 9.1.0\nsha256 ABCD\nbody"))
	if err != nil {
		t.Fatalf("ParseFirmware() error = %v", err)
	}
	if fw.Version != "9.1.0" || fw.Checksum != "abcd" || string(fw.Payload) != "body" {
		t.Errorf("ParseFirmware() = %+v", fw)
	}

	for _, bad := range []string{"", "RTFW\n", "ELF 1.0\n", "RTFW 1 2\n"} {
		if _, err := ParseFirmware([]byte(bad)); err == nil {
			t.Errorf("ParseFirmware(%q) should fail", bad)
		}
	}
}

func TestImageRoundTrip(t *testing.T) {
	src := newTestDevice(t, Options{})
	if _, err := src.Rename("mod1", "Inputs", false); err != nil {
		t.Fatal(err)
	}
	files, err := src.CaptureImage()
	if err != nil {
		t.Fatalf("CaptureImage() error = %v", err)
	}

	p := DefaultProfile()
	p.Hostname = "other-target"
	p.Serial = "0ABCDEF0"
	p.Files = nil
	dst, err := New(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	if _, err := dst.ApplyImage(files, false); err != nil {
		t.Fatalf("ApplyImage() error = %v", err)
	}

	info := dst.SystemInfo()
	if info.Model != p.Model || info.SerialNumber != p.Serial {
		t.Errorf("model/serial changed: %s/%s", info.Model, info.SerialNumber)
	}
	if info.Hostname != "other-target" {
		t.Errorf("Hostname = %q, network settings should be preserved", info.Hostname)
	}
	mod1, _ := dst.Resource("mod1")
	if mod1.Alias != "Inputs" {
		t.Errorf("mod1 alias = %q, want Inputs", mod1.Alias)
	}
	if len(dst.Profile().Files) != len(DefaultProfile().Files) {
		t.Errorf("files = %v", dst.Profile().Files)
	}

	if _, err := dst.ApplyImage(files, true); err != nil {
		t.Fatal(err)
	}
	if got := dst.SystemInfo().Hostname; got != DefaultProfile().Hostname {
		t.Errorf("Hostname = %q after network reset", got)
	}
}

func TestApplyImageIncompatible(t *testing.T) {
	src := newTestDevice(t, Options{})
	files, _ := src.CaptureImage()

	p := DefaultProfile()
	p.Model = "cRIO-9049"
	dst, _ := New(p, Options{})
	defer dst.Close()

	_, err := dst.ApplyImage(files, false)
	wantStatus(t, err, syscfg.StatusImageIncompatible)

	_, err = dst.ApplyImage(map[string][]byte{"files/a": []byte("x")}, false)
	wantStatus(t, err, syscfg.StatusImageIncompatible)
}

func TestRestart(t *testing.T) {
	d := newTestDevice(t, Options{RestartDelay: 20 * time.Millisecond})

	rebooted := make(chan struct{}, 1)
	d.OnReboot(func() { rebooted <- struct{}{} })

	if err := d.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	select {
	case <-rebooted:
	default:
		t.Error("reboot hook was not called")
	}
	if d.State() != StateRestarting {
		t.Errorf("State() = %s, want restarting", d.State())
	}
	wantStatus(t, d.Authenticate("admin", ""), syscfg.StatusSystemNotFound)

	deadline := time.Now().Add(2 * time.Second)
	for d.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("target did not come back")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFormat(t *testing.T) {
	d := newTestDevice(t, Options{})
	if _, err := d.Rename("mod1", "Inputs", false); err != nil {
		t.Fatal(err)
	}
	if err := d.Format(); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("format did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	p := d.Profile()
	if len(p.Files) != 0 || p.Modules[0].Alias != "" {
		t.Errorf("profile not reset by format: %+v", p)
	}
	if p.Hostname != DefaultProfile().Hostname {
		t.Errorf("format changed hostname to %q", p.Hostname)
	}
}

func TestAuthenticate(t *testing.T) {
	p := DefaultProfile()
	p.Password = "secret"
	d, _ := New(p, Options{})
	defer d.Close()

	if err := d.Authenticate("admin", "secret"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
	wantStatus(t, d.Authenticate("admin", "wrong"), syscfg.StatusAccessDenied)
	wantStatus(t, d.Authenticate("", ""), syscfg.StatusAccessDenied)
}

func TestProfilePersistence(t *testing.T) {
	dir := t.TempDir()
	p, path, err := LoadOrCreateProfile(dir, DefaultProfile())
	if err != nil {
		t.Fatalf("LoadOrCreateProfile() error = %v", err)
	}
	if path != filepath.Join(dir, ProfileFileName) {
		t.Errorf("path = %q", path)
	}

	d, err := New(p, Options{ProfilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	changed := make(chan Profile, 1)
	d.OnChange(func(p Profile) { changed <- p })

	if _, err := d.ApplySystemChanges(map[syscfg.SystemProperty]string{syscfg.SysHostname: "persisted"}); err != nil {
		t.Fatal(err)
	}
	if got := <-changed; got.Hostname != "persisted" {
		t.Errorf("change hook saw hostname %q", got.Hostname)
	}

	reloaded, _, err := LoadOrCreateProfile(dir, DefaultProfile())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Hostname != "persisted" {
		t.Errorf("reloaded hostname = %q", reloaded.Hostname)
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"no model", func(p *Profile) { p.Model = "" }},
		{"no serial", func(p *Profile) { p.Serial = "" }},
		{"no hostname", func(p *Profile) { p.Hostname = "" }},
		{"slot zero", func(p *Profile) { p.Modules[0].Slot = 0 }},
		{"duplicate slot", func(p *Profile) { p.Modules[1].Slot = 1 }},
		{"bad mode", func(p *Profile) { p.Modules[0].Mode = "warp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}
