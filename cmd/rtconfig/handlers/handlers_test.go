package handlers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/concave-dev/rtconfig/internal/testutil"
)

// harness runs rtconfig command lines against a test fleet.
type harness struct {
	t     *testing.T
	fleet *testutil.Fleet
	dir   string
}

func newHarness(t *testing.T, profiles ...target.Profile) *harness {
	t.Helper()
	if len(profiles) == 0 {
		profiles = []target.Profile{testutil.Profile(0)}
	}
	return &harness{
		t:     t,
		fleet: testutil.NewFleet(t, testutil.DefaultOptions(), profiles...),
		dir:   t.TempDir(),
	}
}

func (h *harness) target(i int) *testutil.Target {
	return h.fleet.Targets[i]
}

// run executes args and returns the exit status and output. Every session
// a command opens must be closed by the time it returns.
func (h *harness) run(args ...string) (int, string) {
	h.t.Helper()

	registry, err := NewRegistry()
	if err != nil {
		h.t.Fatalf("NewRegistry() error = %v", err)
	}
	var out bytes.Buffer
	d := &commands.Dispatcher{
		Registry: registry,
		Out:      &out,
		NewService: func() syscfg.Service {
			return syscfg.NewClient(syscfg.ClientOptions{
				DiscoveryAddr:        h.fleet.Addr(),
				SessionTimeout:       2 * time.Second,
				RestartTimeout:       5 * time.Second,
				FormatTimeout:        5 * time.Second,
				RestartPollInterval:  20 * time.Millisecond,
				FirmwarePollInterval: 20 * time.Millisecond,
				RequestTimeout:       5 * time.Second,
			})
		},
		Getwd: func() (string, error) { return h.dir, nil },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	code := d.Run(ctx, args)

	for _, tgt := range h.fleet.Targets {
		tgt.WaitRunning(h.t, 5*time.Second)
		if n := tgt.SessionCount(); n != 0 {
			h.t.Errorf("%v left %d sessions open on %s", args, n, tgt.Addr)
		}
	}
	return code, out.String()
}

func expectContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestFindAll(t *testing.T) {
	h := newHarness(t, testutil.Profile(0), testutil.Profile(1))

	code, out := h.run("find")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out,
		"Finding Available Targets...",
		"HOSTNAME",
		testutil.Profile(0).Hostname,
		testutil.Profile(1).Hostname,
		"127.0.0.2",
	)
}

func TestFindOne(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("find", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	if strings.Contains(out, "Finding") {
		t.Error("single target lookup printed the discovery banner")
	}
	expectContains(t, out, testutil.Profile(0).Serial, "cRIO-9045")
}

func TestFindNotFound(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("find", "127.0.0.1:1", "--timeout", "500ms")
	if code != int(syscfg.StatusSystemNotFound) && code != int(syscfg.StatusTimeout) {
		t.Errorf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Target Not Found\n", "Error: ")
}

func TestFindNotFoundJSON(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("find", "127.0.0.1:1", "--timeout", "500ms", "-o", "json")
	if code == commands.ExitOK {
		t.Errorf("exit = %d, want a service status", code)
	}
	if strings.Contains(out, "Target Not Found") {
		t.Errorf("table message printed in JSON mode:\n%s", out)
	}
}

func TestFindSerial(t *testing.T) {
	h := newHarness(t, testutil.Profile(0), testutil.Profile(1))

	code, out := h.run("findsn", testutil.Profile(1).Serial)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	if out != "127.0.0.2\n" {
		t.Errorf("output = %q, want the IP address only", out)
	}

	code, out = h.run("findsn", "DEADBEEF")
	if code != int(syscfg.StatusSystemNotFound) {
		t.Errorf("exit = %d, want %d", code, syscfg.StatusSystemNotFound)
	}
	expectContains(t, out, "Target With SN DEADBEEF Not Found", "Error: 13")
}

func TestSetHostname(t *testing.T) {
	h := newHarness(t)
	old := testutil.Profile(0).Hostname

	code, out := h.run("sethostname", h.target(0).Addr, "line-3-crio")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Hostname Updated: "+old+" -> line-3-crio")
	if got := h.target(0).Device.Profile().Hostname; got != "line-3-crio" {
		t.Errorf("hostname = %q", got)
	}
}

func TestSetIP(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setip", h.target(0).Addr, "10.1.2.3", "255.255.0.0")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "IP Address Updated", "Subnet Mask Updated")

	p := h.target(0).Device.Profile()
	if p.IPAddress != "10.1.2.3" || p.SubnetMask != "255.255.0.0" || p.IPMode != syscfg.IPModeStatic {
		t.Errorf("network = %s %s %s", p.IPAddress, p.SubnetMask, p.IPMode)
	}
}

func TestSetIPInvalid(t *testing.T) {
	h := newHarness(t)
	before := h.target(0).Device.Profile()

	code, out := h.run("setip", h.target(0).Addr, "10.1.2.300")
	if code != int(syscfg.StatusInvalidArg) {
		t.Errorf("exit = %d, want %d, output:\n%s", code, syscfg.StatusInvalidArg, out)
	}
	expectContains(t, out, "Error: 11\n", syscfg.StatusInvalidArg.Description())

	after := h.target(0).Device.Profile()
	if after.IPAddress != before.IPAddress || after.IPMode != before.IPMode {
		t.Error("a rejected save changed the network settings")
	}
}

func TestRestart(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("restart", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Restarting...\n", "Restarted With IP Address: 127.0.0.1")
}

func TestFormat(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setalias", h.target(0).Addr, "1", "Inputs")
	if code != commands.ExitOK {
		t.Fatalf("setalias exit = %d, output:\n%s", code, out)
	}

	code, out = h.run("format", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Formatting...\n", "Format Complete\n")

	p := h.target(0).Device.Profile()
	if len(p.Files) != 0 {
		t.Errorf("files survived format: %v", p.Files)
	}
	if p.Modules[0].Alias != "" {
		t.Errorf("alias survived format: %q", p.Modules[0].Alias)
	}
	if p.IPAddress != testutil.Profile(0).IPAddress {
		t.Error("format changed the network settings")
	}
}

func TestImageRoundTrip(t *testing.T) {
	h := newHarness(t, testutil.Profile(0), testutil.Profile(1))
	source, dest := h.target(0), h.target(1)

	if code, out := h.run("setalias", source.Addr, "2", "Outputs"); code != commands.ExitOK {
		t.Fatalf("setalias exit = %d, output:\n%s", code, out)
	}

	code, out := h.run("getimage", source.Addr)
	if code != commands.ExitOK {
		t.Fatalf("getimage exit = %d, output:\n%s", code, out)
	}
	folder := filepath.Join(h.dir, testutil.Profile(0).Hostname)
	expectContains(t, out, "Getting Image: "+source.Addr, `Saving To: "`+folder+`"`)
	if _, err := os.Stat(filepath.Join(folder, target.ManifestName)); err != nil {
		t.Fatalf("image manifest not saved: %v", err)
	}

	code, out = h.run("setimage", dest.Addr, folder)
	if code != commands.ExitOK {
		t.Fatalf("setimage exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Imaging Target: "+dest.Addr, "Image Used: "+folder)

	got := dest.Device.Profile()
	if got.Modules[1].Alias != "Outputs" {
		t.Errorf("alias not applied: %q", got.Modules[1].Alias)
	}
	want := testutil.Profile(1)
	if got.Serial != want.Serial || got.Hostname != want.Hostname || got.IPAddress != want.IPAddress {
		t.Errorf("identity or network changed: %s %s %s", got.Serial, got.Hostname, got.IPAddress)
	}
	if len(got.Files) != len(source.Device.Profile().Files) {
		t.Errorf("files = %d, want %d", len(got.Files), len(source.Device.Profile().Files))
	}
}

func TestSetImageMissingFolder(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setimage", h.target(0).Addr, filepath.Join(h.dir, "missing"))
	if code != int(syscfg.StatusFileNotFound) {
		t.Errorf("exit = %d, want %d, output:\n%s", code, syscfg.StatusFileNotFound, out)
	}
}

func TestSelfTest(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("selftest", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Running Self Tests...", "RESOURCE NAME", "system", "Mod1", "Mod3", "Empty Slot")

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "Mod1 "), strings.HasPrefix(line, "system "):
			if !strings.Contains(line, "Pass") {
				t.Errorf("row %q should pass", line)
			}
		case strings.HasPrefix(line, "Mod3 "), strings.HasPrefix(line, "Mod4 "):
			if !strings.Contains(line, "Not Supported") {
				t.Errorf("row %q should be Not Supported", line)
			}
		}
	}
}

func TestSelfTestFailureIsInline(t *testing.T) {
	p := testutil.Profile(0)
	p.Modules[1].SelfTest = target.SelfTestFail
	h := newHarness(t, p)

	code, out := h.run("selftest", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Error: 23", "hardware fault")
}

func TestListHardware(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("listhw", h.target(0).Addr)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "SLOT", "cRIO-9045", "NI 9205", "NI 9263", "NI 9401")
	if strings.Contains(out, "Empty Slot") {
		t.Error("empty slot listed")
	}
	if strings.Contains(out, "Serial Port") {
		t.Error("unslotted resource listed")
	}
}

func TestListHardwareJSON(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("listhw", h.target(0).Addr, "-o", "json")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	if !strings.HasPrefix(out, "[") || strings.Contains(out, "SLOT") {
		t.Errorf("output is not JSON:\n%s", out)
	}
	expectContains(t, out, `"serialNumber": "`+testutil.Profile(0).Serial+`"`)
}

func TestSetMode(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setmode", h.target(0).Addr, "fpga")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Setting Module Mode: Mod1 (NI 9205)", "Setting Module Mode: Mod3 (NI 9401)")
	if strings.Contains(out, "Mod4") {
		t.Error("empty slot visited")
	}

	for _, m := range h.target(0).Device.Profile().Modules {
		if m.Product != "" && m.Mode != syscfg.ProgramModeLabVIEWFPGA {
			t.Errorf("slot %d mode = %s", m.Slot, m.Mode)
		}
	}
}

func TestSetModeInvalid(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setmode", h.target(0).Addr, "turbo")
	if code != commands.ExitUsage {
		t.Errorf("exit = %d, want %d", code, commands.ExitUsage)
	}
	expectContains(t, out, `Programming mode "turbo" invalid`)
	if h.target(0).Server.Sessions().Opened() != 0 {
		t.Error("a session was opened for an invalid mode")
	}
}

func TestSetAlias(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setalias", h.target(0).Addr, "1", "Inputs")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Alias Of Slot 1 Set To Inputs")

	// Taking the alias for another slot moves it
	if code, out := h.run("setalias", h.target(0).Addr, "2", "Inputs"); code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	p := h.target(0).Device.Profile()
	if p.Modules[0].Alias != "" || p.Modules[1].Alias != "Inputs" {
		t.Errorf("aliases = %q %q", p.Modules[0].Alias, p.Modules[1].Alias)
	}
}

func TestSetAliasErrors(t *testing.T) {
	h := newHarness(t)

	code, out := h.run("setalias", h.target(0).Addr, "one", "Inputs")
	if code != commands.ExitUsage {
		t.Errorf("bad slot exit = %d, want %d", code, commands.ExitUsage)
	}
	expectContains(t, out, `Slot "one" invalid`)

	// Slot 0 is the controller, which is not a module
	for _, slot := range []string{"9", "0"} {
		code, out = h.run("setalias", h.target(0).Addr, slot, "Inputs")
		if code != int(syscfg.StatusResourceNotFound) {
			t.Errorf("slot %s exit = %d, want %d, output:\n%s", slot, code, syscfg.StatusResourceNotFound, out)
		}
		expectContains(t, out, "Error: 15\n")
	}
	for _, m := range h.target(0).Device.Profile().Modules {
		if m.Alias != "" {
			t.Errorf("slot %d alias = %q", m.Slot, m.Alias)
		}
	}
}

func writeFirmware(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "firmware.cfg")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write firmware: %v", err)
	}
	return path
}

func TestUpdateFirmware(t *testing.T) {
	h := newHarness(t)
	path := writeFirmware(t, h.dir, "RTFW 9.1.0\npayload\n")

	code, out := h.run("updatefirmware", h.target(0).Addr, path, "-v")
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out,
		"Updating Firmware...\n",
		"Firmware: "+path,
		"Firmware Status: complete",
		"Restart Required",
	)
	if got := h.target(0).Device.Profile().FirmwareVersion; got != "9.1.0" {
		t.Errorf("firmware version = %s", got)
	}
}

func TestUpdateFirmwareInvalid(t *testing.T) {
	h := newHarness(t)
	before := h.target(0).Device.Profile().FirmwareVersion
	path := writeFirmware(t, h.dir, "not firmware\n")

	code, out := h.run("updatefirmware", h.target(0).Addr, path)
	if code != int(syscfg.StatusFirmwareInvalid) {
		t.Errorf("exit = %d, want %d, output:\n%s", code, syscfg.StatusFirmwareInvalid, out)
	}
	if got := h.target(0).Device.Profile().FirmwareVersion; got != before {
		t.Errorf("firmware version changed to %s", got)
	}
}

func TestUpdateFirmwareNoWait(t *testing.T) {
	h := newHarness(t)
	path := writeFirmware(t, h.dir, "RTFW 9.2.0\n")

	code, out := h.run("updatefirmware", "--no-wait", h.target(0).Addr, path)
	if code != commands.ExitOK {
		t.Fatalf("exit = %d, output:\n%s", code, out)
	}
	expectContains(t, out, "Firmware Status: updating")
}

func TestEntries(t *testing.T) {
	want := []string{
		"find", "setimage", "getimage", "selftest", "sethostname", "setip", "restart",
		"updatefirmware", "findsn", "setmode", "listhw", "format", "setalias",
	}
	entries := Entries()
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Name, want[i])
		}
		if !strings.HasPrefix(e.Usage, e.Name) {
			t.Errorf("%s usage %q does not start with the command name", e.Name, e.Usage)
		}
	}
}
