package target

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
)

// FirmwareMagic starts the first line of every firmware file.
const FirmwareMagic = "RTFW"

// Firmware is a parsed firmware file.
type Firmware struct {
	Version string
	// Checksum is the optional sha256 of the payload after the header.
	Checksum string
	Payload  []byte
}

// ParseFirmware reads a firmware file. The first line must be
// "RTFW <version>". An optional second line "sha256 <hex>" carries the
// checksum of everything after it, which is verified once flashing ends.
func ParseFirmware(data []byte) (Firmware, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	header, err := r.ReadString('\n')
	if err != nil && header == "" {
		return Firmware{}, fmt.Errorf("firmware file is empty")
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != FirmwareMagic {
		return Firmware{}, fmt.Errorf("not a firmware file: missing %q header", FirmwareMagic)
	}

	fw := Firmware{Version: fields[1]}
	rest := data[len(header):]
	line, after, found := bytes.Cut(rest, []byte("\n"))
	if f := strings.Fields(string(line)); len(f) == 2 && f[0] == "sha256" {
		fw.Checksum = strings.ToLower(f[1])
		rest = nil
		if found {
			rest = after
		}
	}
	fw.Payload = rest
	return fw, nil
}

// Verify checks the payload against the checksum, when there is one.
func (fw Firmware) Verify() error {
	if fw.Checksum == "" {
		return nil
	}
	sum := sha256.Sum256(fw.Payload)
	if hex.EncodeToString(sum[:]) != fw.Checksum {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}

// firmwareJob is the state of the last firmware update on the system
// resource.
type firmwareJob struct {
	progress syscfg.FirmwareProgress
	firmware Firmware
	started  time.Time
}

// StartFirmwareUpdate validates the file and begins flashing it. Progress is
// derived from elapsed time on every status read.
func (d *Device) StartFirmwareUpdate(id string, data []byte) (syscfg.FirmwareProgress, error) {
	const op = "upgrade firmware"

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireIdleLocked(op); err != nil {
		return syscfg.FirmwareProgress{}, err
	}
	if id != SystemResourceID {
		if _, ok := d.moduleIndexLocked(id); !ok && !d.isPortLocked(id) {
			return syscfg.FirmwareProgress{}, syscfg.Errorf(syscfg.StatusResourceNotFound, op, "no resource %q", id)
		}
		return syscfg.FirmwareProgress{}, syscfg.Errorf(syscfg.StatusNotImplemented, op, "%s does not support firmware updates", id)
	}

	fw, err := ParseFirmware(data)
	if err != nil {
		return syscfg.FirmwareProgress{}, syscfg.Errorf(syscfg.StatusFirmwareInvalid, op, "%v", err)
	}

	d.firmware = firmwareJob{
		firmware: fw,
		started:  d.opts.Now(),
		progress: syscfg.FirmwareProgress{
			State:   syscfg.FirmwareUpdating,
			Detail:  fmt.Sprintf("Installing firmware %s", fw.Version),
			Version: d.profile.FirmwareVersion,
		},
	}
	logging.Info("Firmware update to %s started (%d bytes)", fw.Version, len(data))

	// Completion is also driven by a timer so the profile is updated even
	// when nobody polls.
	d.scheduleLocked(d.opts.FirmwareDuration, func() {
		d.mu.Lock()
		d.advanceFirmwareLocked()
		d.mu.Unlock()
	})

	d.advanceFirmwareLocked()
	return d.firmware.progress, nil
}

// FirmwareStatus returns the progress of the last update of a resource.
func (d *Device) FirmwareStatus(id string) (syscfg.FirmwareProgress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id != SystemResourceID {
		if _, ok := d.moduleIndexLocked(id); !ok && !d.isPortLocked(id) {
			return syscfg.FirmwareProgress{}, syscfg.Errorf(syscfg.StatusResourceNotFound, "firmware status", "no resource %q", id)
		}
		return syscfg.FirmwareProgress{State: syscfg.FirmwareIdle, Detail: "Firmware updates are not supported"}, nil
	}

	d.advanceFirmwareLocked()
	if d.firmware.progress.State == "" {
		return syscfg.FirmwareProgress{
			State:   syscfg.FirmwareIdle,
			Detail:  "No firmware update has been run",
			Version: d.profile.FirmwareVersion,
		}, nil
	}
	return d.firmware.progress, nil
}

// advanceFirmwareLocked moves a running update forward to the current time
// and finishes it once FirmwareDuration has elapsed.
func (d *Device) advanceFirmwareLocked() {
	job := &d.firmware
	if job.progress.State != syscfg.FirmwareUpdating {
		return
	}

	elapsed := d.opts.Now().Sub(job.started)
	if d.opts.FirmwareDuration > 0 && elapsed < d.opts.FirmwareDuration {
		job.progress.Percent = int(elapsed * 100 / d.opts.FirmwareDuration)
		return
	}

	if err := job.firmware.Verify(); err != nil {
		job.progress = syscfg.FirmwareProgress{
			State:   syscfg.FirmwareFailed,
			Percent: 100,
			Detail:  fmt.Sprintf("Firmware %s failed verification: %v", job.firmware.Version, err),
			Version: d.profile.FirmwareVersion,
			Code:    syscfg.StatusFirmwareInvalid,
		}
		logging.Error("Firmware update to %s failed: %v", job.firmware.Version, err)
		return
	}

	previous := d.profile.FirmwareVersion
	d.profile.FirmwareVersion = job.firmware.Version
	d.persistLocked()
	job.progress = syscfg.FirmwareProgress{
		State:           syscfg.FirmwareComplete,
		Percent:         100,
		Detail:          fmt.Sprintf("Firmware updated from %s to %s", previous, job.firmware.Version),
		Version:         job.firmware.Version,
		RestartRequired: true,
	}
	logging.Success("Firmware updated from %s to %s", previous, job.firmware.Version)

	// Change hooks must not run under the lock.
	snapshot := d.profile.clone()
	hooks := append([]func(Profile){}, d.changeHooks...)
	go func() {
		for _, hook := range hooks {
			hook(snapshot)
		}
	}()
}

func (d *Device) isPortLocked(id string) bool {
	for _, port := range d.profile.Ports {
		if portID(port.Name) == id {
			return true
		}
	}
	return false
}
