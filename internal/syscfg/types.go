package syscfg

import (
	"fmt"
	"strconv"
	"time"
)

// SystemProperty names a system-level property that can be staged on a
// session and committed with Session.SaveChanges.
type SystemProperty string

const (
	SysHostname   SystemProperty = "hostname"
	SysIPAddress  SystemProperty = "ipAddress"
	SysIPMode     SystemProperty = "ipAddressMode"
	SysSubnetMask SystemProperty = "subnetMask"
	SysComment    SystemProperty = "comment"
)

// WritableSystemProperties lists the system properties a session may stage.
var WritableSystemProperties = map[SystemProperty]bool{
	SysHostname:   true,
	SysIPAddress:  true,
	SysIPMode:     true,
	SysSubnetMask: true,
	SysComment:    true,
}

// IPMode values for SysIPMode.
const (
	IPModeDHCP      = "dhcp"
	IPModeStatic    = "static"
	IPModeLinkLocal = "link-local"
)

// Property names a hardware resource property. Properties are used both as
// filter criteria and as staged resource settings.
type Property string

const (
	PropSlotNumber             Property = "slotNumber"
	PropResourceName           Property = "resourceName"
	PropAlias                  Property = "alias"
	PropProductName            Property = "productName"
	PropSerialNumber           Property = "serialNumber"
	PropBusType                Property = "busType"
	PropProgramMode            Property = "programMode"
	PropSupportsFirmwareUpdate Property = "supportsFirmwareUpdate"
)

// FilterProperties lists every property accepted in a hardware filter.
var FilterProperties = map[Property]bool{
	PropSlotNumber:             true,
	PropResourceName:           true,
	PropAlias:                  true,
	PropProductName:            true,
	PropSerialNumber:           true,
	PropBusType:                true,
	PropProgramMode:            true,
	PropSupportsFirmwareUpdate: true,
}

// WritableResourceProperties lists the resource properties a caller may stage.
// Aliases are changed through Resource.Rename instead.
var WritableResourceProperties = map[Property]bool{
	PropProgramMode: true,
}

// ProgramMode is how a C Series module is programmed.
type ProgramMode string

const (
	ProgramModeNone         ProgramMode = "none"
	ProgramModeRealtimeScan ProgramMode = "realtime-scan"
	ProgramModeLabVIEWFPGA  ProgramMode = "labview-fpga"
	ProgramModeRealtimeCPU  ProgramMode = "realtime-cpu"
)

// Valid reports whether m is a known mode.
func (m ProgramMode) Valid() bool {
	switch m {
	case ProgramModeNone, ProgramModeRealtimeScan, ProgramModeLabVIEWFPGA, ProgramModeRealtimeCPU:
		return true
	}
	return false
}

// Bus types reported in PropBusType.
const (
	BusCompactRIO = "compactrio"
	BusSerial     = "serial"
	BusNone       = "none"
)

// SystemResourceName is the expert name of the controller itself.
const SystemResourceName = "system"

// NameFormat selects how discovered systems are named by a SystemEnumerator.
type NameFormat int

const (
	NameHostname NameFormat = iota
	NameIPAddress
)

// SystemInfo is the read-only view of a target's system properties.
type SystemInfo struct {
	Hostname        string    `json:"hostname"`
	IPAddress       string    `json:"ipAddress"`
	IPMode          string    `json:"ipAddressMode"`
	SubnetMask      string    `json:"subnetMask"`
	MACAddress      string    `json:"macAddress"`
	Model           string    `json:"model"`
	SerialNumber    string    `json:"serialNumber"`
	FirmwareVersion string    `json:"firmwareVersion"`
	Comment         string    `json:"comment,omitempty"`
	OSName          string    `json:"osName,omitempty"`
	BootTime        time.Time `json:"bootTime"`
}

// ResourceInfo describes one hardware resource.
type ResourceInfo struct {
	ID                     string      `json:"id"`
	ResourceName           string      `json:"resourceName"`
	Alias                  string      `json:"alias,omitempty"`
	ProductName            string      `json:"productName"`
	SerialNumber           string      `json:"serialNumber,omitempty"`
	SlotNumber             *int        `json:"slotNumber,omitempty"`
	BusType                string      `json:"busType"`
	ProgramMode            ProgramMode `json:"programMode,omitempty"`
	SupportsFirmwareUpdate bool        `json:"supportsFirmwareUpdate"`
	SupportsSelfTest       bool        `json:"supportsSelfTest"`
	FirmwareVersion        string      `json:"firmwareVersion,omitempty"`
}

// DisplayName is the alias when one is set, otherwise the expert name.
func (r ResourceInfo) DisplayName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.ResourceName
}

// Property returns the string form of p and whether the resource has it.
func (r ResourceInfo) Property(p Property) (string, bool) {
	switch p {
	case PropSlotNumber:
		if r.SlotNumber == nil {
			return "", false
		}
		return strconv.Itoa(*r.SlotNumber), true
	case PropResourceName:
		return r.ResourceName, r.ResourceName != ""
	case PropAlias:
		return r.Alias, r.Alias != ""
	case PropProductName:
		return r.ProductName, r.ProductName != ""
	case PropSerialNumber:
		return r.SerialNumber, r.SerialNumber != ""
	case PropBusType:
		return r.BusType, r.BusType != "" && r.BusType != BusNone
	case PropProgramMode:
		return string(r.ProgramMode), r.ProgramMode != ""
	case PropSupportsFirmwareUpdate:
		return strconv.FormatBool(r.SupportsFirmwareUpdate), true
	}
	return "", false
}

// Slot returns the slot number, or -1 for resources without one.
func (r ResourceInfo) Slot() int {
	if r.SlotNumber == nil {
		return -1
	}
	return *r.SlotNumber
}

// SaveResult reports the outcome of committing staged changes.
type SaveResult struct {
	RestartRequired bool `json:"restartRequired"`
}

// RenameOptions controls Resource.Rename.
type RenameOptions struct {
	// Overwrite takes the name from another resource that already uses it.
	Overwrite bool
}

// RenameResult reports what a rename did.
type RenameResult struct {
	NameExisted bool   `json:"nameExisted"`
	Overwritten string `json:"overwritten,omitempty"`
}

// FirmwareState is the state of a firmware update on a resource.
type FirmwareState string

const (
	FirmwareIdle     FirmwareState = "idle"
	FirmwareUpdating FirmwareState = "updating"
	FirmwareComplete FirmwareState = "complete"
	FirmwareFailed   FirmwareState = "failed"
)

// Terminal reports whether no further progress will be made.
func (s FirmwareState) Terminal() bool {
	return s == FirmwareIdle || s == FirmwareComplete || s == FirmwareFailed
}

// FirmwareProgress is a snapshot of a firmware update.
type FirmwareProgress struct {
	State           FirmwareState `json:"state"`
	Percent         int           `json:"percent"`
	Detail          string        `json:"detail"`
	Version         string        `json:"version,omitempty"`
	Code            Status        `json:"code,omitempty"`
	RestartRequired bool          `json:"restartRequired"`
}

// FirmwareOptions controls Resource.UpgradeFirmware.
type FirmwareOptions struct {
	// Wait polls until the update reaches a terminal state.
	Wait bool
	// OnProgress, when set, is called for every distinct progress snapshot.
	OnProgress func(FirmwareProgress)
}

// SessionOptions controls Service.OpenSession.
type SessionOptions struct {
	User     string
	Password string
	// Timeout bounds session establishment; zero uses the client default.
	Timeout time.Duration
}

// FindOptions controls Service.FindSystems.
type FindOptions struct {
	Format  NameFormat
	Timeout time.Duration
}

// RestartResult reports the address the target came back on.
type RestartResult struct {
	IPAddress string
}

// ImageOptions controls Session.SetImage.
type ImageOptions struct {
	// ResetNetwork applies the image's network settings too. By default the
	// primary interface settings are kept and the rest are reset.
	ResetNetwork bool
}

// ImageInfo summarizes a captured image.
type ImageInfo struct {
	Bytes int64
}

// DiscoveredSystem is one target known to the discovery service.
type DiscoveredSystem struct {
	Hostname     string `json:"hostname"`
	IPAddress    string `json:"ipAddress"`
	APIAddress   string `json:"apiAddress"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	Status       string `json:"status"`
}

// Name returns the system's name in the requested format.
func (d DiscoveredSystem) Name(format NameFormat) string {
	if format == NameIPAddress || d.Hostname == "" {
		return d.IPAddress
	}
	return d.Hostname
}

// ParseProgramMode converts a wire value into a ProgramMode.
func ParseProgramMode(s string) (ProgramMode, error) {
	m := ProgramMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown program mode %q", s)
	}
	return m, nil
}
