// Package display formats rtconfig output.
//
// Tables use the fixed column widths operators and scripts already parse,
// so they are printed with explicit widths rather than a tab writer. Every
// table also has a JSON form for --output=json.
package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// Row layouts
const (
	systemRow   = "%-35s%-20s%-15s%s\n"
	selfTestRow = "%-40s%-20s%-15s%s\n"
	hardwareRow = "%-10s%-15s%s\n"
)

// Self-test outcomes
const (
	SelfTestPass         = "Pass"
	SelfTestNotSupported = "Not Supported"
)

// SelfTestResult is the outcome of one resource's self-test.
type SelfTestResult struct {
	Name     string `json:"name"`
	Product  string `json:"productName"`
	Result   string `json:"result"`
	Detail   string `json:"detail,omitempty"`
	Status   int    `json:"status"`
	Resource string `json:"resourceName"`
}

// HardwareEntry is one row of listhw.
type HardwareEntry struct {
	Slot   int    `json:"slot"`
	Module string `json:"module"`
	Alias  string `json:"alias,omitempty"`
	Serial string `json:"serialNumber"`
	Mode   string `json:"programMode,omitempty"`
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

// SystemsHeader prints the find table header.
func SystemsHeader(w io.Writer) {
	fmt.Fprintf(w, systemRow, "HOSTNAME", "IP ADDR", "MODEL", "SERIAL NUMBER")
}

// SystemRow prints one find row. Verbose adds firmware and uptime.
func SystemRow(w io.Writer, info syscfg.SystemInfo, verbose bool) {
	fmt.Fprintf(w, systemRow, info.Hostname, info.IPAddress, info.Model, info.SerialNumber)
	if verbose {
		fmt.Fprintf(w, "    Firmware %s, MAC %s, booted %s\n",
			info.FirmwareVersion, info.MACAddress, Since(info.BootTime))
	}
}

// Systems prints systems as a table or JSON.
func Systems(w io.Writer, systems []syscfg.SystemInfo, asJSON, verbose bool) error {
	if asJSON {
		if systems == nil {
			systems = []syscfg.SystemInfo{}
		}
		return JSON(w, systems)
	}
	SystemsHeader(w)
	for _, info := range systems {
		SystemRow(w, info, verbose)
	}
	return nil
}

// SelfTestHeader prints the selftest table header.
func SelfTestHeader(w io.Writer) {
	fmt.Fprintf(w, selfTestRow, "RESOURCE NAME", "PRODUCT NAME", "PASS/FAIL", "DETAILED RESULTS")
}

// SelfTestRow prints one selftest row.
func SelfTestRow(w io.Writer, r SelfTestResult) {
	fmt.Fprintf(w, selfTestRow, r.Name, r.Product, r.Result, r.Detail)
}

// ClassifySelfTest turns a self-test error into its table entry.
func ClassifySelfTest(info syscfg.ResourceInfo, err error) SelfTestResult {
	r := SelfTestResult{
		Name:     info.DisplayName(),
		Product:  info.ProductName,
		Resource: info.ResourceName,
		Result:   SelfTestPass,
	}
	if err == nil {
		return r
	}

	status, ok := syscfg.StatusOf(err)
	if !ok {
		status = syscfg.StatusServiceError
	}
	r.Status = int(status)
	if status == syscfg.StatusNotImplemented {
		r.Result = SelfTestNotSupported
		return r
	}
	r.Result = fmt.Sprintf("Error: %d", status)
	var svcErr *syscfg.Error
	if errors.As(err, &svcErr) {
		r.Detail = svcErr.Message
	} else {
		r.Detail = err.Error()
	}
	return r
}

// HardwareHeader prints the listhw table header.
func HardwareHeader(w io.Writer) {
	fmt.Fprintf(w, hardwareRow, "SLOT", "MODULE", "ALIAS")
}

// HardwareRow prints one listhw row.
func HardwareRow(w io.Writer, e HardwareEntry) {
	fmt.Fprintf(w, hardwareRow, fmt.Sprint(e.Slot), e.Module, e.Alias)
}

// NewHardwareEntry builds a listhw row from a resource.
func NewHardwareEntry(info syscfg.ResourceInfo) HardwareEntry {
	return HardwareEntry{
		Slot:   info.Slot(),
		Module: info.ProductName,
		Alias:  info.Alias,
		Serial: info.SerialNumber,
		Mode:   string(info.ProgramMode),
	}
}

// Hardware prints hardware rows as a table or JSON.
func Hardware(w io.Writer, entries []HardwareEntry, asJSON bool) error {
	if asJSON {
		return JSON(w, lo.Ternary(entries == nil, []HardwareEntry{}, entries))
	}
	HardwareHeader(w)
	for _, e := range entries {
		HardwareRow(w, e)
	}
	return nil
}

// Bytes formats a byte count for humans.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Since formats how long ago t was, or "unknown" for the zero time.
func Since(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}
