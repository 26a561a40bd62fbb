// Package resources gathers facts about the host an rtconfigd target runs on.
//
// A simulated controller reports some of its system properties (OS name, boot
// time, MAC address) from the real host, and the self-test of its "system"
// resource is a health check of that host: memory must be available and the
// data directory's disk must not be full.
//
// DATA COLLECTION STRATEGY:
// gopsutil provides system-level facts. When a source fails the fact is left
// at its zero value and the failure is logged, so a partial snapshot is still
// usable for reporting. Check is stricter and treats missing memory or disk
// data as a failed self-test.
package resources

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// MaxDiskUsage is the disk usage percentage at which the self-test fails.
const MaxDiskUsage = 98.0

// HostFacts is a snapshot of the host.
type HostFacts struct {
	Timestamp time.Time `json:"timestamp"`

	Hostname        string    `json:"hostname"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platformVersion"`
	KernelVersion   string    `json:"kernelVersion"`
	BootTime        time.Time `json:"bootTime"`
	CPUCores        int       `json:"cpuCores"`

	// Memory Information (in bytes)
	MemoryTotal     uint64  `json:"memoryTotal"`
	MemoryAvailable uint64  `json:"memoryAvailable"`
	MemoryUsage     float64 `json:"memoryUsage"`

	// Disk holding the target's data directory
	DiskPath  string  `json:"diskPath"`
	DiskTotal uint64  `json:"diskTotal"`
	DiskFree  uint64  `json:"diskFree"`
	DiskUsage float64 `json:"diskUsage"`

	Load1 float64 `json:"load1"`

	// MACAddress is the first non-loopback hardware address, if any.
	MACAddress string `json:"macAddress"`
}

// OSName is the platform and version in one string, e.g. "ubuntu 22.04".
func (f *HostFacts) OSName() string {
	if f.Platform == "" {
		return runtime.GOOS
	}
	if f.PlatformVersion == "" {
		return f.Platform
	}
	return f.Platform + " " + f.PlatformVersion
}

// GatherHostFacts collects a snapshot. diskPath selects which filesystem's
// usage is reported; it is normally the target's data directory.
func GatherHostFacts(ctx context.Context, diskPath string) *HostFacts {
	facts := &HostFacts{
		Timestamp: time.Now(),
		CPUCores:  runtime.NumCPU(),
		DiskPath:  diskPath,
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		logging.Debug("Failed to get host info: %v", err)
	} else {
		facts.Hostname = info.Hostname
		facts.Platform = info.Platform
		facts.PlatformVersion = info.PlatformVersion
		facts.KernelVersion = info.KernelVersion
		facts.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logging.Debug("Failed to get system memory stats: %v", err)
	} else {
		facts.MemoryTotal = vm.Total
		facts.MemoryAvailable = vm.Available
		facts.MemoryUsage = vm.UsedPercent
	}

	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
			logging.Debug("Failed to get disk usage for %s: %v", diskPath, err)
		} else {
			facts.DiskTotal = usage.Total
			facts.DiskFree = usage.Free
			facts.DiskUsage = usage.UsedPercent
		}
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		facts.Load1 = avg.Load1
	}

	facts.MACAddress = firstHardwareAddr(ctx)

	logging.Debug("Gathered host facts: platform=%s memory=%s disk free=%s",
		facts.OSName(), humanize.IBytes(facts.MemoryTotal), humanize.IBytes(facts.DiskFree))

	return facts
}

func firstHardwareAddr(ctx context.Context) string {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.HardwareAddr == "" {
			continue
		}
		loopback := false
		for _, flag := range iface.Flags {
			if flag == "loopback" {
				loopback = true
				break
			}
		}
		if !loopback {
			return iface.HardwareAddr
		}
	}
	return ""
}

// Check is the self-test of the host. It fails when memory information is
// unavailable or exhausted, or when the data disk is nearly full.
func Check(f *HostFacts) error {
	if f.MemoryTotal == 0 {
		return fmt.Errorf("memory information unavailable")
	}
	if f.MemoryAvailable == 0 {
		return fmt.Errorf("no memory available (%s total)", humanize.IBytes(f.MemoryTotal))
	}
	if f.DiskPath != "" {
		if f.DiskTotal == 0 {
			return fmt.Errorf("disk information unavailable for %s", f.DiskPath)
		}
		if f.DiskUsage >= MaxDiskUsage {
			return fmt.Errorf("disk holding %s is %.1f%% full (%s free)",
				f.DiskPath, f.DiskUsage, humanize.IBytes(f.DiskFree))
		}
	}
	return nil
}
