package resources

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

// TestGatherHostFacts tests the core fact gathering logic
func TestGatherHostFacts(t *testing.T) {
	dir := t.TempDir()
	facts := GatherHostFacts(context.Background(), dir)

	if time.Since(facts.Timestamp) > time.Minute {
		t.Error("GatherHostFacts().Timestamp should be recent")
	}

	if facts.CPUCores != runtime.NumCPU() {
		t.Errorf("GatherHostFacts().CPUCores = %d, want %d", facts.CPUCores, runtime.NumCPU())
	}

	if facts.DiskPath != dir {
		t.Errorf("GatherHostFacts().DiskPath = %q, want %q", facts.DiskPath, dir)
	}

	if facts.OSName() == "" {
		t.Error("OSName() should never be empty")
	}
}

func TestCheck(t *testing.T) {
	healthy := HostFacts{
		MemoryTotal:     8 << 30,
		MemoryAvailable: 4 << 30,
		DiskPath:        "/data",
		DiskTotal:       100 << 30,
		DiskFree:        50 << 30,
		DiskUsage:       50,
	}

	tests := []struct {
		name    string
		mutate  func(f *HostFacts)
		wantErr string
	}{
		{"healthy", func(f *HostFacts) {}, ""},
		{"no memory info", func(f *HostFacts) { f.MemoryTotal = 0 }, "memory information unavailable"},
		{"memory exhausted", func(f *HostFacts) { f.MemoryAvailable = 0 }, "no memory available"},
		{"no disk info", func(f *HostFacts) { f.DiskTotal = 0 }, "disk information unavailable"},
		{"disk full", func(f *HostFacts) { f.DiskUsage = 99.5 }, "99.5% full"},
		{"disk not checked", func(f *HostFacts) { f.DiskPath = ""; f.DiskTotal = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := healthy
			tt.mutate(&f)
			err := Check(&f)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Check() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Check() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestOSName(t *testing.T) {
	tests := []struct {
		facts    HostFacts
		expected string
	}{
		{HostFacts{Platform: "ubuntu", PlatformVersion: "22.04"}, "ubuntu 22.04"},
		{HostFacts{Platform: "nilrt"}, "nilrt"},
		{HostFacts{}, runtime.GOOS},
	}

	for _, tt := range tests {
		if got := tt.facts.OSName(); got != tt.expected {
			t.Errorf("OSName() = %q, want %q", got, tt.expected)
		}
	}
}
