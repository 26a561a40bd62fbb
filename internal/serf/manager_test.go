package serf

import (
	"net"
	"testing"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/hashicorp/serf/serf"
)

func testConfig() *ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.NodeName = "01F2A3B4"
	cfg.BindAddr = "127.0.0.1"
	cfg.BindPort = 0
	cfg.LogLevel = "ERROR"
	return cfg
}

// TestNewSerfManager tests SerfManager creation with valid configuration
func TestNewSerfManager(t *testing.T) {
	cfg := testConfig()
	cfg.Tags = map[string]string{TagHostname: "NI-cRIO-9045-01F2A3B4"}

	manager, err := NewSerfManager(cfg)
	if err != nil {
		t.Fatalf("NewSerfManager() error = %v", err)
	}

	if manager.NodeID == "" {
		t.Error("NodeID should not be empty")
	}
	if manager.NodeName != cfg.NodeName {
		t.Errorf("NodeName = %q, want %q", manager.NodeName, cfg.NodeName)
	}
	if manager.ConsumerEventCh == nil || manager.ingestEventQueue == nil {
		t.Error("event channels should be created")
	}
	if cap(manager.ingestEventQueue) != 2*cap(manager.ConsumerEventCh) {
		t.Errorf("ingest queue capacity = %d, want twice the consumer channel", cap(manager.ingestEventQueue))
	}
	if manager.tags[TagNodeID] != manager.NodeID {
		t.Errorf("node_id tag = %q, want %q", manager.tags[TagNodeID], manager.NodeID)
	}
	if manager.tags[TagHostname] != "NI-cRIO-9045-01F2A3B4" {
		t.Errorf("hostname tag = %q", manager.tags[TagHostname])
	}
}

// TestNewSerfManager_InvalidConfig tests SerfManager creation with invalid config
func TestNewSerfManager_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NodeName = ""

	manager, err := NewSerfManager(cfg)
	if err == nil {
		t.Error("NewSerfManager() with invalid config should return error")
	}
	if manager != nil {
		t.Error("NewSerfManager() with invalid config should return nil manager")
	}

	// nil falls back to the defaults, which have no node name
	if _, err := NewSerfManager(nil); err == nil {
		t.Error("NewSerfManager(nil) should fail without a node name")
	}
}

// TestUpdateTagsBeforeStart tests that tags can be replaced before Serf runs
func TestUpdateTagsBeforeStart(t *testing.T) {
	manager, err := NewSerfManager(testConfig())
	if err != nil {
		t.Fatalf("NewSerfManager() error = %v", err)
	}

	if err := manager.UpdateTags(map[string]string{TagHostname: "renamed"}); err != nil {
		t.Fatalf("UpdateTags() error = %v", err)
	}
	if manager.tags[TagHostname] != "renamed" || manager.tags[TagNodeID] != manager.NodeID {
		t.Errorf("tags = %v", manager.tags)
	}

	if err := manager.UpdateTags(map[string]string{TagNodeID: "spoofed"}); err == nil {
		t.Error("UpdateTags() should reject the reserved node_id tag")
	}
}

// TestTargetNodeSystem tests conversion of gossip tags into a discovered system
func TestTargetNodeSystem(t *testing.T) {
	tests := []struct {
		name    string
		apiAddr string
		want    string
	}{
		{"explicit address", "10.0.0.5:8640", "10.0.0.5:8640"},
		{"wildcard uses gossip address", "0.0.0.0:8640", "192.168.1.20:8640"},
		{"empty host uses gossip address", ":8641", "192.168.1.20:8641"},
		{"missing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TargetNode{
				Addr:   net.ParseIP("192.168.1.20"),
				Status: serf.StatusAlive,
				Tags: map[string]string{
					TagHostname: "crio-a",
					TagIP:       "192.168.1.20",
					TagAPIAddr:  tt.apiAddr,
					TagModel:    "cRIO-9045",
					TagSerial:   "01F2A3B4",
				},
			}
			sys := node.System()
			if sys.APIAddress != tt.want {
				t.Errorf("APIAddress = %q, want %q", sys.APIAddress, tt.want)
			}
			if sys.Hostname != "crio-a" || sys.SerialNumber != "01F2A3B4" || sys.Status != "alive" {
				t.Errorf("System() = %+v", sys)
			}
		})
	}
}

// TestSystems tests that only alive targets are listed, sorted by hostname
func TestSystems(t *testing.T) {
	manager := &SerfManager{members: make(map[string]*TargetNode)}

	add := func(id, hostname string, status serf.MemberStatus) {
		manager.members[id] = &TargetNode{
			ID:     id,
			Addr:   net.ParseIP("10.0.0.1"),
			Status: status,
			Tags:   map[string]string{TagHostname: hostname, TagAPIAddr: "10.0.0.1:8640"},
		}
	}
	add("b", "crio-b", serf.StatusAlive)
	add("a", "crio-a", serf.StatusAlive)
	add("c", "crio-c", serf.StatusFailed)
	add("d", "", serf.StatusAlive)

	systems := manager.Systems()
	if len(systems) != 2 {
		t.Fatalf("Systems() returned %d systems, want 2: %+v", len(systems), systems)
	}
	if systems[0].Hostname != "crio-a" || systems[1].Hostname != "crio-b" {
		t.Errorf("Systems() order = %q, %q", systems[0].Hostname, systems[1].Hostname)
	}
}

// TestTargetTags tests the tag set a target advertises
func TestTargetTags(t *testing.T) {
	tags := TargetTags(syscfg.SystemInfo{
		Hostname:     "crio",
		IPAddress:    "10.0.0.2",
		Model:        "cRIO-9045",
		SerialNumber: "01F2A3B4",
	}, APIAddr("10.0.0.2", 8640))

	want := map[string]string{
		TagHostname: "crio",
		TagIP:       "10.0.0.2",
		TagAPIAddr:  "10.0.0.2:8640",
		TagModel:    "cRIO-9045",
		TagSerial:   "01F2A3B4",
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
	if err := validateTags(tags); err != nil {
		t.Errorf("TargetTags() produced reserved tags: %v", err)
	}
}

// TestStartAndShutdown runs a single-node Serf agent on loopback
func TestStartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Tags = map[string]string{TagHostname: "crio-local", TagAPIAddr: "127.0.0.1:8640"}

	manager, err := NewSerfManager(cfg)
	if err != nil {
		t.Fatalf("NewSerfManager() error = %v", err)
	}
	if err := manager.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer manager.Shutdown()

	if manager.BindPort() == 0 {
		t.Error("BindPort() should report the bound port")
	}

	local := manager.GetLocalMember()
	if local == nil {
		t.Fatal("GetLocalMember() returned nil after Start")
	}
	if local.Tags[TagHostname] != "crio-local" {
		t.Errorf("local hostname tag = %q", local.Tags[TagHostname])
	}

	systems := manager.Systems()
	if len(systems) != 1 || systems[0].Hostname != "crio-local" {
		t.Errorf("Systems() = %+v, want the local target", systems)
	}

	if err := manager.UpdateTags(map[string]string{TagHostname: "crio-renamed"}); err != nil {
		t.Errorf("UpdateTags() error = %v", err)
	}
}
