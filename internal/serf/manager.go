// Package serf provides gossip-based discovery of rtconfigd targets.
//
// Every target runs a Serf agent and advertises who it is through member
// tags: hostname, IP address, API address, model and serial number. Any
// target can therefore answer "which systems are on this network" for the
// CLI's find and findsn commands without a central registry.
//
// SWIM PROTOCOL OVERVIEW:
// Serf implements SWIM (Scalable Weakly-consistent Infection-style Process
// Group Membership):
//
// - Failure Detection: randomized probing with indirect probes
// - Gossip Communication: tag changes spread epidemically, so a renamed
// target is visible everywhere within a few gossip rounds
// - Conflict Resolution: duplicate node names are resolved by the cluster
//
// Targets rejoin after a restart under the same node name (their serial
// number), so a rebooted controller replaces its old entry.
package serf

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/utils"
	"github.com/hashicorp/serf/serf"
)

// Represents a target known through gossip
type TargetNode struct {
	ID     string            `json:"id"`     // Unique identifier for the node
	Name   string            `json:"name"`   // Serf node name
	Addr   net.IP            `json:"addr"`   // Gossip address of the node
	Port   uint16            `json:"port"`   // Gossip port
	Status serf.MemberStatus `json:"status"` // Status of the node
	Tags   map[string]string `json:"tags"`   // Tags for the node

	LastSeen time.Time `json:"lastSeen"` // Last seen time
}

// System converts the node's tags into a discovered system.
func (n *TargetNode) System() syscfg.DiscoveredSystem {
	apiAddr := n.Tags[TagAPIAddr]
	if host, port, err := net.SplitHostPort(apiAddr); err == nil && (host == "" || net.ParseIP(host).IsUnspecified()) {
		// Targets bound to all interfaces are reached on their gossip address.
		apiAddr = net.JoinHostPort(n.Addr.String(), port)
	}
	return syscfg.DiscoveredSystem{
		Hostname:     n.Tags[TagHostname],
		IPAddress:    n.Tags[TagIP],
		APIAddress:   apiAddr,
		Model:        n.Tags[TagModel],
		SerialNumber: n.Tags[TagSerial],
		Status:       n.Status.String(),
	}
}

// Manages Serf membership and events for a target
type SerfManager struct {
	serf      *serf.Serf // Core Serf instance
	NodeID    string     // Unique identifier for the node
	NodeName  string     // Name of the node
	startTime time.Time  // When the manager was started

	// Two-Channel Producer-Consumer Pattern:
	// Internal processing never blocks on external consumers, so membership
	// tracking continues even if nobody reads ConsumerEventCh.

	ConsumerEventCh  chan serf.Event // EXTERNAL: Optional event channel for consumers (can be slow/nil)
	ingestEventQueue chan serf.Event // INTERNAL: Direct from Serf, always processed (never blocks)

	memberLock sync.RWMutex           // Member tracking
	members    map[string]*TargetNode // Map of targets by node ID
	tagLock    sync.Mutex             // Serializes tag updates
	tags       map[string]string      // Current local tags
	ctx        context.Context        // Context
	cancel     context.CancelFunc     // Cancel function
	shutdownCh chan struct{}          // Closed when shutdown completes
	wg         sync.WaitGroup         // Wait group
	logWriter  io.Closer              // Colorful log writer, if any
	config     *ManagerConfig         // Manager Configuration
}

// NewSerfManager creates a new SerfManager instance
func NewSerfManager(config *ManagerConfig) (*SerfManager, error) {
	if config == nil {
		config = DefaultManagerConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	nodeID, err := utils.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node ID: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	manager := &SerfManager{
		NodeID:   nodeID,
		NodeName: config.NodeName,

		// Channel Buffer Sizing Strategy:
		// - ConsumerEventCh: External consumers may be slow/absent, standard buffer size
		// - ingestEventQueue: Internal processing priority, 2x larger to prevent Serf blocking
		ConsumerEventCh:  make(chan serf.Event, config.EventBufferSize),
		ingestEventQueue: make(chan serf.Event, config.EventBufferSize*2),

		members:    make(map[string]*TargetNode),
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
		config:     config,
	}
	manager.tags = manager.buildNodeTags(config.Tags)

	return manager, nil
}

// Start starts the SerfManager
func (sm *SerfManager) Start() error {
	sm.startTime = time.Now()
	logging.Info("Starting SerfManager for node %s", sm.NodeName)

	serfConfig := serf.DefaultConfig()

	// Configure our application logging level only if not already configured by CLI
	if !logging.IsConfiguredByCLI() {
		logging.SetLevel(sm.config.LogLevel)
	}

	// Configure logging BEFORE calling Init() to ensure it's properly set up
	if sm.config.LogLevel == "ERROR" {
		serfConfig.LogOutput = io.Discard
		serfConfig.MemberlistConfig.LogOutput = io.Discard
	} else {
		colorfulWriter := logging.NewColorfulSerfWriter()
		serfConfig.LogOutput = colorfulWriter
		serfConfig.MemberlistConfig.LogOutput = colorfulWriter
		sm.logWriter = colorfulWriter
	}

	serfConfig.Init()
	serfConfig.NodeName = sm.NodeName
	serfConfig.MemberlistConfig.BindAddr = sm.config.BindAddr
	serfConfig.MemberlistConfig.BindPort = sm.config.BindPort
	serfConfig.MemberlistConfig.DeadNodeReclaimTime = sm.config.DeadNodeReclaimTime

	// Serf writes to the internal queue so member tracking always happens
	serfConfig.EventCh = sm.ingestEventQueue

	sm.tagLock.Lock()
	serfConfig.Tags = copyTags(sm.tags)
	sm.tagLock.Unlock()

	var err error
	sm.serf, err = serf.Create(serfConfig)
	if err != nil {
		return fmt.Errorf("failed to create serf instance: %w", err)
	}

	sm.wg.Add(1)
	go sm.processEvents()

	// Initialize with self as first member
	sm.addMember(sm.serf.LocalMember())

	logging.Success("SerfManager started successfully on %s:%d",
		sm.config.BindAddr, sm.BindPort())

	return nil
}

// BindPort returns the gossip port actually in use, which differs from the
// configured one when port 0 was requested.
func (sm *SerfManager) BindPort() int {
	if sm.serf != nil {
		return int(sm.serf.LocalMember().Port)
	}
	return sm.config.BindPort
}

// Join attempts to join other targets using one or more seed addresses.
// Serf tries each address until one succeeds.
func (sm *SerfManager) Join(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("no join addresses provided")
	}

	logging.Info("Attempting to join targets via %v", addresses)

	var lastErr error
	for attempt := 1; attempt <= sm.config.JoinRetries; attempt++ {
		ctx, cancel := context.WithTimeout(sm.ctx, sm.config.JoinTimeout)

		joinDone := make(chan struct {
			n   int
			err error
		}, 1)

		go func() {
			n, err := sm.serf.Join(addresses, false)
			joinDone <- struct {
				n   int
				err error
			}{n, err}
		}()

		select {
		case result := <-joinDone:
			cancel()
			if result.err != nil {
				lastErr = result.err
				logging.Warn("Join attempt %d/%d failed: %v",
					attempt, sm.config.JoinRetries, result.err)

				if attempt < sm.config.JoinRetries {
					time.Sleep(time.Duration(attempt) * time.Second)
				}
				continue
			}

			logging.Success("Successfully joined, discovered %d targets", result.n)
			return nil

		case <-ctx.Done():
			cancel()
			lastErr = fmt.Errorf("join attempt timed out after %v", sm.config.JoinTimeout)
			logging.Warn("Join attempt %d/%d timed out after %v",
				attempt, sm.config.JoinRetries, sm.config.JoinTimeout)

			if attempt < sm.config.JoinRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
			}
			continue
		}
	}

	return fmt.Errorf("failed to join after %d attempts: %w",
		sm.config.JoinRetries, lastErr)
}

// UpdateTags replaces the advertised tags, keeping the reserved node id. The
// daemon calls it whenever the target's hostname, IP or firmware changes.
func (sm *SerfManager) UpdateTags(tags map[string]string) error {
	if err := validateTags(tags); err != nil {
		return err
	}

	sm.tagLock.Lock()
	defer sm.tagLock.Unlock()

	next := sm.buildNodeTags(tags)
	sm.tags = next
	if sm.serf == nil {
		return nil
	}
	if err := sm.serf.SetTags(copyTags(next)); err != nil {
		return fmt.Errorf("failed to update tags: %w", err)
	}
	logging.Debug("Updated gossip tags: %v", next)
	return nil
}

// Leave gracefully leaves the cluster
func (sm *SerfManager) Leave() error {
	logging.Info("Leaving gossip cluster gracefully")

	if sm.serf != nil {
		if err := sm.serf.Leave(); err != nil {
			return fmt.Errorf("failed to leave cluster: %w", err)
		}
	}

	return nil
}

// Shutdown stops the SerfManager and cleans up resources
func (sm *SerfManager) Shutdown() error {
	logging.Info("Shutting down SerfManager")

	sm.cancel()

	if err := sm.Leave(); err != nil {
		logging.Warn("Error during graceful leave: %v", err)
	}

	if sm.serf != nil {
		if err := sm.serf.Shutdown(); err != nil {
			logging.Error("Error shutting down Serf: %v", err)
		}
	}

	sm.wg.Wait()

	if sm.logWriter != nil {
		sm.logWriter.Close()
	}

	close(sm.shutdownCh)

	logging.Success("SerfManager shutdown completed")
	return nil
}

// GetMembers returns a copy of all known targets
func (sm *SerfManager) GetMembers() map[string]*TargetNode {
	sm.memberLock.RLock()
	defer sm.memberLock.RUnlock()

	members := make(map[string]*TargetNode, len(sm.members))
	for id, node := range sm.members {
		members[id] = copyTargetNode(node)
	}

	return members
}

// GetMember returns a specific target by node ID
func (sm *SerfManager) GetMember(nodeID string) (*TargetNode, bool) {
	sm.memberLock.RLock()
	defer sm.memberLock.RUnlock()

	member, exists := sm.members[nodeID]
	if !exists {
		return nil, false
	}

	return copyTargetNode(member), true
}

// GetLocalMember returns information about the local target
func (sm *SerfManager) GetLocalMember() *TargetNode {
	member, _ := sm.GetMember(sm.NodeID)
	return member
}

// Systems lists the alive targets as discovered systems, ordered by
// hostname. Members without a hostname tag are not rtconfigd targets and
// are skipped.
func (sm *SerfManager) Systems() []syscfg.DiscoveredSystem {
	sm.memberLock.RLock()
	systems := make([]syscfg.DiscoveredSystem, 0, len(sm.members))
	for _, node := range sm.members {
		if node.Status != serf.StatusAlive || node.Tags[TagHostname] == "" {
			continue
		}
		systems = append(systems, node.System())
	}
	sm.memberLock.RUnlock()

	sort.Slice(systems, func(i, j int) bool {
		if systems[i].Hostname == systems[j].Hostname {
			return systems[i].IPAddress < systems[j].IPAddress
		}
		return systems[i].Hostname < systems[j].Hostname
	})
	return systems
}

// copyTargetNode creates a deep copy of a TargetNode. Only reference types
// (Tags) need copying by hand.
func copyTargetNode(node *TargetNode) *TargetNode {
	nodeCopy := *node
	nodeCopy.Tags = copyTags(node.Tags)
	return &nodeCopy
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// buildNodeTags constructs the tags map for this node
func (sm *SerfManager) buildNodeTags(custom map[string]string) map[string]string {
	// user tags + 1 system tag (node_id)
	tags := make(map[string]string, len(custom)+1)
	for k, v := range custom {
		tags[k] = v
	}
	tags[TagNodeID] = sm.NodeID
	return tags
}

// TargetTags builds the tags a target advertises.
func TargetTags(info syscfg.SystemInfo, apiAddr string) map[string]string {
	return map[string]string{
		TagHostname: info.Hostname,
		TagIP:       info.IPAddress,
		TagAPIAddr:  apiAddr,
		TagModel:    info.Model,
		TagSerial:   info.SerialNumber,
	}
}

// APIAddr joins host and port for the api_addr tag.
func APIAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
