// Package serf provides event handling for target discovery
package serf

import (
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/hashicorp/serf/serf"
)

// Handles incoming Serf events in a separate goroutine
//
// Phase 1: ALWAYS process events internally (update member lists, handle failures)
// Phase 2: OPTIONALLY forward to external consumers (non-blocking)
func (sm *SerfManager) processEvents() {
	defer sm.wg.Done()

	logging.Debug("Starting event processor")

	for {
		select {
		case event := <-sm.ingestEventQueue:
			sm.handleEvent(event)

			select {
			case sm.ConsumerEventCh <- event:
			default:
				logging.Debug("Consumer event channel full, dropping event: %T", event)
			}

		case <-sm.ctx.Done():
			logging.Debug("Event processor shutting down")
			return
		}
	}
}

// Processes individual Serf events
func (sm *SerfManager) handleEvent(event serf.Event) {
	switch e := event.(type) {
	case serf.MemberEvent:
		sm.handleMemberEvent(e)
	case serf.UserEvent:
		logging.Debug("Received user event: %s", e.Name)
	case *serf.Query:
		logging.Debug("Received query: %s", e.Name)
	default:
		logging.Debug("Received unhandled event type: %T", event)
	}
}

// Processes target join/leave/fail events from Serf
func (sm *SerfManager) handleMemberEvent(event serf.MemberEvent) {
	for _, member := range event.Members {
		switch event.EventType() {
		case serf.EventMemberJoin:
			logging.Info("Target joined: %s (%s:%d)",
				member.Name, member.Addr, member.Port)
			sm.addMember(member)

		case serf.EventMemberLeave:
			logging.Info("Target left: %s (%s:%d)",
				member.Name, member.Addr, member.Port)
			sm.removeMember(member)

		case serf.EventMemberFailed:
			logging.Warn("Target failed: %s (%s:%d)",
				member.Name, member.Addr, member.Port)
			sm.updateMemberStatus(member, serf.StatusFailed)

		case serf.EventMemberUpdate:
			logging.Debug("Target updated: %s (%s:%d)",
				member.Name, member.Addr, member.Port)
			sm.updateMember(member)

		case serf.EventMemberReap:
			logging.Info("Target reaped: %s (%s:%d)",
				member.Name, member.Addr, member.Port)
			sm.removeMember(member)
		}
	}
}

// Adds a newly discovered target
func (sm *SerfManager) addMember(member serf.Member) {
	node := memberFromSerf(member)

	sm.memberLock.Lock()
	sm.members[node.ID] = node
	sm.memberLock.Unlock()
}

// Updates an existing target's information, such as new tags after a
// hostname change
func (sm *SerfManager) updateMember(member serf.Member) {
	node := memberFromSerf(member)

	sm.memberLock.Lock()
	if existing, exists := sm.members[node.ID]; exists && member.Status != serf.StatusAlive {
		node.LastSeen = existing.LastSeen
	}
	sm.members[node.ID] = node
	sm.memberLock.Unlock()
}

// Updates a target's status (alive/failed/left)
func (sm *SerfManager) updateMemberStatus(member serf.Member, status serf.MemberStatus) {
	sm.memberLock.Lock()
	if node, exists := sm.members[memberID(member)]; exists {
		node.Status = status
		if status == serf.StatusAlive {
			node.LastSeen = time.Now()
		}
	}
	sm.memberLock.Unlock()
}

// Removes a target from tracking
func (sm *SerfManager) removeMember(member serf.Member) {
	sm.memberLock.Lock()
	delete(sm.members, memberID(member))
	sm.memberLock.Unlock()
}

// memberID is the node_id tag, falling back to the Serf name for members
// that are not rtconfigd targets.
func memberID(member serf.Member) string {
	if id := member.Tags[TagNodeID]; id != "" {
		return id
	}
	return member.Name
}

// Converts a serf.Member to a TargetNode
func memberFromSerf(member serf.Member) *TargetNode {
	return &TargetNode{
		ID:       memberID(member),
		Name:     member.Name,
		Addr:     member.Addr,
		Port:     member.Port,
		Status:   member.Status,
		Tags:     copyTags(member.Tags),
		LastSeen: time.Now(),
	}
}
