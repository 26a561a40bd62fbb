package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	user     string
	lastUsed time.Time
}

// SessionTable tracks open sessions. A session expires once it has been idle
// for the table's timeout, and every session is dropped when the target
// reboots.
type SessionTable struct {
	mu       sync.Mutex
	sessions map[string]*session
	timeout  time.Duration
	now      func() time.Time
	opened   int
}

// NewSessionTable creates an empty table.
func NewSessionTable(idleTimeout time.Duration) *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*session),
		timeout:  idleTimeout,
		now:      time.Now,
	}
}

// Create issues a new session id.
func (t *SessionTable) Create(user string) (string, time.Duration) {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[id] = &session{user: user, lastUsed: t.now()}
	t.opened++
	return id, t.timeout
}

// Opened returns how many sessions have been issued since the table was
// created.
func (t *SessionTable) Opened() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened
}

// Touch reports whether id is a live session and refreshes its idle timer.
func (t *SessionTable) Touch(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return false
	}
	if t.now().Sub(s.lastUsed) > t.timeout {
		delete(t.sessions, id)
		return false
	}
	s.lastUsed = t.now()
	return true
}

// Delete revokes a session. It reports whether the session existed.
func (t *SessionTable) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.sessions[id]
	delete(t.sessions, id)
	return ok
}

// Clear drops every session.
func (t *SessionTable) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.sessions)
	t.sessions = make(map[string]*session)
	return n
}

// Len returns the number of live sessions, purging expired ones first.
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, s := range t.sessions {
		if now.Sub(s.lastUsed) > t.timeout {
			delete(t.sessions, id)
		}
	}
	return len(t.sessions)
}
