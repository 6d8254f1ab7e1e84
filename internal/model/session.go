package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusStarting     Status = "starting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusStopped      Status = "stopped"
	StatusFailed       Status = "failed"
)

// Running reports whether the session counts as live: any non-terminal state.
func (s Status) Running() bool {
	return s == StatusStarting || s == StatusConnected || s == StatusReconnecting
}

// Terminal reports whether the session has finished for good. Stopped is
// intentional; Failed means the retry budget was exhausted or
// auto-reconnect was off.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusFailed
}

// Session is the runtime record of one supervised execution of a profile.
// The PID is transient and never persisted.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	ProfileID      uuid.UUID  `json:"profile_id"`
	ProfileName    string     `json:"profile_name"`
	Status         Status     `json:"status"`
	PID            int        `json:"pid,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	ReconnectCount int        `json:"reconnect_count"`
	LastError      string     `json:"last_error,omitempty"`
}

// NewSession creates a session record in the Starting state for a profile.
func NewSession(profileID uuid.UUID, profileName string) Session {
	return Session{
		ID:          uuid.New(),
		ProfileID:   profileID,
		ProfileName: profileName,
		Status:      StatusStarting,
		CreatedAt:   time.Now().UTC(),
	}
}

// SessionHandle is a shared session record: one writer (the owning
// supervisor, plus the manager on an external stop), many concurrent
// readers. Readers always see a consistent snapshot; the lock is never
// exposed to callers.
type SessionHandle struct {
	mu sync.RWMutex
	s  Session
}

// NewSessionHandle wraps a session record for shared access.
func NewSessionHandle(s Session) *SessionHandle {
	return &SessionHandle{s: s}
}

// Snapshot returns a consistent copy of the current record.
func (h *SessionHandle) Snapshot() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Update applies fn to the record under the write lock. fn must not block:
// the convention is to mutate the record and publish the matching event
// before returning, so no other goroutine can observe the new state before
// its event exists.
func (h *SessionHandle) Update(fn func(*Session)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.s)
}
