package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags the lifecycle events published on the broadcast bus.
type EventType string

const (
	EventStatusChanged    EventType = "status_changed"
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventReconnecting     EventType = "reconnecting"
	EventFailed           EventType = "failed"
	EventOutput           EventType = "output"
	EventProfileCreated   EventType = "profile_created"
	EventProfileUpdated   EventType = "profile_updated"
	EventProfileDeleted   EventType = "profile_deleted"
	EventSSHBinaryChanged EventType = "ssh_binary_changed"
	EventError            EventType = "error"
)

// Event is one lifecycle notification. Only the fields relevant to the
// event's type are populated; every event carries a timestamp.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID   uuid.UUID `json:"session_id,omitzero"`
	ProfileID   uuid.UUID `json:"profile_id,omitzero"`
	ProfileName string    `json:"profile_name,omitempty"`

	OldStatus Status `json:"old_status,omitempty"`
	NewStatus Status `json:"new_status,omitempty"`

	Reason      string `json:"reason,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	Error       string `json:"error,omitempty"`

	Output string `json:"output,omitempty"`
	Stderr bool   `json:"stderr,omitempty"`

	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`

	Message string `json:"message,omitempty"`
	Context string `json:"context,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// StatusChangedEvent records an old→new status transition for a session.
func StatusChangedEvent(sessionID uuid.UUID, profileName string, oldStatus, newStatus Status) Event {
	e := newEvent(EventStatusChanged)
	e.SessionID = sessionID
	e.ProfileName = profileName
	e.OldStatus = oldStatus
	e.NewStatus = newStatus
	return e
}

// ConnectedEvent records that the connection-established marker was seen.
func ConnectedEvent(sessionID uuid.UUID, profileName string) Event {
	e := newEvent(EventConnected)
	e.SessionID = sessionID
	e.ProfileName = profileName
	return e
}

// DisconnectedEvent records that the child exited; reason may be empty for
// a clean exit.
func DisconnectedEvent(sessionID uuid.UUID, profileName, reason string) Event {
	e := newEvent(EventDisconnected)
	e.SessionID = sessionID
	e.ProfileName = profileName
	e.Reason = reason
	return e
}

// ReconnectingEvent records a retry attempt; maxAttempts 0 means unlimited.
func ReconnectingEvent(sessionID uuid.UUID, profileName string, attempt, maxAttempts int) Event {
	e := newEvent(EventReconnecting)
	e.SessionID = sessionID
	e.ProfileName = profileName
	e.Attempt = attempt
	e.MaxAttempts = maxAttempts
	return e
}

// FailedEvent records a permanent failure: retry budget exhausted or
// auto-reconnect off.
func FailedEvent(sessionID uuid.UUID, profileName, errMsg string) Event {
	e := newEvent(EventFailed)
	e.SessionID = sessionID
	e.ProfileName = profileName
	e.Error = errMsg
	return e
}

// OutputEvent carries one line from the child's stdout or stderr.
func OutputEvent(sessionID uuid.UUID, profileName, line string, stderr bool) Event {
	e := newEvent(EventOutput)
	e.SessionID = sessionID
	e.ProfileName = profileName
	e.Output = line
	e.Stderr = stderr
	return e
}

// ProfileEvent records a profile CRUD operation; t must be one of the
// profile event types.
func ProfileEvent(t EventType, profileID uuid.UUID, profileName string) Event {
	e := newEvent(t)
	e.ProfileID = profileID
	e.ProfileName = profileName
	return e
}

// SSHBinaryChangedEvent records the resolved SSH binary and its version.
func SSHBinaryChangedEvent(path, version string) Event {
	e := newEvent(EventSSHBinaryChanged)
	e.Path = path
	e.Version = version
	return e
}

// ErrorEvent records a generic error with optional context.
func ErrorEvent(message, context string) Event {
	e := newEvent(EventError)
	e.Message = message
	e.Context = context
	return e
}
