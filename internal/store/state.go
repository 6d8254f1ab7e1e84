package store

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/security"
)

// AppState is the snapshot written at shutdown: which session profiles
// were connected, so they can be restarted on next launch.
type AppState struct {
	Sessions          []PersistedSession `json:"sessions"`
	LastActiveProfile *uuid.UUID         `json:"last_active_profile"`
}

// PersistedSession is the minimal per-session record kept in state.json.
type PersistedSession struct {
	ProfileID    uuid.UUID `json:"profile_id"`
	ProfileName  string    `json:"profile_name"`
	WasConnected bool      `json:"was_connected"`
}

// StateFromSessions captures the snapshot for the given runtime sessions.
func StateFromSessions(sessions []model.Session) AppState {
	st := AppState{Sessions: make([]PersistedSession, 0, len(sessions))}
	for _, s := range sessions {
		st.Sessions = append(st.Sessions, PersistedSession{
			ProfileID:    s.ProfileID,
			ProfileName:  s.ProfileName,
			WasConnected: s.Status == model.StatusConnected,
		})
	}
	return st
}

// AutoStartProfiles returns the profile IDs that were connected when the
// snapshot was taken.
func (s AppState) AutoStartProfiles() []uuid.UUID {
	var out []uuid.UUID
	for _, sess := range s.Sessions {
		if sess.WasConnected {
			out = append(out, sess.ProfileID)
		}
	}
	return out
}

// LoadState reads state.json; a missing file yields an empty state.
func LoadState(paths Paths) (AppState, error) {
	b, err := os.ReadFile(paths.StateFile())
	if err != nil {
		if os.IsNotExist(err) {
			return AppState{}, nil
		}
		return AppState{}, &security.StorageError{Op: "read state", Err: err}
	}
	var st AppState
	if err := json.Unmarshal(b, &st); err != nil {
		return AppState{}, &security.StorageError{Op: "parse state", Err: err}
	}
	return st, nil
}

// SaveState rewrites state.json atomically (write new, rename over).
func SaveState(paths Paths, st AppState) error {
	if err := os.MkdirAll(paths.DataDir, 0o700); err != nil {
		return &security.StorageError{Op: "create data dir", Err: err}
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &security.StorageError{Op: "serialize state", Err: err}
	}
	if err := writeFileAtomic(paths.StateFile(), b, 0o600); err != nil {
		return &security.StorageError{Op: "write state", Err: err}
	}
	return nil
}
