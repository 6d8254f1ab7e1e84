// Package store handles everything tunnelward persists: profile files,
// the global config, the session state snapshot, and the app-managed
// known_hosts file. Paths are plain values injected into every consumer —
// there is no process-global path state, so tests run against a temp root.
package store

import (
	"os"
	"path/filepath"
	"runtime"
)

const appID = "tunnelward"

// Paths resolves the directories tunnelward reads and writes.
type Paths struct {
	ConfigDir string
	DataDir   string
}

// DefaultPaths follows the platform's base-directory convention:
// os.UserConfigDir for configuration and XDG_DATA_HOME (or the platform
// equivalent) for data, each suffixed with the application identifier.
// When the platform yields nothing it falls back to a relative ./config.
func DefaultPaths() Paths {
	p := Paths{}

	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		p.ConfigDir = filepath.Join(dir, appID)
	} else {
		p.ConfigDir = filepath.Join(".", "config")
	}

	p.DataDir = dataBase()
	if p.DataDir == "" {
		p.DataDir = p.ConfigDir
	}
	return p
}

func dataBase() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		// Config and data share a base directory on these platforms.
		if dir, err := os.UserConfigDir(); err == nil && dir != "" {
			return filepath.Join(dir, appID)
		}
		return ""
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appID)
		}
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			return filepath.Join(home, ".local", "share", appID)
		}
		return ""
	}
}

// TestPaths roots both directories under dir; used by tests and by the
// --config-dir override.
func TestPaths(dir string) Paths {
	return Paths{
		ConfigDir: filepath.Join(dir, "config"),
		DataDir:   filepath.Join(dir, "data"),
	}
}

// ProfilesDir is where profile TOML files live, one file per profile.
func (p Paths) ProfilesDir() string { return filepath.Join(p.ConfigDir, "profiles") }

// ConfigFile is the global configuration document.
func (p Paths) ConfigFile() string { return filepath.Join(p.ConfigDir, "config.toml") }

// KnownHostsFile is the app-managed known_hosts file.
func (p Paths) KnownHostsFile() string { return filepath.Join(p.ConfigDir, "known_hosts") }

// StateFile is the session snapshot used for auto-restart.
func (p Paths) StateFile() string { return filepath.Join(p.DataDir, "state.json") }

// LogsDir holds per-session output logs and the application log.
func (p Paths) LogsDir() string { return filepath.Join(p.DataDir, "logs") }

// EventsFile is the JSONL event journal.
func (p Paths) EventsFile() string { return filepath.Join(p.DataDir, "events.jsonl") }
