package store

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/tunnelward/tunnelward/internal/security"
)

// AppConfig is the global configuration at config-dir/config.toml. Every
// field has a default and the file may be absent entirely.
type AppConfig struct {
	General GeneralConfig `toml:"general" json:"general"`
	SSH     SSHConfig     `toml:"ssh" json:"ssh"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Web     WebConfig     `toml:"web" json:"web"`
}

// GeneralConfig holds application-level behavior flags.
type GeneralConfig struct {
	StartMinimized    bool   `toml:"start_minimized" json:"start_minimized"`
	AutoStartSessions bool   `toml:"auto_start_sessions" json:"auto_start_sessions"`
	DefaultProfile    string `toml:"default_profile,omitempty" json:"default_profile,omitempty"`
}

// SSHConfig holds defaults applied to every SSH invocation.
type SSHConfig struct {
	BinaryPath               string            `toml:"binary_path,omitempty" json:"binary_path,omitempty"`
	DefaultKeepaliveInterval int               `toml:"default_keepalive_interval" json:"default_keepalive_interval"`
	DefaultKeepaliveCount    int               `toml:"default_keepalive_count" json:"default_keepalive_count"`
	StrictHostKeyChecking    string            `toml:"strict_host_key_checking" json:"strict_host_key_checking"`
	UseAppKnownHosts         bool              `toml:"use_app_known_hosts" json:"use_app_known_hosts"`
	DefaultOptions           map[string]string `toml:"default_options,omitempty" json:"default_options,omitempty"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level         string `toml:"level" json:"level"`
	FileLogging   bool   `toml:"file_logging" json:"file_logging"`
	MaxFileSizeMB int    `toml:"max_file_size_mb" json:"max_file_size_mb"`
	MaxFiles      int    `toml:"max_files" json:"max_files"`
}

// WebConfig controls the optional HTTP/WebSocket control surface.
type WebConfig struct {
	Enabled     bool   `toml:"enabled" json:"enabled"`
	BindAddress string `toml:"bind_address" json:"bind_address"`
	Port        int    `toml:"port" json:"port"`
	CORSEnabled bool   `toml:"cors_enabled" json:"cors_enabled"`
}

// DefaultConfig returns the documented defaults for every section.
func DefaultConfig() AppConfig {
	return AppConfig{
		General: GeneralConfig{},
		SSH: SSHConfig{
			DefaultKeepaliveInterval: 20,
			DefaultKeepaliveCount:    3,
			StrictHostKeyChecking:    "accept-new",
			UseAppKnownHosts:         true,
		},
		Logging: LoggingConfig{
			Level:         "info",
			FileLogging:   true,
			MaxFileSizeMB: 10,
			MaxFiles:      5,
		},
		Web: WebConfig{
			BindAddress: "127.0.0.1",
			Port:        3847,
		},
	}
}

// LoadConfig reads config.toml, returning full defaults when the file is
// missing. Fields absent from the file keep their defaults.
func LoadConfig(paths Paths) (AppConfig, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(paths.ConfigFile())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, &security.ConfigError{Op: "read", Path: paths.ConfigFile(), Err: err}
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return DefaultConfig(), &security.ConfigError{Op: "parse", Path: paths.ConfigFile(), Err: err}
	}
	return cfg, nil
}

// SaveConfig writes config.toml, creating the config directory on first
// use.
func SaveConfig(paths Paths, cfg AppConfig) error {
	if err := os.MkdirAll(paths.ConfigDir, 0o700); err != nil {
		return &security.ConfigError{Op: "write", Path: paths.ConfigDir, Err: err}
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return &security.ConfigError{Op: "write", Path: paths.ConfigFile(), Err: err}
	}
	if err := writeFileAtomic(paths.ConfigFile(), b, 0o600); err != nil {
		return &security.ConfigError{Op: "write", Path: paths.ConfigFile(), Err: err}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
