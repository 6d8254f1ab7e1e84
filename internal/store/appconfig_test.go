package store

import (
	"os"
	"testing"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	paths := TestPaths(t.TempDir())
	cfg, err := LoadConfig(paths)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SSH.DefaultKeepaliveInterval != 20 || cfg.SSH.DefaultKeepaliveCount != 3 {
		t.Fatalf("wrong ssh defaults: %+v", cfg.SSH)
	}
	if cfg.SSH.StrictHostKeyChecking != "accept-new" || !cfg.SSH.UseAppKnownHosts {
		t.Fatalf("wrong host key defaults: %+v", cfg.SSH)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.FileLogging || cfg.Logging.MaxFileSizeMB != 10 || cfg.Logging.MaxFiles != 5 {
		t.Fatalf("wrong logging defaults: %+v", cfg.Logging)
	}
	if cfg.Web.Enabled || cfg.Web.BindAddress != "127.0.0.1" || cfg.Web.Port != 3847 {
		t.Fatalf("wrong web defaults: %+v", cfg.Web)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	paths := TestPaths(t.TempDir())
	if err := os.MkdirAll(paths.ConfigDir, 0o700); err != nil {
		t.Fatal(err)
	}
	content := `[web]
enabled = true
port = 9000
`
	if err := os.WriteFile(paths.ConfigFile(), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(paths)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Web.Enabled || cfg.Web.Port != 9000 {
		t.Fatalf("file values not applied: %+v", cfg.Web)
	}
	if cfg.Web.BindAddress != "127.0.0.1" {
		t.Fatalf("unset field lost its default: %+v", cfg.Web)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("untouched section lost defaults: %+v", cfg.Logging)
	}
}

func TestSaveThenLoadConfig(t *testing.T) {
	paths := TestPaths(t.TempDir())
	cfg := DefaultConfig()
	cfg.General.AutoStartSessions = true
	cfg.SSH.BinaryPath = "/opt/ssh/bin/ssh"
	if err := SaveConfig(paths, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfig(paths)
	if err != nil {
		t.Fatal(err)
	}
	if !got.General.AutoStartSessions || got.SSH.BinaryPath != "/opt/ssh/bin/ssh" {
		t.Fatalf("config round trip mismatch: %+v", got)
	}
}

func TestLoadConfigParseError(t *testing.T) {
	paths := TestPaths(t.TempDir())
	if err := os.MkdirAll(paths.ConfigDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.ConfigFile(), []byte("= broken ="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(paths); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}
