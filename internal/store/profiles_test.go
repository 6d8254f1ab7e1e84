package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/security"
)

func testStore(t *testing.T) (*ProfileStore, Paths) {
	t.Helper()
	paths := TestPaths(t.TempDir())
	return NewProfileStore(paths), paths
}

func sampleProfile(name string) *model.Profile {
	p := model.NewProfile(name, "example.com", "deploy")
	p.Tunnels = []model.TunnelSpec{{RemotePort: 8080, LocalPort: 3000}}
	return p
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"my profile":  "my_profile",
		"test@server": "test_server",
		"a/b/c":       "a_b_c",
		"ok-name_1":   "ok-name_1",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s, _ := testStore(t)

	p := sampleProfile("round trip")
	p.Port = 2222
	p.Auth = model.AuthMethod{Method: model.AuthKeyFile, KeyPath: "/keys/id"}
	p.ExtraOptions = map[string]string{"Compression": "yes"}
	p.MaxReconnectAttempts = 7
	p.AutoReconnect = false

	if err := s.Create(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("round trip")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID || got.Port != 2222 || got.Auth.KeyPath != "/keys/id" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.AutoReconnect {
		t.Fatal("explicit auto_reconnect=false must survive the round trip")
	}
	if got.MaxReconnectAttempts != 7 || got.ExtraOptions["Compression"] != "yes" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Tunnels) != 1 || got.Tunnels[0].String() != "localhost:8080:localhost:3000" {
		t.Fatalf("tunnels mismatch: %+v", got.Tunnels)
	}
}

func TestLoadHydratesDefaults(t *testing.T) {
	s, paths := testStore(t)
	if err := os.MkdirAll(paths.ProfilesDir(), 0o700); err != nil {
		t.Fatal(err)
	}
	// A minimal hand-written file: optional fields omitted entirely.
	minimal := `id = "7f9c82e4-66b7-4b39-8e7b-0a4cfb2d9a11"
name = "minimal"
host = "example.com"
user = "deploy"

[[tunnels]]
remote_port = 8080
local_port = 3000
`
	if err := os.WriteFile(filepath.Join(paths.ProfilesDir(), "minimal.toml"), []byte(minimal), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("minimal")
	if err != nil {
		t.Fatal(err)
	}
	if got.Port != 22 || got.KeepaliveInterval != 20 || got.KeepaliveCountMax != 3 {
		t.Fatalf("missing fields must hydrate defaults: %+v", got)
	}
	if !got.AutoReconnect {
		t.Fatal("auto_reconnect must default to true")
	}
	if got.Auth.Method != model.AuthAgent {
		t.Fatalf("auth must default to agent, got %q", got.Auth.Method)
	}
	if got.Tunnels[0].RemoteBind != "" || got.Tunnels[0].String() != "localhost:8080:localhost:3000" {
		t.Fatalf("tunnel defaults wrong: %+v", got.Tunnels[0])
	}
}

func TestLoadToleratesUnknownFields(t *testing.T) {
	s, paths := testStore(t)
	if err := os.MkdirAll(paths.ProfilesDir(), 0o700); err != nil {
		t.Fatal(err)
	}
	content := `id = "7f9c82e4-66b7-4b39-8e7b-0a4cfb2d9a12"
name = "future"
host = "example.com"
user = "deploy"
some_future_field = "ignored"

[[tunnels]]
remote_port = 8080
local_port = 3000
`
	if err := os.WriteFile(filepath.Join(paths.ProfilesDir(), "future.toml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("future"); err != nil {
		t.Fatalf("unknown fields must not abort load: %v", err)
	}
}

func TestListSkipsMalformedFiles(t *testing.T) {
	s, paths := testStore(t)
	if err := s.Create(sampleProfile("good")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(paths.ProfilesDir(), "broken.toml"), []byte("= not toml ="), 0o600); err != nil {
		t.Fatal(err)
	}

	profiles, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 || profiles[0].Name != "good" {
		t.Fatalf("expected the one good profile, got %+v", profiles)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Create(sampleProfile("dup")); err != nil {
		t.Fatal(err)
	}
	err := s.Create(sampleProfile("dup"))
	var exists *security.ProfileExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected ProfileExistsError, got %v", err)
	}
}

func TestUpdateRename(t *testing.T) {
	s, paths := testStore(t)
	p := sampleProfile("old name")
	if err := s.Create(p); err != nil {
		t.Fatal(err)
	}

	renamed := *p
	renamed.Name = "new name"
	if err := s.Update("old name", &renamed); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get("new name"); err != nil {
		t.Fatalf("renamed profile missing: %v", err)
	}
	var notFound *security.ProfileNotFoundError
	if _, err := s.Get("old name"); !errors.As(err, &notFound) {
		t.Fatalf("old name should be gone, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.ProfilesDir(), "old_name.toml")); !os.IsNotExist(err) {
		t.Fatal("old profile file should be removed after rename")
	}
}

func TestDelete(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Create(sampleProfile("gone")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("gone"); err != nil {
		t.Fatal(err)
	}
	var notFound *security.ProfileNotFoundError
	if err := s.Delete("gone"); !errors.As(err, &notFound) {
		t.Fatalf("expected ProfileNotFoundError, got %v", err)
	}
}
