package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/store"
)

// fakeSSH puts a stub ssh binary on PATH so commands that construct a
// manager resolve a binary without touching the host's OpenSSH.
func fakeSSH(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\necho 'OpenSSH_9.7p1 Stub' 1>&2\n"
	if err := os.WriteFile(filepath.Join(dir, "ssh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func runCommand(t *testing.T, configRoot string, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--config-dir", configRoot}, args...))
	return cmd.Execute()
}

func TestParseTunnelFlag(t *testing.T) {
	spec, err := parseTunnelFlag("8080:3000")
	if err != nil {
		t.Fatal(err)
	}
	if spec.RemotePort != 8080 || spec.LocalPort != 3000 || spec.String() != "localhost:8080:localhost:3000" {
		t.Fatalf("unexpected shorthand parse: %+v", spec)
	}

	spec, err = parseTunnelFlag("0.0.0.0:443:127.0.0.1:8443")
	if err != nil {
		t.Fatal(err)
	}
	if spec.RemoteBind != "0.0.0.0" || spec.LocalHost != "127.0.0.1" {
		t.Fatalf("unexpected four-field parse: %+v", spec)
	}

	if _, err := parseTunnelFlag("nope"); err == nil {
		t.Fatal("expected parse failure")
	}
	if _, err := parseTunnelFlag("a:b"); err == nil {
		t.Fatal("expected numeric port failure")
	}
}

func TestProfileCreateListDelete(t *testing.T) {
	root := t.TempDir()

	err := runCommand(t, root, "profile", "create", "vps",
		"--host", "example.com", "--user", "deploy", "--tunnel", "8080:3000")
	if err != nil {
		t.Fatal(err)
	}

	profiles := store.NewProfileStore(store.TestPaths(root))
	p, err := profiles.Get("vps")
	if err != nil {
		t.Fatal(err)
	}
	if p.Host != "example.com" || len(p.Tunnels) != 1 {
		t.Fatalf("unexpected stored profile: %+v", p)
	}
	if p.Auth.Method != model.AuthAgent {
		t.Fatalf("expected agent auth default, got %q", p.Auth.Method)
	}

	// Duplicate create fails.
	err = runCommand(t, root, "profile", "create", "vps",
		"--host", "example.com", "--user", "deploy", "--tunnel", "8080:3000")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	if err := runCommand(t, root, "profile", "delete", "vps"); err != nil {
		t.Fatal(err)
	}
	if _, err := profiles.Get("vps"); err == nil {
		t.Fatal("profile should be deleted")
	}
}

func TestProfileUpdateRename(t *testing.T) {
	root := t.TempDir()
	if err := runCommand(t, root, "profile", "create", "old",
		"--host", "example.com", "--user", "deploy", "--tunnel", "8080:3000"); err != nil {
		t.Fatal(err)
	}

	if err := runCommand(t, root, "profile", "update", "old", "--rename", "new", "--port", "2222"); err != nil {
		t.Fatal(err)
	}

	profiles := store.NewProfileStore(store.TestPaths(root))
	p, err := profiles.Get("new")
	if err != nil {
		t.Fatal(err)
	}
	if p.Port != 2222 {
		t.Fatalf("update lost the port change: %+v", p)
	}
	if _, err := profiles.Get("old"); err == nil {
		t.Fatal("old name should be gone after rename")
	}
}

func TestDownRequiresIDOrAll(t *testing.T) {
	// down builds the manager before it checks its arguments, so a stub
	// ssh must be on PATH for the validation error to be reached.
	root := t.TempDir()
	fakeSSH(t)
	if err := runCommand(t, root, "down"); err == nil {
		t.Fatal("expected error without session id or --all")
	}
}

func TestUnknownProfileErrors(t *testing.T) {
	root := t.TempDir()
	err := runCommand(t, root, "profile", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
