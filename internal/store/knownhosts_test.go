package store

import (
	"path/filepath"
	"testing"
)

func TestParseKnownHostLine(t *testing.T) {
	e, ok := ParseKnownHostLine("example.com ssh-ed25519 AAAAC3Nza user@host")
	if !ok {
		t.Fatal("expected parse success")
	}
	if e.Host != "example.com" || e.KeyType != "ssh-ed25519" || e.Key != "AAAAC3Nza" || e.Comment != "user@host" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	if _, ok := ParseKnownHostLine(""); ok {
		t.Fatal("empty line must not parse")
	}
	if _, ok := ParseKnownHostLine("# comment"); ok {
		t.Fatal("comment line must not parse")
	}
	if _, ok := ParseKnownHostLine("host only-two"); ok {
		t.Fatal("short line must not parse")
	}
}

func TestKnownHostsAddReplaces(t *testing.T) {
	k := NewKnownHosts(filepath.Join(t.TempDir(), "known_hosts"))
	k.Add(KnownHostEntry{Host: "h1", KeyType: "ssh-rsa", Key: "OLD"})
	k.Add(KnownHostEntry{Host: "h2", KeyType: "ssh-rsa", Key: "K2"})
	k.Add(KnownHostEntry{Host: "h1", KeyType: "ssh-ed25519", Key: "NEW"})

	if len(k.Entries()) != 2 {
		t.Fatalf("re-add must replace, got %+v", k.Entries())
	}
	var h1 *KnownHostEntry
	for i := range k.Entries() {
		if k.Entries()[i].Host == "h1" {
			h1 = &k.Entries()[i]
		}
	}
	if h1 == nil || h1.Key != "NEW" {
		t.Fatalf("expected replaced key for h1, got %+v", h1)
	}
}

func TestKnownHostsSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	k := NewKnownHosts(path)
	k.Add(KnownHostEntry{Host: "example.com", KeyType: "ssh-ed25519", Key: "AAAA", Comment: "c"})
	if err := k.Save(); err != nil {
		t.Fatal(err)
	}

	k2 := NewKnownHosts(path)
	if err := k2.Load(); err != nil {
		t.Fatal(err)
	}
	if !k2.IsKnown("example.com") {
		t.Fatal("expected host to survive save/load")
	}
	if k2.Entries()[0].Line() != "example.com ssh-ed25519 AAAA c" {
		t.Fatalf("unexpected line: %q", k2.Entries()[0].Line())
	}
}

func TestKnownHostsLoadMissingFile(t *testing.T) {
	k := NewKnownHosts(filepath.Join(t.TempDir(), "known_hosts"))
	if err := k.Load(); err != nil {
		t.Fatal(err)
	}
	if len(k.Entries()) != 0 {
		t.Fatalf("expected empty set, got %+v", k.Entries())
	}
}
