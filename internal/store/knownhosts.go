package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tunnelward/tunnelward/internal/security"
)

// KnownHostEntry is one line of a known_hosts file:
// "host type key [comment]".
type KnownHostEntry struct {
	Host    string
	KeyType string
	Key     string
	Comment string
}

// ParseKnownHostLine parses one line; it returns false for empty lines,
// comments, and lines with fewer than three fields.
func ParseKnownHostLine(line string) (KnownHostEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return KnownHostEntry{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return KnownHostEntry{}, false
	}
	e := KnownHostEntry{Host: fields[0], KeyType: fields[1], Key: fields[2]}
	if len(fields) > 3 {
		e.Comment = strings.Join(fields[3:], " ")
	}
	return e, true
}

// Line formats the entry back into the known_hosts form.
func (e KnownHostEntry) Line() string {
	if e.Comment != "" {
		return fmt.Sprintf("%s %s %s %s", e.Host, e.KeyType, e.Key, e.Comment)
	}
	return fmt.Sprintf("%s %s %s", e.Host, e.KeyType, e.Key)
}

// KnownHosts manages the app-owned known_hosts file.
type KnownHosts struct {
	path    string
	entries []KnownHostEntry
}

// NewKnownHosts creates a manager for the file at path.
func NewKnownHosts(path string) *KnownHosts {
	return &KnownHosts{path: path}
}

// Path returns the managed file path.
func (k *KnownHosts) Path() string { return k.path }

// Load reads the file; a missing file yields an empty set.
func (k *KnownHosts) Load() error {
	b, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			k.entries = nil
			return nil
		}
		return &security.StorageError{Op: "read known_hosts", Err: err}
	}
	k.entries = k.entries[:0]
	for _, line := range strings.Split(string(b), "\n") {
		if e, ok := ParseKnownHostLine(line); ok {
			k.entries = append(k.entries, e)
		}
	}
	return nil
}

// Save writes all entries back to the file.
func (k *KnownHosts) Save() error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return &security.StorageError{Op: "create known_hosts dir", Err: err}
	}
	lines := make([]string, 0, len(k.entries))
	for _, e := range k.entries {
		lines = append(lines, e.Line())
	}
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := writeFileAtomic(k.path, []byte(content), 0o600); err != nil {
		return &security.StorageError{Op: "write known_hosts", Err: err}
	}
	return nil
}

// Add records an entry, replacing any earlier entry for the same host.
func (k *KnownHosts) Add(e KnownHostEntry) {
	k.Remove(e.Host)
	k.entries = append(k.entries, e)
}

// Remove drops all entries for host.
func (k *KnownHosts) Remove(host string) {
	kept := k.entries[:0]
	for _, e := range k.entries {
		if e.Host != host {
			kept = append(kept, e)
		}
	}
	k.entries = kept
}

// IsKnown reports whether host has an entry.
func (k *KnownHosts) IsKnown(host string) bool {
	for _, e := range k.entries {
		if e.Host == host {
			return true
		}
	}
	return false
}

// Entries returns the current entries in file order.
func (k *KnownHosts) Entries() []KnownHostEntry {
	return k.entries
}
