// Package model defines the shared data types used across the application:
// profiles (persistent, user-authored connection declarations), sessions
// (runtime supervision state), and lifecycle events.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Authentication method names as stored in profile files.
const (
	AuthAgent    = "agent"
	AuthKeyFile  = "key-file"
	AuthPassword = "password"
)

// AuthMethod selects how the SSH client authenticates. KeyPath is only
// meaningful for the "key-file" method. Passwords are never part of a
// profile; they arrive as a session-scoped start option.
type AuthMethod struct {
	Method  string `toml:"method" json:"method"`
	KeyPath string `toml:"key_path,omitempty" json:"key_path,omitempty"`
}

// Valid reports whether the method is one of the known variants and,
// for key-file auth, carries a path.
func (a AuthMethod) Valid() bool {
	switch a.Method {
	case AuthAgent, AuthPassword:
		return true
	case AuthKeyFile:
		return strings.TrimSpace(a.KeyPath) != ""
	default:
		return false
	}
}

// TunnelSpec declares one reverse forward: a listener opened on the remote
// server at remote_bind:remote_port, forwarded back to local_host:local_port
// through the SSH connection.
type TunnelSpec struct {
	RemoteBind string `toml:"remote_bind,omitempty" json:"remote_bind"`
	RemotePort int    `toml:"remote_port" json:"remote_port"`
	LocalHost  string `toml:"local_host,omitempty" json:"local_host"`
	LocalPort  int    `toml:"local_port" json:"local_port"`
}

// String returns the canonical four-field form used for the -R flag:
// remote-bind:remote-port:local-host:local-port. Empty addresses are
// normalized to "localhost" so the same spec always formats the same way.
func (t TunnelSpec) String() string {
	rb := t.RemoteBind
	if rb == "" {
		rb = "localhost"
	}
	lh := t.LocalHost
	if lh == "" {
		lh = "localhost"
	}
	return fmt.Sprintf("%s:%d:%s:%d", rb, t.RemotePort, lh, t.LocalPort)
}

// Profile is a persistent declaration of how to reach a remote SSH server
// and which reverse forwards must be maintained there. Profiles are stored
// one per file as TOML; see internal/store.
type Profile struct {
	ID   uuid.UUID `toml:"id" json:"id"`
	Name string    `toml:"name" json:"name"`
	Host string    `toml:"host" json:"host"`
	Port int       `toml:"port,omitempty" json:"port"`
	User string    `toml:"user" json:"user"`

	// Keepalive settings map to ServerAliveInterval / ServerAliveCountMax.
	KeepaliveInterval int `toml:"keepalive_interval,omitempty" json:"keepalive_interval"`
	KeepaliveCountMax int `toml:"keepalive_count_max,omitempty" json:"keepalive_count_max"`

	AutoReconnect        bool `toml:"auto_reconnect" json:"auto_reconnect"`
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts,omitempty" json:"max_reconnect_attempts"`

	// Optional per-profile overrides.
	SSHBinary      string `toml:"ssh_binary,omitempty" json:"ssh_binary,omitempty"`
	KnownHostsFile string `toml:"known_hosts_file,omitempty" json:"known_hosts_file,omitempty"`
	IdentityFile   string `toml:"identity_file,omitempty" json:"identity_file,omitempty"`

	Auth    AuthMethod   `toml:"auth" json:"auth"`
	Tunnels []TunnelSpec `toml:"tunnels" json:"tunnels"`

	// ExtraOptions are passed through as -o key=value, after validation.
	ExtraOptions map[string]string `toml:"extra_options,omitempty" json:"extra_options,omitempty"`
}

// NewProfile creates a profile with a fresh ID and documented defaults.
func NewProfile(name, host, user string) *Profile {
	p := &Profile{
		ID:            uuid.New(),
		Name:          name,
		Host:          host,
		User:          user,
		Auth:          AuthMethod{Method: AuthAgent},
		AutoReconnect: true,
	}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults hydrates zero-valued optional fields to their documented
// defaults. Load paths call this after decoding so that files written by
// older versions (or by hand, with fields omitted) behave identically.
func (p *Profile) ApplyDefaults() {
	if p.Port == 0 {
		p.Port = 22
	}
	if p.KeepaliveInterval == 0 {
		p.KeepaliveInterval = 20
	}
	if p.KeepaliveCountMax == 0 {
		p.KeepaliveCountMax = 3
	}
	if p.Auth.Method == "" {
		p.Auth.Method = AuthAgent
	}
}

// Validate checks the profile invariants: non-empty name, host and user,
// positive port and keepalive interval, a known auth method, and at least
// one tunnel. Name uniqueness is enforced by the profile store.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("profile host cannot be empty")
	}
	if strings.TrimSpace(p.User) == "" {
		return fmt.Errorf("profile user cannot be empty")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	if p.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be positive")
	}
	if !p.Auth.Valid() {
		return fmt.Errorf("invalid auth method %q", p.Auth.Method)
	}
	if len(p.Tunnels) == 0 {
		return fmt.Errorf("profile must declare at least one tunnel")
	}
	for _, t := range p.Tunnels {
		if t.RemotePort <= 0 || t.RemotePort > 65535 {
			return fmt.Errorf("invalid remote port %d", t.RemotePort)
		}
		if t.LocalPort <= 0 || t.LocalPort > 65535 {
			return fmt.Errorf("invalid local port %d", t.LocalPort)
		}
	}
	return nil
}

// Destination returns the user@host argument passed to the SSH client.
func (p *Profile) Destination() string {
	return fmt.Sprintf("%s@%s", p.User, p.Host)
}
