// Package sshargs builds the argument vector handed to the external SSH
// client. It only ever produces an argv slice, never a shell command
// string, and it rejects option values that could smuggle data into shell
// execution on either side of the connection.
package sshargs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tunnelward/tunnelward/internal/model"
)

// Options carries application-level settings merged into the vector on top
// of the profile. The profile always wins where both specify a value.
type Options struct {
	// StrictHostKeyChecking is one of "yes", "accept-new", "no";
	// empty omits the option.
	StrictHostKeyChecking string

	// KnownHostsFile is the app-managed known_hosts path; a profile
	// override takes precedence.
	KnownHostsFile string

	// ConnectTimeout, in seconds, adds -o ConnectTimeout for the
	// connect-test path. 0 omits it.
	ConnectTimeout int

	// DefaultOptions are config-level -o defaults applied before the
	// profile's extra options.
	DefaultOptions map[string]string
}

// Build produces the ordered argument vector for a profile:
// one -R per tunnel, keepalive and safety options, authentication options,
// known-hosts override, extra options, non-default port, and the
// destination last. The result has already passed Validate.
func Build(p *model.Profile, opts Options) ([]string, error) {
	var args []string

	for _, t := range p.Tunnels {
		args = append(args, "-R", t.String())
	}

	args = appendOption(args, "ServerAliveInterval", strconv.Itoa(p.KeepaliveInterval))
	args = appendOption(args, "ServerAliveCountMax", strconv.Itoa(p.KeepaliveCountMax))
	args = appendOption(args, "ExitOnForwardFailure", "yes")

	// BatchMode disables interactive prompts; password auth needs them
	// answered by the helper, so the option is omitted there.
	if p.Auth.Method != model.AuthPassword {
		args = appendOption(args, "BatchMode", "yes")
	}

	switch p.Auth.Method {
	case model.AuthAgent:
		args = appendOption(args, "IdentitiesOnly", "yes")
	case model.AuthKeyFile:
		args = append(args, "-i", p.Auth.KeyPath)
		args = appendOption(args, "IdentitiesOnly", "yes")
	}

	// The profile's identity override only applies when key-file auth
	// did not already pin a key: -i must appear at most once.
	if p.Auth.Method != model.AuthKeyFile && p.IdentityFile != "" {
		args = append(args, "-i", p.IdentityFile)
	}

	if opts.StrictHostKeyChecking != "" {
		args = appendOption(args, "StrictHostKeyChecking", opts.StrictHostKeyChecking)
	}
	if opts.ConnectTimeout > 0 {
		args = appendOption(args, "ConnectTimeout", strconv.Itoa(opts.ConnectTimeout))
	}

	knownHosts := opts.KnownHostsFile
	if p.KnownHostsFile != "" {
		knownHosts = p.KnownHostsFile
	}
	if knownHosts != "" {
		args = appendOption(args, "UserKnownHostsFile", knownHosts)
	}

	for _, k := range sortedKeys(opts.DefaultOptions) {
		if _, shadowed := p.ExtraOptions[k]; shadowed {
			continue
		}
		args = appendOption(args, k, opts.DefaultOptions[k])
	}
	for _, k := range sortedKeys(p.ExtraOptions) {
		args = appendOption(args, k, p.ExtraOptions[k])
	}

	if p.Port != 22 {
		args = append(args, "-p", strconv.Itoa(p.Port))
	}

	args = append(args, p.Destination())

	if err := Validate(args); err != nil {
		return nil, err
	}
	return args, nil
}

// BuildTunnelOnly is the variant used for supervised sessions: it prepends
// -N (no remote command) and -T (no TTY) to the standard vector.
func BuildTunnelOnly(p *model.Profile, opts Options) ([]string, error) {
	args, err := Build(p, opts)
	if err != nil {
		return nil, err
	}
	return append([]string{"-N", "-T"}, args...), nil
}

// Validate rejects argument vectors that could escape into shell
// execution: NUL bytes, LocalCommand/PermitLocalCommand in any form, and
// ProxyCommand values containing ';', '|' or a backtick.
func Validate(args []string) error {
	for _, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("argument contains NUL byte")
		}
		lower := strings.ToLower(arg)
		if strings.Contains(lower, "permitlocalcommand") {
			return fmt.Errorf("PermitLocalCommand option is not allowed")
		}
		if strings.Contains(lower, "localcommand") {
			return fmt.Errorf("LocalCommand option is not allowed")
		}
		if strings.Contains(lower, "proxycommand") {
			_, value, _ := strings.Cut(arg, "=")
			if strings.ContainsAny(value, ";|`") {
				return fmt.Errorf("ProxyCommand value contains shell metacharacters")
			}
		}
	}
	return nil
}

func appendOption(args []string, key, value string) []string {
	return append(args, "-o", key+"="+value)
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
