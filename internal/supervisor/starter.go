package supervisor

import (
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/proc"
	"github.com/tunnelward/tunnelward/internal/security"
	"github.com/tunnelward/tunnelward/internal/sshargs"
	"github.com/tunnelward/tunnelward/internal/sshbin"
	"github.com/tunnelward/tunnelward/internal/store"
)

// ProcessStarter abstracts SSH child creation so tests can substitute a
// scripted stub for the real client.
type ProcessStarter interface {
	Start(p *model.Profile, password string) (*proc.Process, error)
}

// SSHStarter launches the real external SSH client for supervised
// sessions.
type SSHStarter struct {
	ssh   sshbin.Info
	cfg   store.SSHConfig
	paths store.Paths

	// PasswordHelper, when set, is used instead of looking up sshpass on
	// PATH.
	PasswordHelper string
}

// NewSSHStarter creates a starter using the resolved SSH binary and the
// app-level SSH defaults.
func NewSSHStarter(ssh sshbin.Info, cfg store.SSHConfig, paths store.Paths) *SSHStarter {
	return &SSHStarter{ssh: ssh, cfg: cfg, paths: paths}
}

func (s *SSHStarter) buildOptions() sshargs.Options {
	opts := sshargs.Options{
		StrictHostKeyChecking: s.cfg.StrictHostKeyChecking,
		DefaultOptions:        s.cfg.DefaultOptions,
	}
	if s.cfg.UseAppKnownHosts {
		opts.KnownHostsFile = s.paths.KnownHostsFile()
	}
	return opts
}

// Start spawns one tunnel generation for the profile. For password auth
// the child is wrapped in the sshpass helper with the password passed via
// the SSHPASS environment variable on the child only — it never enters the
// argument vector, a file, or a log.
func (s *SSHStarter) Start(p *model.Profile, password string) (*proc.Process, error) {
	args, err := sshargs.BuildTunnelOnly(p, s.buildOptions())
	if err != nil {
		return nil, &security.SpawnError{Reason: "argument validation failed", Err: err}
	}

	binary := s.ssh.Path
	if p.SSHBinary != "" {
		binary = p.SSHBinary
	}

	var extraEnv []string
	if p.Auth.Method == model.AuthPassword {
		if password == "" {
			return nil, &security.SpawnError{Reason: "password auth requested but no password was provided"}
		}
		helper, err := s.lookupPasswordHelper()
		if err != nil {
			return nil, err
		}
		// sshpass -e reads the password from SSHPASS and answers the
		// client's prompt.
		args = append([]string{"-e", binary}, args...)
		binary = helper
		extraEnv = []string{"SSHPASS=" + password}
	}

	log.Debug().Str("binary", binary).Strs("args", security.RedactArgs(args)).Msg("spawning ssh client")

	child, err := proc.Spawn(binary, args, extraEnv)
	if err != nil {
		return nil, &security.SpawnError{Reason: "exec failed", Err: err}
	}
	return child, nil
}

func (s *SSHStarter) lookupPasswordHelper() (string, error) {
	if s.PasswordHelper != "" {
		return s.PasswordHelper, nil
	}
	helper, err := exec.LookPath("sshpass")
	if err != nil {
		return "", &security.SpawnError{Reason: "password auth requires the sshpass helper, which was not found in PATH"}
	}
	return helper, nil
}
