// Package sshbin locates the external SSH client binary and probes its
// version string. It never mutates anything; a failed lookup is fatal to
// manager initialization.
package sshbin

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tunnelward/tunnelward/internal/security"
)

// Info describes the resolved SSH binary.
type Info struct {
	// Path to the binary.
	Path string
	// Version string as reported by `ssh -V` (may be empty if probing failed).
	Version string
	// IsOpenSSH is true when the version names OpenSSH.
	IsOpenSSH bool
}

// Locate resolves the SSH binary in priority order: the explicit override,
// a PATH lookup for "ssh", then a short list of common absolute paths for
// the platform. The returned Info carries the probed version when
// available.
func Locate(override string) (Info, error) {
	if override != "" {
		st, err := os.Stat(override)
		if err != nil || st.IsDir() {
			return Info{}, &security.NotExecutableError{Path: override}
		}
		return probe(override), nil
	}

	if path, err := exec.LookPath("ssh"); err == nil {
		return probe(path), nil
	}

	for _, path := range commonPaths() {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return probe(path), nil
		}
	}

	return Info{}, security.ErrSSHNotFound
}

func probe(path string) Info {
	info := Info{Path: path}
	if v, err := Version(path); err == nil {
		info.Version = v
		info.IsOpenSSH = strings.Contains(v, "OpenSSH")
	}
	return info
}

// Version runs `ssh -V` and returns the reported version string. OpenSSH
// prints it on stderr, so stderr is preferred over stdout.
func Version(path string) (string, error) {
	cmd := exec.Command(path, "-V")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// ssh -V exits 0 on OpenSSH but some implementations return non-zero;
	// the output is what matters.
	_ = cmd.Run()

	out := strings.TrimSpace(stderr.String())
	if out == "" {
		out = strings.TrimSpace(stdout.String())
	}
	if out == "" {
		return "", &security.NotExecutableError{Path: path}
	}
	return out, nil
}

func commonPaths() []string {
	switch runtime.GOOS {
	case "windows":
		var paths []string
		if root := os.Getenv("SystemRoot"); root != "" {
			paths = append(paths, filepath.Join(root, "System32", "OpenSSH", "ssh.exe"))
		}
		if pf := os.Getenv("ProgramFiles"); pf != "" {
			paths = append(paths, filepath.Join(pf, "Git", "usr", "bin", "ssh.exe"))
		}
		return paths
	case "darwin":
		return []string{"/usr/bin/ssh", "/usr/local/bin/ssh", "/opt/homebrew/bin/ssh"}
	default:
		return []string{"/usr/bin/ssh", "/usr/local/bin/ssh", "/bin/ssh"}
	}
}
