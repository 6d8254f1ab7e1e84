package cli

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/spf13/cobra"

	"github.com/tunnelward/tunnelward/internal/sshargs"
	"github.com/tunnelward/tunnelward/internal/sshbin"
)

// newConnectCmd opens an interactive SSH session to a profile's
// destination. The session runs inside a PTY so password prompts, line
// editing, and resizing behave like a plain ssh invocation; tunnels are
// not supervised here.
func newConnectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <profile>",
		Short: "Open an interactive SSH session to a profile's host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles.Get(args[0])
			if err != nil {
				return err
			}

			info, err := sshbin.Locate(app.Config.SSH.BinaryPath)
			if err != nil {
				return err
			}

			opts := sshargs.Options{
				StrictHostKeyChecking: app.Config.SSH.StrictHostKeyChecking,
				DefaultOptions:        app.Config.SSH.DefaultOptions,
			}
			if app.Config.SSH.UseAppKnownHosts {
				opts.KnownHostsFile = app.Paths.KnownHostsFile()
			}
			// The interactive variant: no -N/-T, so the remote side
			// gets a shell.
			sshArgs, err := sshargs.Build(&p, opts)
			if err != nil {
				return err
			}

			c := exec.Command(info.Path, sshArgs...)

			// Start inside a PTY and wire it to the user's terminal.
			f, err := pty.Start(c)
			if err != nil {
				return err
			}
			defer f.Close()

			go func() {
				_, _ = io.Copy(f, os.Stdin)
			}()
			_, _ = io.Copy(os.Stdout, f)

			return c.Wait()
		},
	}
}
