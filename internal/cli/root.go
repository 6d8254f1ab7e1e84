// Package cli provides the command-line interface for tunnelward, built
// with Cobra.
//
// Command tree:
//
//	tunnelward                     → launches the live dashboard
//	tunnelward profile list|show|create|update|delete
//	tunnelward up <profile>        → start a supervised session
//	tunnelward down <id> | --all   → stop session(s)
//	tunnelward status [--json]     → session table
//	tunnelward logs <profile>      → per-session output log
//	tunnelward test <profile>      → connect probe
//	tunnelward connect <profile>   → interactive SSH session
//	tunnelward serve               → web control surface
//
// All commands share the same backend packages (internal/store,
// internal/supervisor); no business logic lives here.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/logging"
	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/security"
	"github.com/tunnelward/tunnelward/internal/store"
	"github.com/tunnelward/tunnelward/internal/supervisor"
	"github.com/tunnelward/tunnelward/internal/tui"
	"github.com/tunnelward/tunnelward/internal/web"
)

// App bundles the shared state every subcommand needs.
type App struct {
	Paths    store.Paths
	Config   store.AppConfig
	Profiles *store.ProfileStore
}

// NewRootCommand builds the top-level command. The dashboard is the
// default experience; subcommands cover scripting and automation.
func NewRootCommand() *cobra.Command {
	var configRoot string
	app := &App{}

	root := &cobra.Command{
		Use:           "tunnelward",
		Short:         "Reverse SSH tunnel supervisor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configRoot != "" {
				app.Paths = store.TestPaths(configRoot)
			} else {
				app.Paths = store.DefaultPaths()
			}
			cfg, err := store.LoadConfig(app.Paths)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Profiles = store.NewProfileStore(app.Paths)
			logging.Setup(cfg.Logging, app.Paths)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)
			app.autoStart(mgr)
			return tui.Run(mgr)
		},
	}
	root.PersistentFlags().StringVar(&configRoot, "config-dir", "", "root directory for config and data (testing/overrides)")

	root.AddCommand(newProfileCmd(app))
	root.AddCommand(newUpCmd(app))
	root.AddCommand(newDownCmd(app))
	root.AddCommand(newStatusCmd(app))
	root.AddCommand(newLogsCmd(app))
	root.AddCommand(newTestCmd(app))
	root.AddCommand(newConnectCmd(app))
	root.AddCommand(newServeCmd(app))
	root.AddCommand(newKnownHostsCmd(app))
	return root
}

func newKnownHostsCmd(app *App) *cobra.Command {
	root := &cobra.Command{Use: "known-hosts", Short: "Manage the app-owned known_hosts file"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded host keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			kh := store.NewKnownHosts(app.Paths.KnownHostsFile())
			if err := kh.Load(); err != nil {
				return err
			}
			for _, e := range kh.Entries() {
				fmt.Printf("%-32s %-16s %s\n", e.Host, e.KeyType, e.Comment)
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <host>",
		Short: "Forget a host's recorded key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kh := store.NewKnownHosts(app.Paths.KnownHostsFile())
			if err := kh.Load(); err != nil {
				return err
			}
			if !kh.IsKnown(args[0]) {
				return fmt.Errorf("host %q has no recorded key", args[0])
			}
			kh.Remove(args[0])
			return kh.Save()
		},
	}

	root.AddCommand(list, remove)
	return root
}

func (a *App) newManager() (*supervisor.Manager, error) {
	return supervisor.New(supervisor.Config{
		Paths:     a.Paths,
		AppConfig: a.Config,
	})
}

// shutdown persists the session snapshot before the manager goes away, so
// connected sessions restart on next launch.
func (a *App) shutdown(mgr *supervisor.Manager) {
	if sessions, err := mgr.Status(); err == nil {
		_ = store.SaveState(a.Paths, store.StateFromSessions(sessions))
	}
	_ = mgr.Shutdown()
}

func (a *App) autoStart(mgr *supervisor.Manager) {
	if !a.Config.General.AutoStartSessions {
		return
	}
	state, err := store.LoadState(a.Paths)
	if err != nil {
		return
	}
	profiles, err := a.Profiles.List()
	if err != nil {
		return
	}
	mgr.AutoStart(profiles, state)
}

// signalContext cancels on SIGINT/SIGTERM and reports whether an
// interrupt happened, for the 130 exit code.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// parseTunnelFlag accepts "remote-bind:remote-port:local-host:local-port"
// or the "remote-port:local-port" shorthand.
func parseTunnelFlag(s string) (model.TunnelSpec, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 2:
		rp, err1 := strconv.Atoi(parts[0])
		lp, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return model.TunnelSpec{}, fmt.Errorf("invalid tunnel %q: ports must be numeric", s)
		}
		return model.TunnelSpec{RemotePort: rp, LocalPort: lp}, nil
	case 4:
		rp, err1 := strconv.Atoi(parts[1])
		lp, err2 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil {
			return model.TunnelSpec{}, fmt.Errorf("invalid tunnel %q: ports must be numeric", s)
		}
		return model.TunnelSpec{RemoteBind: parts[0], RemotePort: rp, LocalHost: parts[2], LocalPort: lp}, nil
	default:
		return model.TunnelSpec{}, fmt.Errorf("invalid tunnel %q: want remote-bind:remote-port:local-host:local-port or remote-port:local-port", s)
	}
}

func newProfileCmd(app *App) *cobra.Command {
	root := &cobra.Command{Use: "profile", Short: "Manage connection profiles"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := app.Profiles.List()
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %-28s %-8s %-10s %s\n", "NAME", "DESTINATION", "PORT", "AUTH", "TUNNELS")
			for _, p := range profiles {
				fmt.Printf("%-24s %-28s %-8d %-10s %d\n", p.Name, p.Destination(), p.Port, p.Auth.Method, len(p.Tunnels))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles.Get(args[0])
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}

	var (
		host        string
		user        string
		port        int
		authMethod  string
		keyPath     string
		tunnelFlags []string
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := model.NewProfile(args[0], host, user)
			p.Port = port
			p.Auth = model.AuthMethod{Method: authMethod, KeyPath: keyPath}
			p.ApplyDefaults()
			for _, tf := range tunnelFlags {
				spec, err := parseTunnelFlag(tf)
				if err != nil {
					return err
				}
				p.Tunnels = append(p.Tunnels, spec)
			}
			if err := app.Profiles.Create(p); err != nil {
				return err
			}
			fmt.Printf("created profile %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	create.Flags().StringVar(&host, "host", "", "remote host (required)")
	create.Flags().StringVar(&user, "user", "", "remote user (required)")
	create.Flags().IntVar(&port, "port", 22, "remote SSH port")
	create.Flags().StringVar(&authMethod, "auth", model.AuthAgent, "auth method: agent, key-file, password")
	create.Flags().StringVar(&keyPath, "key", "", "private key path for key-file auth")
	create.Flags().StringArrayVar(&tunnelFlags, "tunnel", nil, "reverse tunnel spec (repeatable)")
	_ = create.MarkFlagRequired("host")
	_ = create.MarkFlagRequired("user")
	_ = create.MarkFlagRequired("tunnel")

	var rename string
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Update (and optionally rename) a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles.Get(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				p.Host = host
			}
			if cmd.Flags().Changed("user") {
				p.User = user
			}
			if cmd.Flags().Changed("port") {
				p.Port = port
			}
			if cmd.Flags().Changed("auth") {
				p.Auth = model.AuthMethod{Method: authMethod, KeyPath: keyPath}
			}
			if cmd.Flags().Changed("tunnel") {
				p.Tunnels = nil
				for _, tf := range tunnelFlags {
					spec, err := parseTunnelFlag(tf)
					if err != nil {
						return err
					}
					p.Tunnels = append(p.Tunnels, spec)
				}
			}
			if rename != "" {
				p.Name = rename
			}
			return app.Profiles.Update(args[0], &p)
		},
	}
	update.Flags().StringVar(&host, "host", "", "remote host")
	update.Flags().StringVar(&user, "user", "", "remote user")
	update.Flags().IntVar(&port, "port", 22, "remote SSH port")
	update.Flags().StringVar(&authMethod, "auth", model.AuthAgent, "auth method")
	update.Flags().StringVar(&keyPath, "key", "", "private key path")
	update.Flags().StringArrayVar(&tunnelFlags, "tunnel", nil, "replace tunnel specs")
	update.Flags().StringVar(&rename, "rename", "", "new profile name")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Profiles.Delete(args[0])
		},
	}

	root.AddCommand(list, show, create, update, del)
	return root
}

func newUpCmd(app *App) *cobra.Command {
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "up <profile>",
		Short: "Start a supervised session and keep it running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles.Get(args[0])
			if err != nil {
				return err
			}

			var opts supervisor.StartOptions
			if p.Auth.Method == model.AuthPassword {
				if !passwordStdin {
					return fmt.Errorf("profile %q uses password auth; pass --password-stdin", p.Name)
				}
				pw, err := readLine(os.Stdin)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				opts.Password = pw
			}

			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)

			sid, err := mgr.Start(&p, opts)
			if err != nil {
				return err
			}
			fmt.Printf("session %s started for profile %s\n", sid, p.Name)

			// Sessions live inside this process: supervise until
			// interrupted.
			ctx, cancel := signalContext()
			defer cancel()
			<-ctx.Done()
			return security.ErrInterrupted
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the session password from stdin")
	return cmd
}

func newDownCmd(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down [session-id]",
		Short: "Stop a session by id, or all sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)

			if all {
				return mgr.StopAll()
			}
			if len(args) != 1 {
				return fmt.Errorf("pass a session id or --all")
			}
			sid, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			return mgr.Stop(sid)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "stop every session")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)

			sessions, err := mgr.Status()
			if err != nil {
				return err
			}
			if asJSON {
				b, err := json.MarshalIndent(sessions, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			fmt.Printf("%-24s %-14s %-8s %-8s %s\n", "PROFILE", "STATUS", "PID", "RETRIES", "LAST ERROR")
			for _, s := range sessions {
				pid := "-"
				if s.PID > 0 {
					pid = strconv.Itoa(s.PID)
				}
				fmt.Printf("%-24s %-14s %-8s %-8d %s\n", s.ProfileName, s.Status, pid, s.ReconnectCount, s.LastError)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func newLogsCmd(app *App) *cobra.Command {
	var showEvents bool
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <profile>",
		Short: "Print a profile's session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showEvents {
				evts, err := events.NewJournal(app.Paths.EventsFile()).Read(
					journalQuery(args[0], limit),
				)
				if err != nil {
					return err
				}
				for _, e := range evts {
					fmt.Printf("%s %-16s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, eventDetail(e))
				}
				return nil
			}

			path := sessionLogPath(app.Paths, args[0])
			b, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no log recorded for profile %q", args[0])
				}
				return err
			}
			_, err = os.Stdout.Write(b)
			return err
		},
	}
	cmd.Flags().BoolVar(&showEvents, "events", false, "show lifecycle events instead of client output")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum events to print")
	return cmd
}

func newTestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test <profile>",
		Short: "Probe the connection without starting a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles.Get(args[0])
			if err != nil {
				return err
			}
			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)

			if err := mgr.Test(&p); err != nil {
				return fmt.Errorf("connect test failed: %w", err)
			}
			fmt.Printf("profile %s: connection ok\n", p.Name)
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web control surface until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.newManager()
			if err != nil {
				return err
			}
			defer app.shutdown(mgr)
			app.autoStart(mgr)

			cfg := app.Config.Web
			if !cfg.Enabled {
				// serve is an explicit request; honor it even when the
				// config leaves the web surface disabled by default.
				cfg.Enabled = true
			}
			srv := web.NewServer(mgr, app.Profiles, cfg)

			ctx, cancel := signalContext()
			defer cancel()
			if err := srv.ListenAndServe(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return security.ErrInterrupted
			}
			return nil
		},
	}
}
