package supervisor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tunnelward/tunnelward/internal/backoff"
	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/proc"
	"github.com/tunnelward/tunnelward/internal/security"
	"github.com/tunnelward/tunnelward/internal/sshargs"
	"github.com/tunnelward/tunnelward/internal/sshbin"
	"github.com/tunnelward/tunnelward/internal/store"
)

// commandCapacity bounds the command channel; bounded queueing is the
// manager's admission control.
const commandCapacity = 32

// connectTestTimeout is the hard ConnectTimeout handed to the SSH client
// on the connect-test path.
const connectTestTimeout = 10

// StartOptions carries non-persisted, session-scoped inputs for a start.
// Any secret or per-invocation datum that must not be serialized into a
// profile belongs here.
type StartOptions struct {
	Password string
}

// Config tunes the manager. The zero value plus Paths is production
// behavior; tests shrink the backoff and inject a fake starter.
type Config struct {
	Paths     store.Paths
	AppConfig store.AppConfig

	// Starter overrides the real SSH starter (tests). When set, SSH
	// binary resolution is skipped.
	Starter ProcessStarter

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64

	MonitorPollInterval time.Duration

	EventCapacity int
}

type activeSession struct {
	handle      *model.SessionHandle
	cancel      context.CancelFunc
	profileID   uuid.UUID
	profileName string
}

// Manager serializes session control commands through a single-consumer
// command loop. It owns the active-session table, the broadcast event
// bus, and the locator result. The table has a single writer — the
// command loop; supervisors reach it only through the removal command
// they submit when they exit.
type Manager struct {
	cfg     Config
	ssh     sshbin.Info
	starter ProcessStarter
	bus     *events.Bus
	jrnl    *events.Journal

	// active is owned by the command loop; no other goroutine touches it.
	active map[uuid.UUID]*activeSession

	cmds chan command
	done chan struct{}
}

type command struct {
	run func()
}

// New initializes a manager: it resolves the SSH binary (fatal when
// missing), opens the event bus and journal, and starts the command loop.
func New(cfg Config) (*Manager, error) {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}

	m := &Manager{
		cfg:    cfg,
		bus:    events.NewBus(cfg.EventCapacity),
		jrnl:   events.NewJournal(cfg.Paths.EventsFile()),
		active: make(map[uuid.UUID]*activeSession),
		cmds:   make(chan command, commandCapacity),
		done:   make(chan struct{}),
	}

	if cfg.Starter != nil {
		m.starter = cfg.Starter
	} else {
		info, err := sshbin.Locate(cfg.AppConfig.SSH.BinaryPath)
		if err != nil {
			return nil, err
		}
		m.ssh = info
		m.starter = NewSSHStarter(info, cfg.AppConfig.SSH, cfg.Paths)
		m.bus.Publish(model.SSHBinaryChangedEvent(info.Path, info.Version))
		log.Info().Str("path", info.Path).Str("version", info.Version).Msg("resolved ssh binary")
	}

	// Journal subscriber: mirrors every bus event to the JSONL journal.
	ch, cancel := m.bus.Subscribe()
	go func() {
		defer cancel()
		for evt := range ch {
			if err := m.jrnl.Append(evt); err != nil {
				log.Debug().Err(err).Msg("event journal append failed")
			}
		}
	}()

	go m.loop()
	return m, nil
}

// Events returns the manager's broadcast event bus.
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// loop is the single consumer of the command channel: commands execute
// one at a time, so table mutation and event emission finish before the
// caller's reply. The loop outlives Shutdown so that a command racing the
// close can never hang waiting for a consumer; post-shutdown commands are
// rejected inside the handler instead.
func (m *Manager) loop() {
	for cmd := range m.cmds {
		cmd.run()
	}
}

// submit runs fn on the command loop and waits for it to finish. It fails
// with ErrManagerClosed once Shutdown has completed.
func (m *Manager) submit(fn func()) error {
	select {
	case <-m.done:
		return security.ErrManagerClosed
	default:
	}

	errCh := make(chan error, 1)
	m.cmds <- command{run: func() {
		select {
		case <-m.done:
			errCh <- security.ErrManagerClosed
		default:
			fn()
			errCh <- nil
		}
	}}
	return <-errCh
}

// Start creates a session for the profile and spawns its supervisor task.
// It rejects the start when any non-terminal session for the same profile
// id already exists.
func (m *Manager) Start(p *model.Profile, opts StartOptions) (uuid.UUID, error) {
	var (
		sid uuid.UUID
		err error
	)
	// Validate the argument vector up front: a profile that can never
	// produce a safe vector must fail the start itself, before any
	// session record or child process exists.
	if _, aerr := sshargs.BuildTunnelOnly(p, m.argOptions()); aerr != nil {
		return uuid.Nil, &security.SpawnError{Reason: "argument validation failed", Err: aerr}
	}

	serr := m.submit(func() {
		for _, as := range m.active {
			if as.profileID == p.ID && as.handle.Snapshot().Status.Running() {
				err = &security.AlreadyRunningError{Profile: p.Name}
				return
			}
		}

		profile := *p // immutable for the session's lifetime
		session := model.NewSession(profile.ID, profile.Name)
		handle := model.NewSessionHandle(session)
		ctx, cancel := context.WithCancel(context.Background())

		sv := &Supervisor{
			session:  handle,
			profile:  &profile,
			password: opts.Password,
			starter:  m.starter,
			bus:      m.bus,
			backoff: backoff.New(
				m.cfg.BackoffInitial,
				m.cfg.BackoffMax,
				m.cfg.BackoffMultiplier,
				profile.MaxReconnectAttempts,
			),
			logw:         m.openSessionLog(profile.Name),
			pollInterval: m.cfg.MonitorPollInterval,
			onExit:       m.removeSession,
		}

		m.active[session.ID] = &activeSession{
			handle:      handle,
			cancel:      cancel,
			profileID:   profile.ID,
			profileName: profile.Name,
		}
		go sv.Run(ctx)
		sid = session.ID
	})
	if serr != nil {
		return uuid.Nil, serr
	}
	return sid, err
}

// Stop removes the session's row, delivers the stop signal to its
// supervisor, and synchronously transitions the record to Stopped.
func (m *Manager) Stop(sessionID uuid.UUID) error {
	var err error
	serr := m.submit(func() {
		as, ok := m.active[sessionID]
		if !ok {
			err = &security.SessionNotFoundError{ID: sessionID.String()}
			return
		}
		delete(m.active, sessionID)
		m.stopSession(as)
	})
	if serr != nil {
		return serr
	}
	return err
}

// StopAll stops every live session.
func (m *Manager) StopAll() error {
	return m.submit(func() {
		for id, as := range m.active {
			delete(m.active, id)
			m.stopSession(as)
		}
	})
}

// stopSession runs on the command loop. The status write and its event
// happen here, before the command's reply, so the caller observes
// Stopped immediately.
func (m *Manager) stopSession(as *activeSession) {
	as.cancel()
	as.handle.Update(func(s *model.Session) {
		if s.Status.Terminal() {
			return
		}
		old := s.Status
		s.Status = model.StatusStopped
		s.PID = 0
		m.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
	})
}

// Status returns a snapshot of all live session records, ordered by
// creation time.
func (m *Manager) Status() ([]model.Session, error) {
	var out []model.Session
	err := m.submit(func() {
		for _, as := range m.active {
			out = append(out, as.handle.Snapshot())
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// StatusOf returns one session's snapshot.
func (m *Manager) StatusOf(sessionID uuid.UUID) (model.Session, error) {
	var (
		s   model.Session
		err error
	)
	serr := m.submit(func() {
		as, ok := m.active[sessionID]
		if !ok {
			err = &security.SessionNotFoundError{ID: sessionID.String()}
			return
		}
		s = as.handle.Snapshot()
	})
	if serr != nil {
		return model.Session{}, serr
	}
	return s, err
}

// Shutdown stops every session and terminates the command loop;
// subsequent commands fail with ErrManagerClosed.
func (m *Manager) Shutdown() error {
	err := m.StopAll()
	select {
	case <-m.done:
		return security.ErrManagerClosed
	default:
		close(m.done)
	}
	m.bus.Close()
	return err
}

// AutoStart starts every profile the state snapshot recorded as connected.
// Missing profiles are skipped with a warning.
func (m *Manager) AutoStart(profiles []model.Profile, state store.AppState) {
	byID := make(map[uuid.UUID]model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for _, id := range state.AutoStartProfiles() {
		p, ok := byID[id]
		if !ok {
			log.Warn().Str("profile_id", id.String()).Msg("auto-start profile no longer exists")
			continue
		}
		if _, err := m.Start(&p, StartOptions{}); err != nil {
			log.Warn().Str("profile", p.Name).Err(err).Msg("auto-start failed")
		}
	}
}

// argOptions derives the builder options from the app-level SSH config.
func (m *Manager) argOptions() sshargs.Options {
	opts := sshargs.Options{
		StrictHostKeyChecking: m.cfg.AppConfig.SSH.StrictHostKeyChecking,
		DefaultOptions:        m.cfg.AppConfig.SSH.DefaultOptions,
	}
	if m.cfg.AppConfig.SSH.UseAppKnownHosts {
		opts.KnownHostsFile = m.cfg.Paths.KnownHostsFile()
	}
	return opts
}

// Test runs a connect probe for the profile: the standard vector plus a
// hard ConnectTimeout, no tunnels supervision. It returns nil when the
// client authenticated and exited cleanly.
func (m *Manager) Test(p *model.Profile) error {
	if m.ssh.Path == "" {
		return security.ErrSSHNotFound
	}
	opts := m.argOptions()
	opts.ConnectTimeout = connectTestTimeout
	args, err := sshargs.Build(p, opts)
	if err != nil {
		return err
	}
	args = append(args, "exit")

	child, err := proc.Spawn(m.ssh.Path, args, nil)
	if err != nil {
		return &security.SpawnError{Reason: "exec failed", Err: err}
	}
	defer child.Close()

	var lastLine string
	for line := range child.Lines() {
		lastLine = line.Text
	}
	st := child.Wait()
	if st.Signaled {
		return security.ErrCancelled
	}
	if st.Code != 0 {
		return &security.ExitError{Code: st.Code, Message: lastLine}
	}
	return nil
}

// removeSession is the supervisor's exit hook: it submits the removal to
// the command loop so the table keeps its single writer. Idempotent if
// the manager already removed the row.
func (m *Manager) removeSession(id uuid.UUID) {
	_ = m.submit(func() {
		delete(m.active, id)
	})
}

// openSessionLog opens the per-session output log under data-dir/logs.
// Logging failures are not fatal to the session.
func (m *Manager) openSessionLog(profileName string) io.WriteCloser {
	dir := m.cfg.Paths.LogsDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Warn().Err(err).Msg("cannot create session log directory")
		return nil
	}
	path := filepath.Join(dir, store.SanitizeName(profileName)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot open session log")
		return nil
	}
	return f
}
