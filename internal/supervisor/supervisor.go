package supervisor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tunnelward/tunnelward/internal/backoff"
	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/proc"
	"github.com/tunnelward/tunnelward/internal/security"
)

// Supervisor owns one session's retry loop: it repeatedly spawns the SSH
// child, hands each generation to a monitor, applies backoff between
// failures, and honors the stop signal at every suspension point. The
// profile is immutable for the session's lifetime.
type Supervisor struct {
	session  *model.SessionHandle
	profile  *model.Profile
	password string
	starter  ProcessStarter
	bus      *events.Bus
	backoff  *backoff.Backoff

	logw         io.WriteCloser
	pollInterval time.Duration

	// onExit removes the session from the manager's table; idempotent.
	onExit func(id uuid.UUID)
}

// Run drives the retry loop until the session reaches a terminal state or
// ctx is cancelled. It is the session record's single writer; the manager
// only writes Stopped on an external stop.
//
// A panic anywhere in the loop is contained here: the session fails, the
// row is removed, and no other supervisor is affected. The per-generation
// child is closed by runGeneration's defer on the same unwind, so an
// abort cannot leak an SSH process.
func (sv *Supervisor) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("profile", sv.profile.Name).Interface("panic", r).Msg("supervisor aborted")
			sv.markFailed(fmt.Errorf("supervisor aborted: %v", r))
		}
		if sv.logw != nil {
			sv.logw.Close()
		}
		if sv.onExit != nil {
			sv.onExit(sv.session.Snapshot().ID)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			sv.markStopped()
			return
		default:
		}

		child, err := sv.starter.Start(sv.profile, sv.password)
		if err != nil {
			if !sv.scheduleRetry(ctx, err) {
				return
			}
			continue
		}

		sv.markStarting(child.PID())

		disp := sv.runGeneration(ctx, child)
		sv.clearPID()

		switch disp.Result {
		case ResultExitedNormally:
			// A clean exit means the session ran to completion, not a
			// failure: it is the only path that resets backoff.
			sv.backoff.Reset()
			sv.emitDisconnected("")
			if !sv.profile.AutoReconnect {
				sv.markStopped()
				return
			}

		case ResultExitedWithError:
			exitErr := &security.ExitError{Code: disp.Code, Message: disp.LastLine}
			sv.recordError(exitErr)
			sv.emitDisconnected(disp.LastLine)
			if !sv.scheduleRetry(ctx, exitErr) {
				return
			}
			continue

		case ResultKilled:
			sv.markStopped()
			return

		case ResultStopped:
			sv.markStopped()
			return
		}

		// Clean exit with auto-reconnect on: wait out the (reset) backoff
		// before the next generation.
		if !sv.sleepOrStop(ctx) {
			return
		}
	}
}

// runGeneration hands one spawned child to a monitor. The deferred Close
// guards the whole window between spawn and exit: a panic inside the
// monitor still kills the child on unwind.
func (sv *Supervisor) runGeneration(ctx context.Context, child *proc.Process) Disposition {
	defer child.Close()
	return NewMonitor(sv.session, child, sv.bus, sv.logw, sv.pollInterval).Run(ctx)
}

// scheduleRetry records err and either arms the next attempt (emitting the
// reconnecting transition and sleeping the backoff delay) or drives the
// session to Failed. It returns false when the loop must end.
func (sv *Supervisor) scheduleRetry(ctx context.Context, cause error) bool {
	sv.recordError(cause)

	if !sv.profile.AutoReconnect {
		sv.markFailed(cause)
		return false
	}
	delay, ok := sv.backoff.NextDelay()
	if !ok {
		sv.markFailed(security.ErrMaxReconnectAttempts)
		return false
	}

	sv.markReconnecting()

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		// A stop during the backoff sleep aborts it immediately.
		sv.markStopped()
		return false
	}
}

func (sv *Supervisor) sleepOrStop(ctx context.Context) bool {
	delay, ok := sv.backoff.NextDelay()
	if !ok {
		sv.markFailed(security.ErrMaxReconnectAttempts)
		return false
	}
	sv.markReconnecting()
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		sv.markStopped()
		return false
	}
}

func (sv *Supervisor) markStarting(pid int) {
	sv.session.Update(func(s *model.Session) {
		old := s.Status
		s.PID = pid
		s.Status = model.StatusStarting
		if old != s.Status {
			sv.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
		}
	})
}

func (sv *Supervisor) markReconnecting() {
	maxAttempts := sv.backoff.MaxAttempts()
	sv.session.Update(func(s *model.Session) {
		old := s.Status
		s.Status = model.StatusReconnecting
		s.ReconnectCount++
		if old != s.Status {
			sv.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
		}
		sv.bus.Publish(model.ReconnectingEvent(s.ID, s.ProfileName, s.ReconnectCount, maxAttempts))
	})
}

func (sv *Supervisor) markFailed(cause error) {
	msg := security.RedactMessage(cause.Error())
	sv.session.Update(func(s *model.Session) {
		if s.Status.Terminal() {
			return
		}
		old := s.Status
		s.Status = model.StatusFailed
		s.PID = 0
		s.LastError = msg
		sv.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
		sv.bus.Publish(model.FailedEvent(s.ID, s.ProfileName, msg))
	})
	log.Warn().Str("profile", sv.profile.Name).Str("error", msg).Msg("session failed")
}

// markStopped is idempotent: when the manager already wrote Stopped on an
// external stop, the supervisor leaves the record alone.
func (sv *Supervisor) markStopped() {
	sv.session.Update(func(s *model.Session) {
		if s.Status.Terminal() {
			return
		}
		old := s.Status
		s.Status = model.StatusStopped
		s.PID = 0
		sv.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
	})
}

func (sv *Supervisor) clearPID() {
	sv.session.Update(func(s *model.Session) {
		s.PID = 0
	})
}

func (sv *Supervisor) recordError(err error) {
	msg := security.RedactMessage(err.Error())
	sv.session.Update(func(s *model.Session) {
		s.LastError = msg
	})
}

func (sv *Supervisor) emitDisconnected(reason string) {
	snap := sv.session.Snapshot()
	sv.bus.Publish(model.DisconnectedEvent(snap.ID, snap.ProfileName, reason))
}
