package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tunnelward/tunnelward/internal/backoff"
	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/model"
)

// panicWriter blows up the supervisor goroutine from inside the monitor's
// line handling, simulating an unexpected abort mid-generation.
type panicWriter struct{}

func (panicWriter) Write(p []byte) (int, error) { panic("injected supervisor fault") }
func (panicWriter) Close() error                { return nil }

// TestSupervisorAbortKillsChild is the forced-abort scenario: the
// supervisor task dies on a panic while a generation is live, and the
// child must still be observed to die within a bounded time. The panic is
// contained, the session fails, and the exit hook still fires.
func TestSupervisorAbortKillsChild(t *testing.T) {
	handle := model.NewSessionHandle(model.NewSession(uuid.New(), "abort"))
	bus := events.NewBus(0)
	defer bus.Close()

	removed := make(chan uuid.UUID, 1)
	sv := &Supervisor{
		session: handle,
		profile: testProfile("abort"),
		starter: &scriptedStarter{scripts: []string{`echo "tripwire"; sleep 30`}},
		bus:     bus,
		backoff: backoff.New(10*time.Millisecond, time.Minute, 2, 0),
		// The first output line hits this writer and panics the
		// supervisor goroutine mid-generation.
		logw:         panicWriter{},
		pollInterval: time.Second,
		onExit:       func(id uuid.UUID) { removed <- id },
	}
	go sv.Run(context.Background())

	// Wait for the generation to be live and grab its pid.
	var pid int
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := handle.Snapshot(); s.PID > 0 {
			pid = s.PID
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pid <= 0 {
		t.Fatal("generation never came up")
	}

	// The abort must not leak the child: it dies within a bounded time.
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if pidAlive(pid) {
		t.Fatalf("child pid %d survived the supervisor abort", pid)
	}

	// The panic is contained: the session is failed and the exit hook ran.
	select {
	case <-removed:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor exit hook never fired after the abort")
	}
	if got := handle.Snapshot().Status; got != model.StatusFailed {
		t.Fatalf("aborted session must be failed, got %s", got)
	}
}
