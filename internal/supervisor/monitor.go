// Package supervisor contains the session core: the per-generation
// monitor, the per-session retry loop, and the manager that serializes
// control commands and owns the active-session table.
package supervisor

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/tunnelward/tunnelward/internal/events"
	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/proc"
)

// connectedMarkers are the diagnostic-stream substrings that indicate the
// reverse tunnel is operational. The detection is heuristic; the list may
// grow but must never shrink.
var connectedMarkers = []string{
	"Authenticated to",
	"pledge: ",
	"debug1: Entering interactive session",
	"debug1: Remote connections from",
}

// defaultPollInterval is how often the monitor polls the process in case
// the output channel never signals the exit.
const defaultPollInterval = 30 * time.Second

// Result classifies how one process generation ended.
type Result int

const (
	// ResultExitedNormally: clean exit, code 0.
	ResultExitedNormally Result = iota
	// ResultExitedWithError: clean exit, non-zero code.
	ResultExitedWithError
	// ResultKilled: terminated by signal, no exit code.
	ResultKilled
	// ResultStopped: external cancellation.
	ResultStopped
)

// Disposition is the monitor's report to its supervisor: the result plus
// the exit code and last diagnostic line for error classification.
type Disposition struct {
	Result   Result
	Code     int
	LastLine string
}

// Monitor watches one spawned child for one generation: it forwards output
// lines as events, detects the connection-established milestone, and
// reports the exit disposition.
type Monitor struct {
	session      *model.SessionHandle
	process      *proc.Process
	bus          *events.Bus
	logw         io.Writer
	pollInterval time.Duration
}

// NewMonitor creates a monitor for one generation. logw, when non-nil,
// receives every output line (the per-session log file); pollInterval 0
// selects the 30-second default.
func NewMonitor(session *model.SessionHandle, process *proc.Process, bus *events.Bus, logw io.Writer, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Monitor{
		session:      session,
		process:      process,
		bus:          bus,
		logw:         logw,
		pollInterval: pollInterval,
	}
}

// Run loops over output lines and periodic wakeups until the generation
// ends. Cancelling ctx kills the child and returns ResultStopped promptly.
func (m *Monitor) Run(ctx context.Context) Disposition {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var lastLine string
	for {
		select {
		case line, ok := <-m.process.Lines():
			if !ok {
				// Stream end is the exit notification: collect the code.
				return m.classify(m.process.Wait(), lastLine)
			}
			lastLine = line.Text
			m.handleLine(line)

		case <-ticker.C:
			// The child may have exited without the channel signaling yet.
			// A live child makes this a no-op.
			if st := m.process.TryWait(); st != nil {
				return m.classify(*st, lastLine)
			}

		case <-ctx.Done():
			m.process.Kill()
			return Disposition{Result: ResultStopped}
		}
	}
}

func (m *Monitor) handleLine(line proc.Line) {
	if m.logw != nil {
		_, _ = io.WriteString(m.logw, line.Text+"\n")
	}

	snap := m.session.Snapshot()
	m.bus.Publish(model.OutputEvent(snap.ID, snap.ProfileName, line.Text, line.Stderr))

	if snap.Status == model.StatusStarting && isConnectionEstablished(line.Text) {
		m.markConnected()
	}
}

func isConnectionEstablished(line string) bool {
	for _, marker := range connectedMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// markConnected drives Starting → Connected. The status-changed event is
// published inside the write position, before the connected event, so no
// observer can see the new status without its events.
func (m *Monitor) markConnected() {
	m.session.Update(func(s *model.Session) {
		if s.Status != model.StatusStarting {
			return
		}
		old := s.Status
		s.Status = model.StatusConnected
		now := time.Now().UTC()
		s.ConnectedAt = &now
		m.bus.Publish(model.StatusChangedEvent(s.ID, s.ProfileName, old, s.Status))
		m.bus.Publish(model.ConnectedEvent(s.ID, s.ProfileName))
	})
}

func (m *Monitor) classify(st proc.ExitStatus, lastLine string) Disposition {
	switch {
	case st.Signaled:
		return Disposition{Result: ResultKilled}
	case st.Code == 0:
		return Disposition{Result: ResultExitedNormally}
	default:
		return Disposition{Result: ResultExitedWithError, Code: st.Code, LastLine: lastLine}
	}
}
