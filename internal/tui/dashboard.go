// Package tui provides the live session dashboard: a Bubble Tea program
// showing every supervised session, refreshed from the event stream plus
// a periodic snapshot tick.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/tunnelward/tunnelward/internal/model"
	"github.com/tunnelward/tunnelward/internal/supervisor"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Faint(true).Padding(0, 1)

	statusStyles = map[model.Status]lipgloss.Style{
		model.StatusConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		model.StatusStarting:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		model.StatusReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		model.StatusStopped:      lipgloss.NewStyle().Faint(true),
		model.StatusFailed:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

type refreshMsg struct {
	sessions []model.Session
}

type tickMsg struct{}

type eventMsg model.Event

// Model is the dashboard's Bubble Tea model.
type Model struct {
	mgr    *supervisor.Manager
	table  table.Model
	events <-chan model.Event
	cancel func()
	err    error
}

// New creates the dashboard bound to a manager.
func New(mgr *supervisor.Manager) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "PROFILE", Width: 24},
			{Title: "STATUS", Width: 14},
			{Title: "PID", Width: 8},
			{Title: "RETRIES", Width: 8},
			{Title: "LAST ERROR", Width: 40},
			{Title: "ID", Width: 0},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	events, cancel := mgr.Events().Subscribe()
	return &Model{mgr: mgr, table: t, events: events, cancel: cancel}
}

// Run starts the program and blocks until the user quits.
func Run(mgr *supervisor.Manager) error {
	m := New(mgr)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.waitEventCmd())
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		sessions, _ := m.mgr.Status()
		return refreshMsg{sessions: sessions}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *Model) waitEventCmd() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			// Stop the selected session.
			if row := m.table.SelectedRow(); row != nil {
				if sid, err := uuid.Parse(row[5]); err == nil {
					_ = m.mgr.Stop(sid)
				}
			}
			return m, m.refreshCmd()
		}

	case refreshMsg:
		m.setRows(msg.sessions)
		return m, m.tickCmd()

	case tickMsg:
		return m, m.refreshCmd()

	case eventMsg:
		// Any lifecycle event invalidates the table; pull a fresh
		// snapshot and keep listening.
		return m, tea.Batch(m.refreshCmd(), m.waitEventCmd())
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) setRows(sessions []model.Session) {
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		status := s.Status
		styled := string(status)
		if st, ok := statusStyles[status]; ok {
			styled = st.Render(string(status))
		}
		pid := "-"
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		rows = append(rows, table.Row{
			s.ProfileName,
			styled,
			pid,
			fmt.Sprintf("%d", s.ReconnectCount),
			s.LastError,
			s.ID.String(), // hidden id column used by the stop key
		})
	}
	m.table.SetRows(rows)
}

func (m *Model) View() string {
	header := titleStyle.Render("tunnelward sessions")
	help := helpStyle.Render("q quit · s stop selected")
	return header + "\n" + m.table.View() + "\n" + help
}
