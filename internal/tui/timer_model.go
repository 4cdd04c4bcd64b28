package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/reconciler"
	"github.com/balkashynov/tasktick/internal/tracking"
)

const requestTimeout = 10 * time.Second

// SessionAPI is what the timer needs from the session API
type SessionAPI interface {
	Pause(ctx context.Context, id uint) (*models.SessionView, error)
	Resume(ctx context.Context, id uint) (*models.SessionView, error)
	End(ctx context.Context, id uint) (*models.SessionView, error)
	Heartbeat(ctx context.Context, id uint) (*models.SessionView, error)
}

// TimerModel represents the TUI model for one tracked session
type TimerModel struct {
	ctx   context.Context
	api   SessionAPI
	timer *reconciler.Timer
	now   func() time.Time

	width  int
	height int
	local  time.Time // local time of the last tick

	// Animation state
	frame int

	// Request state
	busy    bool // pause, resume or end in flight
	beating bool // heartbeat in flight
	err     error

	help help.Model

	stopped bool // session ended from the timer
	leaving bool // user left, session keeps going
}

// tickMsg is sent every second to re-render the clock
type tickMsg time.Time

// sessionMsg carries the server's answer to one request
type sessionMsg struct {
	action tracking.Action
	view   *models.SessionView
	at     time.Time
	err    error
}

// NewTimerModel creates the model for a synced timer. now defaults to time.Now.
func NewTimerModel(ctx context.Context, api SessionAPI, timer *reconciler.Timer, now func() time.Time) TimerModel {
	if now == nil {
		now = time.Now
	}
	h := help.New()
	h.ShowAll = false

	return TimerModel{
		ctx:   ctx,
		api:   api,
		timer: timer,
		now:   now,
		local: now(),
		help:  h,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the tick loop
func (m TimerModel) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.local = m.now()
		m.frame = (m.frame + 1) % 4

		cmds := []tea.Cmd{tickCmd()}
		if !m.beating && !m.busy && m.timer.HeartbeatDue(m.local) {
			m.timer.MarkHeartbeat(m.local)
			m.beating = true
			cmds = append(cmds, m.request(tracking.ActionHeartbeat, m.api.Heartbeat))
		}
		return m, tea.Batch(cmds...)

	case sessionMsg:
		if msg.action == tracking.ActionHeartbeat {
			m.beating = false
		} else {
			m.busy = false
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		if !m.timer.Sync(msg.view, msg.at) {
			// overtaken by a newer reply
			return m, nil
		}
		m.local = msg.at
		if msg.action == tracking.ActionEnd {
			m.stopped = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Leave):
			m.leaving = true
			return m, tea.Quit

		case key.Matches(msg, keys.Stop):
			if state := m.timer.State(); m.busy || state == tracking.Idle || state == tracking.Ended {
				return m, nil
			}
			m.busy = true
			return m, m.request(tracking.ActionEnd, m.api.End)

		case key.Matches(msg, keys.Toggle):
			if m.busy {
				return m, nil
			}
			switch m.timer.State() {
			case tracking.Running:
				m.busy = true
				return m, m.request(tracking.ActionPause, m.api.Pause)
			case tracking.Paused, tracking.AutoPaused:
				m.busy = true
				return m, m.request(tracking.ActionResume, m.api.Resume)
			}
		}
	}

	return m, nil
}

// request runs one API call off the update loop
func (m TimerModel) request(action tracking.Action, call func(context.Context, uint) (*models.SessionView, error)) tea.Cmd {
	session := m.timer.Session()
	if session == nil {
		return nil
	}
	id := session.ID
	ctx, now := m.ctx, m.now

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		view, err := call(ctx, id)
		return sessionMsg{action: action, view: view, at: now(), err: err}
	}
}

// Stopped reports whether the session was ended from the timer
func (m TimerModel) Stopped() bool {
	return m.stopped
}

// Session is the last snapshot the timer saw
func (m TimerModel) Session() *models.SessionView {
	return m.timer.Session()
}

// View renders the timer TUI
func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Align(lipgloss.Center).
		Width(m.width).
		Render(m.help.View(keys))

	contentHeight := m.height - 2
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTimerPanel(m.width, contentHeight),
		helpBar,
	)
}

// renderTimerPanel renders the clock with the session details around it
func (m TimerModel) renderTimerPanel(width, height int) string {
	state := m.timer.State()
	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	var components []string

	components = append(components, center.
		Foreground(lipgloss.Color(stateColor(state.String()))).
		Bold(true).
		Render(m.headerText(state)))

	if session := m.timer.Session(); session != nil {
		task := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentMain)).Bold(true).
			Render(fmt.Sprintf("task #%d", session.TaskID))
		id := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimaryText)).
			Render(fmt.Sprintf(" · session #%d", session.ID))
		components = append(components, center.Render(task+id))
	}

	components = append(components, center.
		Foreground(lipgloss.Color(ColorBorder)).
		Render(separator(width)))

	clock := renderBigClock(m.timer.Elapsed(m.local), stateColor(state.String()))
	var clockLines []string
	for _, line := range strings.Split(clock, "\n") {
		clockLines = append(clockLines, center.Render(line))
	}
	components = append(components, strings.Join(clockLines, "\n"))

	if info := m.sessionInfo(); info != "" {
		components = append(components, center.
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Render(info))
	}

	if m.err != nil {
		components = append(components, center.
			Foreground(lipgloss.Color(ColorError)).
			Render("⚠ "+m.err.Error()))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(components, "\n\n"))
}

func (m TimerModel) headerText(state tracking.State) string {
	switch state {
	case tracking.Running:
		animChars := []string{"⏱", "⏲", "⏱", "⏲"}
		c := animChars[m.frame]
		return fmt.Sprintf("%s  TRACKING TIME  %s", c, c)
	case tracking.Paused:
		return "⏸  PAUSED"
	case tracking.AutoPaused:
		return "⏸  AUTO-PAUSED (no heartbeat)"
	case tracking.Ended:
		return "⏹  SESSION ENDED"
	default:
		return "NO ACTIVE SESSION"
	}
}

func (m TimerModel) sessionInfo() string {
	session := m.timer.Session()
	if session == nil {
		return ""
	}

	info := "Started at " + session.StartTime.Local().Format("15:04:05")
	if session.PauseTime != nil && session.IsPaused {
		info += " · paused at " + session.PauseTime.Local().Format("15:04:05")
	}
	if session.PausedDurationHours > 0 {
		info += " · paused " + tracking.FormatHours(session.PausedDurationHours)
	}
	return info
}

// bigDigits are 5x5 glyphs for the clock
var bigDigits = map[rune][5]string{
	'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
	'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
	'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
	'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
	'4': {"█   █", "█   █", "█████", "    █", "    █"},
	'5': {"█████", "█    ", "████ ", "    █", "████ "},
	'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
	'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
	'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
	'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
	':': {"     ", "  █  ", "     ", "  █  ", "     "},
}

// clockText is HH:MM:SS, or MM:SS under an hour
func clockText(d time.Duration) string {
	return strings.TrimPrefix(tracking.FormatClock(d), "00:")
}

// separator is a rule under the session line, at most 40 wide
func separator(width int) string {
	return strings.Repeat("─", max(min(width-12, 40), 0))
}

// renderBigClock renders the elapsed time in big glyphs
func renderBigClock(d time.Duration, color string) string {
	var lines [5]strings.Builder
	for _, r := range clockText(d) {
		glyph, ok := bigDigits[r]
		if !ok {
			continue
		}
		for i := range lines {
			lines[i].WriteString(glyph[i])
			lines[i].WriteString(" ")
		}
	}

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true)

	rendered := make([]string, len(lines))
	for i := range lines {
		rendered[i] = style.Render(lines[i].String())
	}
	return strings.Join(rendered, "\n")
}
