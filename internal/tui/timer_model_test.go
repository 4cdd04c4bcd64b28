package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/reconciler"
	"github.com/balkashynov/tasktick/internal/tracking"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(secs int) { c.now = c.now.Add(time.Duration(secs) * time.Second) }

// fakeAPI applies the state machine locally, the way the server would
type fakeAPI struct {
	clock   *clock
	session models.Session
	calls   []string
	err     error
}

func (f *fakeAPI) apply(name string, op func(*models.Session, time.Time) error) (*models.SessionView, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	if err := op(&f.session, f.clock.Now()); err != nil {
		return nil, err
	}
	view := tracking.View(&f.session, f.clock.Now())
	return &view, nil
}

func (f *fakeAPI) Pause(ctx context.Context, id uint) (*models.SessionView, error) {
	return f.apply("pause", tracking.Pause)
}

func (f *fakeAPI) Resume(ctx context.Context, id uint) (*models.SessionView, error) {
	return f.apply("resume", tracking.Resume)
}

func (f *fakeAPI) End(ctx context.Context, id uint) (*models.SessionView, error) {
	return f.apply("end", tracking.End)
}

func (f *fakeAPI) Heartbeat(ctx context.Context, id uint) (*models.SessionView, error) {
	return f.apply("heartbeat", tracking.Heartbeat)
}

func newTestModel(t *testing.T) (TimerModel, *fakeAPI, *clock) {
	t.Helper()
	c := &clock{now: t0}
	session, err := tracking.Start(nil, "alice", 5, t0)
	if err != nil {
		t.Fatal(err)
	}
	session.ID = 1
	api := &fakeAPI{clock: c, session: *session}

	timer := reconciler.New(0, 0)
	view := tracking.View(session, t0)
	timer.Sync(&view, t0)

	m := NewTimerModel(context.Background(), api, timer, c.Now)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(TimerModel), api, c
}

func press(t *testing.T, m TimerModel, k tea.KeyMsg) (TimerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(TimerModel), cmd
}

// run executes a request command and feeds its result back
func run(t *testing.T, m TimerModel, cmd tea.Cmd) (TimerModel, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(sessionMsg)
	if !ok {
		t.Fatal("expected a session message")
	}
	next, follow := m.Update(msg)
	return next.(TimerModel), follow
}

var (
	spaceKey = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	stopKey  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}
	quitKey  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

// ============================================================
// Keys
// ============================================================

func TestSpaceTogglesPause(t *testing.T) {
	m, api, c := newTestModel(t)

	c.Advance(60)
	m, cmd := press(t, m, spaceKey)
	if !m.busy {
		t.Fatal("pause should be in flight")
	}
	m, _ = run(t, m, cmd)
	if m.timer.State() != tracking.Paused || m.busy {
		t.Fatalf("state = %v, busy = %v", m.timer.State(), m.busy)
	}

	c.Advance(30)
	m, cmd = press(t, m, spaceKey)
	m, _ = run(t, m, cmd)
	if m.timer.State() != tracking.Running {
		t.Fatalf("state = %v, want running", m.timer.State())
	}
	if strings.Join(api.calls, ",") != "pause,resume" {
		t.Fatalf("calls = %v", api.calls)
	}

	c.Advance(10)
	if got := m.timer.Elapsed(c.Now()); got != 70*time.Second {
		t.Fatalf("elapsed = %v, want 70s", got)
	}
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, api, _ := newTestModel(t)
	m, cmd := press(t, m, spaceKey)
	if cmd == nil {
		t.Fatal("expected pause request")
	}
	m, cmd = press(t, m, spaceKey)
	if cmd != nil {
		t.Fatal("second toggle must wait for the first")
	}
	if _, cmd = press(t, m, stopKey); cmd != nil {
		t.Fatal("stop must wait for the toggle")
	}
	if len(api.calls) != 0 {
		t.Fatalf("no call runs until the command executes, got %v", api.calls)
	}
}

func TestStopEndsAndQuits(t *testing.T) {
	m, api, c := newTestModel(t)
	c.Advance(1800)

	m, cmd := press(t, m, stopKey)
	m, follow := run(t, m, cmd)
	if !m.Stopped() {
		t.Fatal("expected stopped")
	}
	if _, ok := follow().(tea.QuitMsg); !ok {
		t.Fatal("expected quit after stop")
	}
	if got := m.Session(); got == nil || got.DurationHours == nil || *got.DurationHours != 0.5 {
		t.Fatalf("unexpected final session: %+v", got)
	}
	if api.calls[0] != "end" {
		t.Fatalf("calls = %v", api.calls)
	}
}

func TestLeaveKeepsSessionRunning(t *testing.T) {
	m, api, _ := newTestModel(t)
	m, cmd := press(t, m, quitKey)
	if !m.leaving || m.Stopped() {
		t.Fatal("expected leaving without stopping")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit")
	}
	if len(api.calls) != 0 {
		t.Fatalf("leaving must not call the API, got %v", api.calls)
	}
}

func TestFailedRequestIsShown(t *testing.T) {
	m, api, _ := newTestModel(t)
	api.err = errors.New("connection refused")

	m, cmd := press(t, m, spaceKey)
	m, _ = run(t, m, cmd)
	if m.err == nil || m.busy {
		t.Fatal("error should be kept and the model unblocked")
	}
	if m.timer.State() != tracking.Running {
		t.Fatal("snapshot must not change on failure")
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Fatal("error should be rendered")
	}
}

// ============================================================
// Ticks and heartbeats
// ============================================================

func TestTickSchedulesHeartbeat(t *testing.T) {
	m, _, c := newTestModel(t)

	c.Advance(10)
	next, _ := m.Update(tickMsg(c.Now()))
	m = next.(TimerModel)
	if m.beating {
		t.Fatal("heartbeat not due yet")
	}

	c.Advance(20)
	next, _ = m.Update(tickMsg(c.Now()))
	m = next.(TimerModel)
	if !m.beating {
		t.Fatal("heartbeat due at 30s")
	}

	// the in-flight heartbeat is not repeated on the next tick
	c.Advance(1)
	next, _ = m.Update(tickMsg(c.Now()))
	m = next.(TimerModel)

	m, _ = run(t, m, m.request(tracking.ActionHeartbeat, m.api.Heartbeat))
	if m.beating {
		t.Fatal("heartbeat should be done")
	}
	lastBeat := m.timer.Session().LastHeartbeat
	if lastBeat == nil || !lastBeat.Equal(t0.Add(31*time.Second)) {
		t.Fatalf("last heartbeat = %v", lastBeat)
	}
}

func TestLateHeartbeatReplyDoesNotUndoPause(t *testing.T) {
	m, api, c := newTestModel(t)

	c.Advance(30)
	next, _ := m.Update(tickMsg(c.Now()))
	m = next.(TimerModel)
	if !m.beating {
		t.Fatal("heartbeat due at 30s")
	}
	// the server answers the heartbeat now, the reply arrives later
	held := m.request(tracking.ActionHeartbeat, m.api.Heartbeat)()

	c.Advance(1)
	m, cmd := press(t, m, spaceKey)
	if cmd == nil {
		t.Fatal("pause must not wait for the heartbeat")
	}
	m, _ = run(t, m, cmd)
	if m.timer.State() != tracking.Paused {
		t.Fatalf("state after pause = %v", m.timer.State())
	}

	next, _ = m.Update(held)
	m = next.(TimerModel)
	if m.timer.State() != tracking.Paused {
		t.Fatalf("state after late heartbeat = %v, want paused", m.timer.State())
	}
	if m.beating || m.err != nil {
		t.Fatalf("beating = %v, err = %v", m.beating, m.err)
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Fatal("expected paused header")
	}

	c.Advance(5)
	m, cmd = press(t, m, spaceKey)
	m, _ = run(t, m, cmd)
	if m.err != nil || m.timer.State() != tracking.Running {
		t.Fatalf("resume after late heartbeat: state = %v, err = %v", m.timer.State(), m.err)
	}
	if strings.Join(api.calls, ",") != "heartbeat,pause,resume" {
		t.Fatalf("calls = %v", api.calls)
	}
}

func TestViewShowsClockAndState(t *testing.T) {
	m, _, c := newTestModel(t)
	c.Advance(65)
	next, _ := m.Update(tickMsg(c.Now()))
	m = next.(TimerModel)

	out := m.View()
	if !strings.Contains(out, "TRACKING TIME") || !strings.Contains(out, "task #5") {
		t.Fatalf("unexpected view:\n%s", out)
	}
	if !strings.Contains(out, "session #1") || !strings.Contains(out, separator(100)) {
		t.Fatalf("expected session line and rule:\n%s", out)
	}
	if !strings.Contains(out, "pause/resume") {
		t.Fatalf("expected help bar:\n%s", out)
	}

	m, cmd := press(t, m, spaceKey)
	m, _ = run(t, m, cmd)
	if !strings.Contains(m.View(), "PAUSED") {
		t.Fatal("expected paused header")
	}
}

func TestClockText(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{65 * time.Second, "01:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{1500 * time.Millisecond, "00:01"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{10 * time.Hour, "10:00:00"},
	}
	for _, tt := range tests {
		if got := clockText(tt.d); got != tt.want {
			t.Errorf("clockText(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSeparator(t *testing.T) {
	if got := len([]rune(separator(100))); got != 40 {
		t.Fatalf("wide rule = %d runes, want 40", got)
	}
	if got := len([]rune(separator(30))); got != 18 {
		t.Fatalf("narrow rule = %d runes, want 18", got)
	}
	if separator(5) != "" {
		t.Fatal("no rule on a tiny terminal")
	}
}

func TestStateColor(t *testing.T) {
	if stateColor("running") != ColorAccentBright || stateColor("auto_paused") != ColorWarning {
		t.Fatal("unexpected state colors")
	}
	if stateColor("idle") != ColorDisabledText {
		t.Fatal("unknown states are muted")
	}
}
