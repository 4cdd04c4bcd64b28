// Package reconciler keeps a client-side timer in step with the server.
//
// The displayed value is always recomputed from the last server snapshot at
// the server-corrected local time. Nothing is accumulated between ticks, so a
// suspended laptop or a skipped tick never makes the timer drift.
package reconciler

import (
	"time"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
)

// Default heartbeat intervals
const (
	RunningHeartbeat = 30 * time.Second
	PausedHeartbeat  = 120 * time.Second
)

// Timer is the client view of one session
type Timer struct {
	view   *models.SessionView
	offset time.Duration

	runningEvery time.Duration
	pausedEvery  time.Duration
	lastAttempt  time.Time
}

// New creates a timer with the given heartbeat intervals. Zero picks the default.
func New(runningEvery, pausedEvery time.Duration) *Timer {
	if runningEvery <= 0 {
		runningEvery = RunningHeartbeat
	}
	if pausedEvery <= 0 {
		pausedEvery = PausedHeartbeat
	}
	return &Timer{runningEvery: runningEvery, pausedEvery: pausedEvery}
}

// Sync replaces the snapshot and records the clock offset at localNow.
// A snapshot the server took before the current one is ignored and Sync
// reports false.
func (t *Timer) Sync(view *models.SessionView, localNow time.Time) bool {
	if view != nil && t.view != nil && view.ServerTime.Before(t.view.ServerTime) {
		return false
	}
	t.view = view
	if view == nil {
		t.offset = 0
		return true
	}
	if !view.ServerTime.IsZero() {
		t.offset = view.ServerTime.Sub(localNow)
	}
	return true
}

// Session returns the last snapshot, nil before the first sync
func (t *Timer) Session() *models.SessionView {
	return t.view
}

// Offset is server time minus local time at the last sync
func (t *Timer) Offset() time.Duration {
	return t.offset
}

// ServerNow maps a local instant to server time
func (t *Timer) ServerNow(localNow time.Time) time.Time {
	return localNow.Add(t.offset)
}

func (t *Timer) State() tracking.State {
	if t.view == nil {
		return tracking.Idle
	}
	return tracking.StateOf(&t.view.Session)
}

// Elapsed is the worked time at localNow
func (t *Timer) Elapsed(localNow time.Time) time.Duration {
	if t.view == nil {
		return 0
	}
	return tracking.Elapsed(&t.view.Session, t.ServerNow(localNow))
}

// HeartbeatInterval is how often the client pings in the current state.
// It is zero when no ping is owed.
func (t *Timer) HeartbeatInterval() time.Duration {
	switch t.State() {
	case tracking.Running:
		return t.runningEvery
	case tracking.Paused, tracking.AutoPaused:
		return t.pausedEvery
	default:
		return 0
	}
}

// HeartbeatDue reports whether a ping is owed at localNow. A ping is owed once
// a full interval has passed since both the server's last recorded heartbeat
// and the last attempt made through MarkHeartbeat.
func (t *Timer) HeartbeatDue(localNow time.Time) bool {
	every := t.HeartbeatInterval()
	if every == 0 {
		return false
	}
	if !t.lastAttempt.IsZero() && localNow.Sub(t.lastAttempt) < every {
		return false
	}
	seen := tracking.LastSeen(&t.view.Session)
	return t.ServerNow(localNow).Sub(seen) >= every
}

// MarkHeartbeat records a ping attempt so a failing server is not retried every tick.
func (t *Timer) MarkHeartbeat(localNow time.Time) {
	t.lastAttempt = localNow
}
