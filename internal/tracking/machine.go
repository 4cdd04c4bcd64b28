// Package tracking holds the session state machine. Every function here is
// pure: it reads and writes a session row in memory and takes the current
// time as an argument. Persistence lives in the db package.
package tracking

import (
	"math"
	"time"

	"github.com/balkashynov/tasktick/internal/models"
)

// Start creates a new running session for userID. active is the user's
// current active session, if any; a non-nil active session is a conflict.
func Start(active *models.Session, userID string, taskID uint, now time.Time) (*models.Session, error) {
	if state := StateOf(active); state != Idle && state != Ended {
		return nil, &ConflictError{UserID: userID, ActiveSessionID: active.ID, ActiveTaskID: active.TaskID}
	}

	s := &models.Session{
		UserID:        userID,
		TaskID:        taskID,
		StartTime:     now,
		LastHeartbeat: timePtr(now),
	}
	setState(s, Running)
	return s, nil
}

// Pause pauses a running session at now.
func Pause(s *models.Session, now time.Time) error {
	if _, err := transition(s, ActionPause); err != nil {
		return err
	}
	setState(s, Paused)
	s.PauseTime = timePtr(notBefore(now, s.StartTime))
	s.LastHeartbeat = timePtr(now)
	return nil
}

// AutoPause pauses a running session whose client stopped reporting. The
// pause is backdated to the moment the session was last seen, so the time
// after the last heartbeat is never counted.
func AutoPause(s *models.Session, now time.Time, threshold time.Duration) error {
	if _, err := transition(s, ActionAutoPause); err != nil {
		return err
	}
	if !IsStale(s, now, threshold) {
		return ErrHeartbeatFresh
	}
	setState(s, AutoPaused)
	s.PauseTime = timePtr(notBefore(LastSeen(s), s.StartTime))
	return nil
}

// Resume folds the pending pause interval and puts the session back to running.
func Resume(s *models.Session, now time.Time) error {
	if _, err := transition(s, ActionResume); err != nil {
		return err
	}
	foldPause(s, now)
	setState(s, Running)
	// Resuming counts as a liveness signal. It also keeps a later auto-pause
	// from backdating into the interval that was just folded.
	s.LastHeartbeat = timePtr(now)
	return nil
}

// End finalizes the session. A pending pause is folded first so the final
// duration excludes every paused interval.
func End(s *models.Session, now time.Time) error {
	if _, err := transition(s, ActionEnd); err != nil {
		return err
	}
	if s.IsPaused {
		foldPause(s, now)
	}
	end := notBefore(now, s.StartTime)
	setState(s, Ended)
	s.EndTime = timePtr(end)

	hours := roundHours(hoursOf(end.Sub(s.StartTime)) - s.PausedDurationHours)
	if hours < 0 {
		hours = 0
	}
	s.DurationHours = &hours
	return nil
}

// Heartbeat refreshes last_heartbeat. Repeated calls only move the timestamp.
func Heartbeat(s *models.Session, now time.Time) error {
	if _, err := transition(s, ActionHeartbeat); err != nil {
		return err
	}
	if s.LastHeartbeat == nil || now.After(*s.LastHeartbeat) {
		s.LastHeartbeat = timePtr(now)
	}
	return nil
}

// Elapsed is the tracked time of s observed at now. It is always recomputed
// from the stored timestamps and never negative.
func Elapsed(s *models.Session, now time.Time) time.Duration {
	if s == nil {
		return 0
	}

	ref := now
	switch {
	case s.EndTime != nil:
		ref = *s.EndTime
	case s.IsPaused && s.PauseTime != nil:
		ref = *s.PauseTime
	}

	elapsed := ref.Sub(s.StartTime) - durationOf(s.PausedDurationHours)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedSeconds is Elapsed truncated to whole seconds.
func ElapsedSeconds(s *models.Session, now time.Time) int64 {
	return int64(math.Floor(Elapsed(s, now).Seconds()))
}

// LastSeen is the last moment the session's client is known to have been alive.
func LastSeen(s *models.Session) time.Time {
	if s.LastHeartbeat != nil && s.LastHeartbeat.After(s.StartTime) {
		return *s.LastHeartbeat
	}
	return s.StartTime
}

// IsStale reports whether a running session has gone longer than threshold
// without a liveness signal.
func IsStale(s *models.Session, now time.Time, threshold time.Duration) bool {
	if StateOf(s) != Running {
		return false
	}
	return now.Sub(LastSeen(s)) > threshold
}

// View builds the client-facing representation of s at now.
func View(s *models.Session, now time.Time) models.SessionView {
	return models.SessionView{
		Session:        *s,
		State:          StateOf(s).String(),
		ElapsedSeconds: ElapsedSeconds(s, now),
		ServerTime:     now,
	}
}

func transition(s *models.Session, action Action) (State, error) {
	from := StateOf(s)
	to, ok := Next(from, action)
	if !ok {
		var id uint
		if s != nil {
			id = s.ID
		}
		return from, &InvalidStateError{SessionID: id, State: from, Action: action}
	}
	return to, nil
}

// foldPause adds the open pause interval to paused_duration_hours. Clock skew
// can make the interval negative; it then counts as zero so the total never shrinks.
func foldPause(s *models.Session, now time.Time) {
	if s.PauseTime == nil {
		return
	}
	if gap := now.Sub(*s.PauseTime); gap > 0 {
		s.PausedDurationHours += hoursOf(gap)
	}
	s.PauseTime = nil
}

func hoursOf(d time.Duration) float64 {
	return d.Hours()
}

func durationOf(hours float64) time.Duration {
	return time.Duration(math.Round(hours * float64(time.Hour)))
}

// roundHours rounds to six decimal places (3.6ms).
func roundHours(h float64) float64 {
	return math.Round(h*1e6) / 1e6
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}

func timePtr(t time.Time) *time.Time {
	return &t
}
