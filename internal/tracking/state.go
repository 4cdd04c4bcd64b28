package tracking

import (
	"github.com/balkashynov/tasktick/internal/models"
)

// State is the tagged lifecycle state of a session
type State int

const (
	Idle State = iota
	Running
	Paused
	AutoPaused
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case AutoPaused:
		return "auto_paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Action is something that can happen to a session
type Action string

const (
	ActionStart     Action = "start"
	ActionPause     Action = "pause"
	ActionAutoPause Action = "auto-pause"
	ActionResume    Action = "resume"
	ActionEnd       Action = "end"
	ActionHeartbeat Action = "heartbeat"
)

// transitions lists every allowed (state, action) pair. Anything missing is rejected.
var transitions = map[State]map[Action]State{
	Idle: {
		ActionStart: Running,
	},
	Running: {
		ActionPause:     Paused,
		ActionAutoPause: AutoPaused,
		ActionEnd:       Ended,
		ActionHeartbeat: Running,
	},
	Paused: {
		ActionResume:    Running,
		ActionEnd:       Ended,
		ActionHeartbeat: Paused,
	},
	AutoPaused: {
		ActionResume:    Running,
		ActionEnd:       Ended,
		ActionHeartbeat: AutoPaused,
	},
}

// Next returns the state reached by applying action in state from.
func Next(from State, action Action) (State, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// StateOf derives the tagged state from a stored row. A nil session is Idle.
func StateOf(s *models.Session) State {
	switch {
	case s == nil:
		return Idle
	case s.EndTime != nil || !s.IsActive:
		return Ended
	case s.IsPaused && s.AutoPaused:
		return AutoPaused
	case s.IsPaused:
		return Paused
	default:
		return Running
	}
}

// setState writes the complete flag combination for state onto the row.
// Timestamps are the caller's responsibility.
func setState(s *models.Session, state State) {
	switch state {
	case Running:
		s.IsActive = true
		s.IsPaused = false
		s.AutoPaused = false
		s.PauseTime = nil
	case Paused:
		s.IsActive = true
		s.IsPaused = true
		s.AutoPaused = false
	case AutoPaused:
		s.IsActive = true
		s.IsPaused = true
		s.AutoPaused = true
	case Ended:
		s.IsActive = false
		s.IsPaused = false
		s.PauseTime = nil
	}
}
