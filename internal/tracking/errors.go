package tracking

import (
	"errors"
	"fmt"
)

var (
	ErrConflict     = errors.New("session already active")
	ErrInvalidState = errors.New("invalid session state")
	ErrNotFound     = errors.New("session not found")

	// ErrHeartbeatFresh is returned by AutoPause when the session was seen recently.
	ErrHeartbeatFresh = errors.New("heartbeat is fresh")
)

// ConflictError is returned when a user starts a session while another one is active.
type ConflictError struct {
	UserID          string
	ActiveSessionID uint
	ActiveTaskID    uint
}

func (e *ConflictError) Error() string {
	if e.ActiveSessionID == 0 {
		return fmt.Sprintf("user %s already has an active session", e.UserID)
	}
	return fmt.Sprintf("user %s already has active session #%d (task #%d)", e.UserID, e.ActiveSessionID, e.ActiveTaskID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidStateError is returned when an action is not allowed from the current state.
type InvalidStateError struct {
	SessionID uint
	State     State
	Action    Action
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session #%d: session is %s", e.Action, e.SessionID, e.State)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// NotFoundError is returned for unknown session ids.
type NotFoundError struct {
	SessionID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session #%d not found", e.SessionID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
