package models

import (
	"time"
)

// Session represents a time tracking session.
// Flags and timestamps are only ever written by the tracking package.
type Session struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID string `gorm:"not null;index" json:"user_id"`
	TaskID uint   `gorm:"not null;index" json:"task_id"`

	StartTime time.Time  `gorm:"not null" json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	IsActive   bool `gorm:"not null" json:"is_active"`
	IsPaused   bool `gorm:"not null" json:"is_paused"`
	AutoPaused bool `gorm:"not null" json:"auto_paused"`

	PauseTime           *time.Time `json:"pause_time"`
	PausedDurationHours float64    `gorm:"not null" json:"paused_duration_hours"`
	LastHeartbeat       *time.Time `json:"last_heartbeat"`
	DurationHours       *float64   `json:"duration_hours"` // finalized on end
}

// TableName keeps the table name independent of the Go type name.
func (Session) TableName() string {
	return "tracking_sessions"
}

// SessionView is a session as served to clients
type SessionView struct {
	Session
	State          string    `json:"state"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	ServerTime     time.Time `json:"server_time"`
}

// TaskSummary aggregates the sessions of one task
type TaskSummary struct {
	TaskID             uint    `json:"task_id"`
	SessionCount       int64   `json:"session_count"`
	TotalDurationHours float64 `json:"total_duration_hours"`
}
