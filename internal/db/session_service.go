package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
)

// StartSession starts a new time tracking session for a user. The active
// session check and the insert run in one transaction; the partial unique
// index catches anything that still slips through.
func (s *Store) StartSession(ctx context.Context, userID string, taskID uint) (*models.Session, error) {
	var session *models.Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := findActive(tx, userID)
		if err != nil {
			return err
		}

		session, err = tracking.Start(active, userID, taskID, s.Now())
		if err != nil {
			return err
		}

		if err := tx.Create(session).Error; err != nil {
			if isUniqueViolation(err) {
				return &tracking.ConflictError{UserID: userID}
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// PauseSession pauses the user's running session
func (s *Store) PauseSession(ctx context.Context, userID string, id uint) (*models.Session, error) {
	return s.mutate(ctx, userID, id, func(session *models.Session, now time.Time) error {
		return tracking.Pause(session, now)
	})
}

// ResumeSession resumes a paused or auto-paused session
func (s *Store) ResumeSession(ctx context.Context, userID string, id uint) (*models.Session, error) {
	return s.mutate(ctx, userID, id, func(session *models.Session, now time.Time) error {
		return tracking.Resume(session, now)
	})
}

// EndSession finalizes a session and computes its duration
func (s *Store) EndSession(ctx context.Context, userID string, id uint) (*models.Session, error) {
	return s.mutate(ctx, userID, id, func(session *models.Session, now time.Time) error {
		return tracking.End(session, now)
	})
}

// Heartbeat records a liveness ping
func (s *Store) Heartbeat(ctx context.Context, userID string, id uint) (*models.Session, error) {
	return s.mutate(ctx, userID, id, func(session *models.Session, now time.Time) error {
		return tracking.Heartbeat(session, now)
	})
}

// AutoPauseSession auto-pauses a session whose last heartbeat is older than
// threshold. The row is re-read inside the transaction, so a resume or end
// that landed since the caller looked turns this into a rejected no-op.
func (s *Store) AutoPauseSession(ctx context.Context, id uint, threshold time.Duration) (*models.Session, error) {
	return s.mutate(ctx, "", id, func(session *models.Session, now time.Time) error {
		return tracking.AutoPause(session, now, threshold)
	})
}

// GetSession returns one of the user's sessions
func (s *Store) GetSession(ctx context.Context, userID string, id uint) (*models.Session, error) {
	return findSession(s.db.WithContext(ctx), userID, id)
}

// GetActiveSession returns the user's active session, if any
func (s *Store) GetActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	return findActive(s.db.WithContext(ctx), userID)
}

// ListRunningSessions returns every active session that is not paused
func (s *Store) ListRunningSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session

	err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_paused = ?", true, false).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list running sessions: %w", err)
	}

	return sessions, nil
}

// ListTaskSessions returns the user's sessions for a task, newest first
func (s *Store) ListTaskSessions(ctx context.Context, userID string, taskID uint) ([]models.Session, error) {
	sessions := []models.Session{}

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("start_time DESC, id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for task #%d: %w", taskID, err)
	}

	return sessions, nil
}

// TaskSummary counts the user's sessions for a task and sums finalized durations
func (s *Store) TaskSummary(ctx context.Context, userID string, taskID uint) (*models.TaskSummary, error) {
	var row struct {
		SessionCount       int64
		TotalDurationHours float64
	}

	err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Select("COUNT(*) AS session_count, COALESCE(SUM(duration_hours), 0) AS total_duration_hours").
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize task #%d: %w", taskID, err)
	}

	return &models.TaskSummary{
		TaskID:             taskID,
		SessionCount:       row.SessionCount,
		TotalDurationHours: row.TotalDurationHours,
	}, nil
}

// mutate loads a session, applies a state machine transition and saves it,
// all in one transaction. An empty userID skips the ownership scope.
func (s *Store) mutate(ctx context.Context, userID string, id uint, apply func(*models.Session, time.Time) error) (*models.Session, error) {
	var session *models.Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = findSession(tx, userID, id)
		if err != nil {
			return err
		}

		if err := apply(session, s.Now()); err != nil {
			return err
		}

		if err := tx.Save(session).Error; err != nil {
			return fmt.Errorf("failed to save session #%d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func findSession(tx *gorm.DB, userID string, id uint) (*models.Session, error) {
	var session models.Session

	q := tx.Where("id = ?", id)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	err := q.First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &tracking.NotFoundError{SessionID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session #%d: %w", id, err)
	}

	return &session, nil
}

func findActive(tx *gorm.DB, userID string) (*models.Session, error) {
	var session models.Session

	err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // No active session is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}

	return &session, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
