// Package heartbeat detects sessions whose client stopped sending liveness
// pings and auto-pauses them, backdated to the last ping.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
)

const (
	DefaultThreshold = 90 * time.Second
	DefaultInterval  = 30 * time.Second
)

// SessionStore is the part of the session store the monitor needs.
type SessionStore interface {
	Now() time.Time
	ListRunningSessions(ctx context.Context) ([]models.Session, error)
	AutoPauseSession(ctx context.Context, id uint, threshold time.Duration) (*models.Session, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked int
	Paused  []uint
	Skipped int // resumed, ended or pinged between the listing and the pause
	Failed  int
}

// Monitor auto-pauses stale sessions.
type Monitor struct {
	store     SessionStore
	threshold time.Duration
	logger    *log.Logger
}

// NewMonitor creates a monitor. A non-positive threshold uses DefaultThreshold.
func NewMonitor(store SessionStore, threshold time.Duration, logger *log.Logger) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{store: store, threshold: threshold, logger: logger}
}

// Threshold returns the staleness threshold.
func (m *Monitor) Threshold() time.Duration {
	return m.threshold
}

// Sweep auto-pauses every running session whose last heartbeat is older
// than the threshold. A failure on one session is logged and the sweep moves on.
func (m *Monitor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	sessions, err := m.store.ListRunningSessions(ctx)
	if err != nil {
		return result, fmt.Errorf("sweep: %w", err)
	}

	now := m.store.Now()
	for i := range sessions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s := &sessions[i]
		result.Checked++
		if !tracking.IsStale(s, now, m.threshold) {
			continue
		}

		paused, err := m.autoPause(ctx, s.ID)
		switch {
		case err != nil:
			result.Failed++
			m.logger.Printf("heartbeat: auto-pause session #%d failed: %v", s.ID, err)
		case paused:
			result.Paused = append(result.Paused, s.ID)
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// Check auto-pauses a single session if it is stale. It returns the session
// as it stands afterwards, for check-on-read callers.
func (m *Monitor) Check(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || !tracking.IsStale(s, m.store.Now(), m.threshold) {
		return s, nil
	}

	paused, err := m.store.AutoPauseSession(ctx, s.ID, m.threshold)
	if isRace(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return paused, nil
}

// Run sweeps every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Printf("heartbeat: %v", err)
				}
				continue
			}
			if len(result.Paused) > 0 {
				m.logger.Printf("heartbeat: auto-paused %d of %d running sessions %v", len(result.Paused), result.Checked, result.Paused)
			}
		}
	}
}

// autoPause reports whether the session was paused. Losing a race with the
// session's own user is not a failure.
func (m *Monitor) autoPause(ctx context.Context, id uint) (bool, error) {
	_, err := m.store.AutoPauseSession(ctx, id, m.threshold)
	if isRace(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isRace(err error) bool {
	return errors.Is(err, tracking.ErrInvalidState) ||
		errors.Is(err, tracking.ErrHeartbeatFresh) ||
		errors.Is(err, tracking.ErrNotFound)
}
