package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/reconciler"
	"github.com/balkashynov/tasktick/internal/tracking"
)

// RunTimerTUI shows the interactive timer for a session snapshot
func RunTimerTUI(ctx context.Context, api SessionAPI, view *models.SessionView, runningEvery, pausedEvery time.Duration) error {
	timer := reconciler.New(runningEvery, pausedEvery)
	timer.Sync(view, time.Now())

	model := NewTimerModel(ctx, api, timer, time.Now)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	m, ok := finalModel.(TimerModel)
	if !ok {
		return nil
	}

	session := m.Session()
	if session == nil {
		return nil
	}
	if m.Stopped() {
		fmt.Printf("⏹️  Stopped tracking time for task #%d\n", session.TaskID)
		if session.DurationHours != nil {
			fmt.Printf("📊 Session duration: %s\n", tracking.FormatHours(*session.DurationHours))
		}
		return nil
	}

	fmt.Printf("\n💡 Session #%d is still %s for task #%d\n", session.ID, tracking.StateOf(&session.Session), session.TaskID)
	fmt.Printf("   Use 'tasktick status' to check it or 'tasktick stop' to stop it.\n")
	return nil
}
