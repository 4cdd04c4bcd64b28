package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktick/internal/client"
	"github.com/balkashynov/tasktick/internal/models"
	"github.com/balkashynov/tasktick/internal/tracking"
	"github.com/balkashynov/tasktick/internal/tui"
)

const requestTimeout = 10 * time.Second

var startCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start tracking time on a task",
	Long: `Start tracking time on a task. Opens interactive timer by default, use --no-ui for simple start.

Examples:
  tasktick start 42         # Start timer with interactive UI
  tasktick start 42 --no-ui # Start timer without UI`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseID(args[0], "task")
		if err != nil {
			return err
		}
		cl, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		view, err := cl.Start(ctx, taskID)
		cancel()
		if errors.Is(err, tracking.ErrConflict) {
			return fmt.Errorf("%w\nUse 'tasktick stop' first, or 'tasktick timer' to open it", err)
		}
		if err != nil {
			return err
		}

		noUI, _ := cmd.Flags().GetBool("no-ui")
		if noUI {
			fmt.Fprintf(cmd.OutOrStdout(), "⏱️  Started tracking time for task #%d (session #%d)\n", view.TaskID, view.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Started at: %s\n", view.StartTime.Local().Format("15:04:05"))
			return nil
		}
		return tui.RunTimerTUI(cmd.Context(), cl, view, cfg.RunningHeartbeat, cfg.PausedHeartbeat)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [session-id]",
	Short: "Pause the active session",
	Args:  cobra.MaximumNArgs(1),
	RunE: sessionAction(func(ctx context.Context, cl *client.Client, id uint) (*models.SessionView, error) {
		return cl.Pause(ctx, id)
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a paused or auto-paused session",
	Args:  cobra.MaximumNArgs(1),
	RunE: sessionAction(func(ctx context.Context, cl *client.Client, id uint) (*models.SessionView, error) {
		return cl.Resume(ctx, id)
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop [session-id]",
	Short: "Stop tracking time and save the session",
	Args:  cobra.MaximumNArgs(1),
	RunE: sessionAction(func(ctx context.Context, cl *client.Client, id uint) (*models.SessionView, error) {
		return cl.End(ctx, id)
	}),
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat [session-id]",
	Short: "Tell the server this client is still alive",
	Long: `Send one liveness ping for the active session. Useful from scripts or
editor hooks that keep a session alive without the interactive timer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: sessionAction(func(ctx context.Context, cl *client.Client, id uint) (*models.SessionView, error) {
		return cl.Heartbeat(ctx, id)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current time tracking status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		view, err := cl.Active(ctx)
		if err != nil {
			return err
		}
		if view == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No active time tracking session")
			return nil
		}

		printView(cmd.OutOrStdout(), view)
		return nil
	},
}

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Open the interactive timer for the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		view, err := cl.Active(ctx)
		cancel()
		if err != nil {
			return err
		}
		if view == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No active time tracking session. Use 'tasktick start <task-id>'.")
			return nil
		}

		return tui.RunTimerTUI(cmd.Context(), cl, view, cfg.RunningHeartbeat, cfg.PausedHeartbeat)
	},
}

type actionFunc func(ctx context.Context, cl *client.Client, id uint) (*models.SessionView, error)

// sessionAction runs one transition on the given session id, or on the active session
func sessionAction(apply actionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cl, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		var id uint
		if len(args) == 1 {
			if id, err = parseID(args[0], "session"); err != nil {
				return err
			}
		} else {
			active, err := cl.Active(ctx)
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("no active time tracking session")
			}
			id = active.ID
		}

		view, err := apply(ctx, cl, id)
		if err != nil {
			return err
		}

		printView(cmd.OutOrStdout(), view)
		return nil
	}
}

func printView(w io.Writer, view *models.SessionView) {
	icon := map[string]string{
		"running":     "⏱️ ",
		"paused":      "⏸️ ",
		"auto_paused": "⏸️ ",
		"ended":       "⏹️ ",
	}[view.State]

	fmt.Fprintf(w, "%s Session #%d on task #%d: %s\n", icon, view.ID, view.TaskID, stateLabel(view.State))
	fmt.Fprintf(w, "Started at: %s\n", view.StartTime.Local().Format("15:04:05"))
	if view.IsPaused && view.PauseTime != nil {
		fmt.Fprintf(w, "Paused at: %s\n", view.PauseTime.Local().Format("15:04:05"))
	}

	if view.DurationHours != nil {
		fmt.Fprintf(w, "Session duration: %s\n", tracking.FormatHours(*view.DurationHours))
		return
	}
	fmt.Fprintf(w, "Elapsed time: %s\n", formatDuration(time.Duration(view.ElapsedSeconds)*time.Second))
}

func stateLabel(state string) string {
	if state == "auto_paused" {
		return "auto-paused (no heartbeat)"
	}
	return state
}

func parseID(arg, what string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID '%s'", what, arg)
	}
	return uint(id), nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	return tracking.FormatHours(d.Hours())
}

func init() {
	startCmd.Flags().Bool("no-ui", false, "Start timer without interactive UI")
}
