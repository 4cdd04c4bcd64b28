package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktick/internal/tracking"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [task-id]",
	Short: "List your sessions on a task, newest first",
	Args:  cobra.ExactArgs(1),
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
		defer cancel()

		sessions, err := cl.TaskSessions(ctx, taskID)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No sessions on task #%d\n", taskID)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tWORKED\tPAUSED")
		for _, s := range sessions {
			worked := formatDuration(time.Duration(s.ElapsedSeconds) * time.Second)
			if s.DurationHours != nil {
				worked = tracking.FormatHours(*s.DurationHours)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				s.ID,
				s.StartTime.Local().Format("2006-01-02 15:04"),
				stateLabel(s.State),
				worked,
				tracking.FormatHours(s.PausedDurationHours),
			)
		}
		return tw.Flush()
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [task-id]",
	Short: "Show total tracked time on a task",
	Args:  cobra.ExactArgs(1),
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
		defer cancel()

		summary, err := cl.TaskSummary(ctx, taskID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "📊 Task #%d: %s over %d sessions\n",
			summary.TaskID, tracking.FormatHours(summary.TotalDurationHours), summary.SessionCount)
		return nil
	},
}
