package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how sessions, pauses and heartbeats fit together",
	Long:  `Display an overview of every tasktick command and how the timer stays honest.`,
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		showGuide(cmd.OutOrStdout())
	},
}

func showGuide(w io.Writer) {
	fmt.Fprint(w, `
tasktick - time tracking with pause, resume and heartbeats

SERVER:

  serve                   Run the session API and the heartbeat monitor
    --addr                Listen address
    --threshold           Auto-pause after this long without a heartbeat (90s)
    --interval            Time between sweeps (30s)
  sweep                   Auto-pause stale sessions once and exit (cron mode)

SESSIONS:

  start <task-id>         Start tracking time on a task
    --no-ui               Start without interactive timer
  pause [session-id]      Pause the active session
  resume [session-id]     Resume a paused or auto-paused session
  stop [session-id]       Stop and save the session
  heartbeat [session-id]  Send one liveness ping
  status                  Show current tracking status
  timer                   Open the interactive timer

    Timer keys:
      space         Pause/resume
      s             Stop & save
      esc/q         Exit (timer keeps running)

TASKS:

  sessions <task-id>      List your sessions on a task
  summary <task-id>       Total tracked time on a task

GLOBAL FLAGS:

  --config                Config file (~/.tasktick/config.yaml)
  --db                    SQLite database path
  --server                Session API base URL
  --user                  User id sent to the API
  -v, --verbose           Log SQL, requests and sweeps

While the timer is open it pings the server every 30s (every 2m when paused).
If the pings stop, the server pauses the session at the last ping, so time
you were away is never counted.

`)
}
