package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktick/internal/heartbeat"
	"github.com/balkashynov/tasktick/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session API and the heartbeat monitor",
	Long: `Run the session API over HTTP. A background monitor auto-pauses running
sessions whose client has not sent a heartbeat within the threshold.

Examples:
  tasktick serve
  tasktick serve --addr :7420 --threshold 2m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("threshold") {
			cfg.HeartbeatThreshold, _ = cmd.Flags().GetDuration("threshold")
		}
		if cmd.Flags().Changed("interval") {
			cfg.SweepInterval, _ = cmd.Flags().GetDuration("interval")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !cfg.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		monitor := heartbeat.NewMonitor(store, cfg.HeartbeatThreshold, log.Default())
		go monitor.Run(ctx, cfg.SweepInterval)

		srv := server.NewServer(store, monitor, cfg.Verbose)
		log.Printf("tasktick: serving on %s (heartbeat threshold %v, sweep every %v)",
			cfg.Addr, monitor.Threshold(), cfg.SweepInterval)
		if err := srv.Run(ctx, cfg.Addr); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		log.Printf("tasktick: stopped")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Auto-pause stale sessions once and exit",
	Long: `Run a single heartbeat sweep directly against the database, for use from
cron when no server is running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("threshold") {
			cfg.HeartbeatThreshold, _ = cmd.Flags().GetDuration("threshold")
		}

		store, err := openStore()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		monitor := heartbeat.NewMonitor(store, cfg.HeartbeatThreshold, log.Default())
		result, err := monitor.Sweep(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checked %d running sessions, auto-paused %d silent for over %v",
			result.Checked, len(result.Paused), monitor.Threshold())
		if len(result.Paused) > 0 {
			fmt.Fprintf(out, " %v", result.Paused)
		}
		fmt.Fprintln(out)
		if result.Failed > 0 {
			return fmt.Errorf("%d sessions could not be auto-paused", result.Failed)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, 127.0.0.1:7420)")
	serveCmd.Flags().Duration("threshold", heartbeat.DefaultThreshold, "auto-pause sessions silent for longer than this")
	serveCmd.Flags().Duration("interval", heartbeat.DefaultInterval, "time between sweeps")
	sweepCmd.Flags().Duration("threshold", heartbeat.DefaultThreshold, "auto-pause sessions silent for longer than this")
}
