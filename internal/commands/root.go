package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktick/internal/client"
	"github.com/balkashynov/tasktick/internal/config"
	"github.com/balkashynov/tasktick/internal/db"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	cfg     = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "tasktick",
	Short: "Track time on tasks with pause, resume and heartbeats",
	Long: `tasktick tracks working time on tasks. A small server owns the sessions
and auto-pauses timers whose client stopped sending heartbeats; the CLI and
the interactive timer talk to it over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// loadConfig merges the config file and environment, then applies explicit flags
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		loaded.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("server") {
		loaded.ServerURL, _ = flags.GetString("server")
	}
	if flags.Changed("user") {
		loaded.UserID, _ = flags.GetString("user")
	}
	if flags.Changed("verbose") {
		loaded.Verbose, _ = flags.GetBool("verbose")
	}

	cfg = loaded
	return nil
}

// openStore opens the configured database
func openStore() (*db.Store, error) {
	path := cfg.DBPath
	if path == "" {
		var err error
		if path, err = db.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return db.Open(path, db.WithVerbose(cfg.Verbose))
}

// newClient returns an API client for the configured user
func newClient() (*client.Client, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("no user id: set user_id in the config, TASKTICK_USER_ID or --user")
	}
	return client.New(cfg.ServerURL, cfg.UserID, nil), nil
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.tasktick/config.yaml)")
	pf.String("db", "", "SQLite database path (default ~/.tasktick/tasktick.db)")
	pf.String("server", "", "session API base URL")
	pf.String("user", "", "user id sent to the session API")
	pf.BoolP("verbose", "v", false, "log SQL, requests and sweeps")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tasktick %s (commit %s, built %s)\n", version, commit, date)
	},
}
