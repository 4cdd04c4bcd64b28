// Package config loads tasktick settings from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config holds every tasktick setting. Later sources override earlier ones:
// defaults, then the YAML file, then TASKTICK_* variables, then CLI flags.
type Config struct {
	DBPath    string `mapstructure:"db_path" env:"TASKTICK_DB_PATH"`
	Addr      string `mapstructure:"addr" env:"TASKTICK_ADDR"`
	ServerURL string `mapstructure:"server_url" env:"TASKTICK_SERVER_URL"`
	UserID    string `mapstructure:"user_id" env:"TASKTICK_USER_ID"`

	HeartbeatThreshold time.Duration `mapstructure:"heartbeat_threshold" env:"TASKTICK_HEARTBEAT_THRESHOLD"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" env:"TASKTICK_SWEEP_INTERVAL"`
	RunningHeartbeat   time.Duration `mapstructure:"running_heartbeat" env:"TASKTICK_RUNNING_HEARTBEAT"`
	PausedHeartbeat    time.Duration `mapstructure:"paused_heartbeat" env:"TASKTICK_PAUSED_HEARTBEAT"`

	Verbose bool `mapstructure:"verbose" env:"TASKTICK_VERBOSE"`
}

// Default returns the built-in settings. An empty DBPath means the default database file.
func Default() *Config {
	return &Config{
		Addr:               "127.0.0.1:7420",
		ServerURL:          "http://127.0.0.1:7420",
		UserID:             os.Getenv("USER"),
		HeartbeatThreshold: 90 * time.Second,
		SweepInterval:      30 * time.Second,
		RunningHeartbeat:   30 * time.Second,
		PausedHeartbeat:    120 * time.Second,
	}
}

// Load builds the configuration. An empty path reads the default config file
// if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

// Validate rejects settings the monitor and the timer cannot run with
func (c *Config) Validate() error {
	if c.HeartbeatThreshold <= 0 {
		return fmt.Errorf("heartbeat_threshold must be positive, got %v", c.HeartbeatThreshold)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", c.SweepInterval)
	}
	if c.RunningHeartbeat <= 0 || c.PausedHeartbeat <= 0 {
		return fmt.Errorf("heartbeat intervals must be positive")
	}
	if c.RunningHeartbeat >= c.HeartbeatThreshold {
		return fmt.Errorf("running_heartbeat (%v) must be shorter than heartbeat_threshold (%v)",
			c.RunningHeartbeat, c.HeartbeatThreshold)
	}
	return nil
}

// DefaultPath returns the path to the config file, or "" without a home dir
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tasktick", "config.yaml")
}
