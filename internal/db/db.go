package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/tasktick/internal/models"
)

// Store persists tracking sessions
type Store struct {
	db      *gorm.DB
	now     func() time.Time
	verbose bool
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithVerbose enables SQL logging.
func WithVerbose(verbose bool) Option {
	return func(s *Store) { s.verbose = verbose }
}

// Open sets up the database connection at dbPath and runs migrations
func Open(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if dbPath != ":memory:" {
		// Ensure the directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logLevel := logger.Silent // Quiet by default
	if s.verbose {
		logLevel = logger.Info
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return s.now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// One connection serializes transactions and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	s.db = db

	if err := s.runMigrations(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// OpenMemory opens an in-memory store for testing.
func OpenMemory(opts ...Option) (*Store, error) {
	return Open(":memory:", opts...)
}

// DefaultPath returns the path to the SQLite database file
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".tasktick", "tasktick.db"), nil
}

// runMigrations creates/updates the database schema
func (s *Store) runMigrations() error {
	if err := s.db.AutoMigrate(&models.Session{}); err != nil {
		return err
	}

	// At most one active session per user, enforced by the database as well
	// as by the check in StartSession.
	return s.db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_sessions_one_active
		 ON tracking_sessions(user_id) WHERE is_active = 1`,
	).Error
}

// Now returns the store's current time in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
