package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const defaultPingTimeout = 3 * time.Second

// Store owns the database/sql handle for one SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database described by cfg and verifies the connection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlite: config is required")
	}
	if err := ensureDatabaseFile(cfg); err != nil {
		return nil, err
	}
	dsn, path, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	applyPoolSettings(db, cfg)
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyBusyTimeout(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	logger.FromContext(ctx).Info("Puzzle store opened",
		"driver", "sqlite",
		"path", path,
		"read_only", cfg.ReadOnly,
	)
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle for repositories and migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the resolved database path.
func (s *Store) Path() string { return s.path }

// InMemory reports whether the store vanishes with the process.
func (s *Store) InMemory() bool { return s.path == memoryPath }

// HealthCheck verifies the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	logger.FromContext(ctx).Debug("Puzzle store closed", "driver", "sqlite", "path", s.path)
	return nil
}

func ensureDatabaseFile(cfg *Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("sqlite: path is required")
	}
	if cfg.InMemory() {
		return nil
	}
	_, err := os.Stat(cfg.Path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist) && cfg.ReadOnly:
		return fmt.Errorf("%w at %s", puzzle.ErrDatabaseNotFound, cfg.Path)
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); mkErr != nil {
			return fmt.Errorf("sqlite: create database directory: %w", mkErr)
		}
		return nil
	default:
		return fmt.Errorf("sqlite: stat database: %w", err)
	}
}

func applyPoolSettings(db *sql.DB, cfg *Config) {
	db.SetMaxOpenConns(cfg.maxOpenConns())
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func applyBusyTimeout(ctx context.Context, db *sql.DB, cfg *Config) error {
	stmt := fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout().Milliseconds())
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	return nil
}
