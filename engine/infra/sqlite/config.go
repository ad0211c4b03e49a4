package sqlite

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

const (
	memoryPath          = ":memory:"
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 4
)

var memoryDBSeq atomic.Int64

// Config describes one puzzle database file.
type Config struct {
	// Path is the database file, or ":memory:" for a throwaway store.
	Path string
	// ReadOnly opens the file with mode=ro and refuses to create it.
	ReadOnly        bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// InMemory reports whether the store lives only in memory.
func (c *Config) InMemory() bool { return c.Path == memoryPath }

func (c *Config) busyTimeout() time.Duration {
	if c.BusyTimeout > 0 {
		return c.BusyTimeout
	}
	return defaultBusyTimeout
}

func (c *Config) maxOpenConns() int {
	if c.MaxOpenConns > 0 {
		return c.MaxOpenConns
	}
	return defaultMaxOpenConns
}

// buildDSN returns the modernc DSN and the resolved path for cfg. Each
// in-memory store gets its own named shared-cache database.
func buildDSN(cfg *Config) (string, string, error) {
	if cfg.InMemory() {
		name := fmt.Sprintf("puzzles-%d", memoryDBSeq.Add(1))
		return "file:" + name + "?mode=memory&cache=shared&_pragma=foreign_keys(ON)", memoryPath, nil
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: resolve path: %w", err)
	}
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.busyTimeout().Milliseconds()),
		"_pragma=foreign_keys(ON)",
	}
	if cfg.ReadOnly {
		params = append(params, "mode=ro")
	} else {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	return "file:" + abs + "?" + strings.Join(params, "&"), abs, nil
}
