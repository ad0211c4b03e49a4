package puzzlekit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/dataset"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/repo"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

type connection struct {
	provider *repo.Provider
	client   *Client
}

// Registry caches one open connection per database so repeated lookups
// reuse the same pool.
type Registry struct {
	mu      sync.Mutex
	cfg     *config.Config
	current string
	conns   map[string]*connection
}

// NewRegistry uses cfg for everything but the database location. A nil cfg
// means config.Default().
func NewRegistry(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Registry{cfg: cfg, conns: make(map[string]*connection)}
}

// SetDBPath selects the SQLite file used by later Connection calls.
func (r *Registry) SetDBPath(path string) error {
	expanded, err := config.ExpandHome(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("puzzlekit: resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w at %s", puzzle.ErrDatabaseNotFound, abs)
		}
		return fmt.Errorf("puzzlekit: checking %s: %w", abs, err)
	}
	r.mu.Lock()
	r.current = abs
	r.mu.Unlock()
	return nil
}

// DBPath returns the path set by SetDBPath or the configured default.
func (r *Registry) DBPath() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dbPathLocked()
}

func (r *Registry) dbPathLocked() (string, error) {
	if r.current != "" {
		return r.current, nil
	}
	path, err := r.cfg.DatabasePath()
	if err != nil {
		return "", err
	}
	if path == ":memory:" {
		return path, nil
	}
	return filepath.Abs(path)
}

// DefaultDBPath is where DownloadDefaultDB stores the prebuilt database.
func (r *Registry) DefaultDBPath() (string, error) {
	dir, err := r.cfg.DatasetDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, r.cfg.Dataset.FileName), nil
}

// Connection returns a client for the current database, opening it on first
// use. A missing SQLite file yields puzzle.ErrDatabaseNotFound.
func (r *Registry) Connection(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := *r.cfg
	key, err := r.connectionKey(&cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := r.conns[key]; ok {
		return c.client, nil
	}
	provider, _, err := repo.NewProvider(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	c := &connection{provider: provider, client: NewClient(provider.Repository())}
	r.conns[key] = c
	logger.FromContext(ctx).Debug("Opened puzzle database", "key", key)
	return c.client, nil
}

// connectionKey pins cfg to the database the registry should open and
// returns the cache key for it.
func (r *Registry) connectionKey(cfg *config.Config) (string, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		return "postgres://" + cfg.Database.Host + ":" + cfg.Database.Port + "/" + cfg.Database.DBName, nil
	}
	path, err := r.dbPathLocked()
	if err != nil {
		return "", err
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf(
				"%w at %s: provide a valid path with SetDBPath or call DownloadDefaultDB first",
				puzzle.ErrDatabaseNotFound, path,
			)
		}
	}
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.Path = path
	return path, nil
}

// Download fetches the prebuilt database to DefaultDBPath.
func (r *Registry) Download(ctx context.Context, force bool) (*dataset.Result, error) {
	dest, err := r.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	dl := dataset.DownloaderFromConfig(&r.cfg.Dataset)
	return dl.Download(ctx, r.cfg.Dataset.DBURL, dest, force)
}

// CloseAll closes every cached connection.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, c := range r.conns {
		errs = append(errs, c.provider.Close(ctx))
		delete(r.conns, key)
	}
	return errors.Join(errs...)
}

// Len reports how many connections are open.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

func registry() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry(nil)
	}
	return defaultRegistry
}

// SetDefaultRegistry replaces the registry behind the package functions.
func SetDefaultRegistry(r *Registry) {
	defaultMu.Lock()
	defaultRegistry = r
	defaultMu.Unlock()
}

// SetDBPath sets the database used by Default.
func SetDBPath(path string) error { return registry().SetDBPath(path) }

// Default returns a client for the database chosen by SetDBPath, or the
// downloaded default database.
func Default(ctx context.Context) (*Client, error) { return registry().Connection(ctx) }

// CloseAllConnections closes every connection opened through Default.
func CloseAllConnections(ctx context.Context) error { return registry().CloseAll(ctx) }

// DownloadDefaultDB fetches the prebuilt database into ~/.chess_puzzles.
func DownloadDefaultDB(ctx context.Context) (*dataset.Result, error) {
	return registry().Download(ctx, false)
}
