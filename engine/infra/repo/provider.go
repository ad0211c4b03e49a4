// Package repo opens the configured puzzle store and hands out repositories
// backed by it, so callers never depend on a concrete driver.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/cache"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/postgres"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/sqlite"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const defaultMigrationTimeout = 2 * time.Minute

// Provider exposes the puzzle repository of one open database.
type Provider struct {
	driver  string
	target  string
	sqlite  *sqlite.Store
	pg      *postgres.Store
	base    puzzle.Repository
	reader  puzzle.Repository
	cached  *cache.Repository
	shared  *cache.Redis
	closeMu sync.Mutex
	closed  bool
	migrate func(ctx context.Context) error
}

// NewProvider opens the database selected by cfg.Database, applies migrations
// when auto_migrate is set and wraps reads with the cache when enabled.
// The returned cleanup closes everything the provider opened.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("repo: config is required")
	}
	start := time.Now()
	p := &Provider{driver: strings.TrimSpace(cfg.Database.Driver)}
	var err error
	switch p.driver {
	case config.DriverSQLite, "":
		p.driver = config.DriverSQLite
		err = p.openSQLite(ctx, cfg)
	case config.DriverPostgres:
		err = p.openPostgres(ctx, cfg)
	default:
		err = fmt.Errorf("repo: unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := p.Migrate(ctx, cfg.Database.MigrationTimeout); err != nil {
			p.Close(ctx)
			return nil, nil, err
		}
	}
	if err := p.setupCache(ctx, cfg); err != nil {
		p.Close(ctx)
		return nil, nil, err
	}
	p.logStartup(ctx, time.Since(start))
	cleanup := func() {
		if err := p.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("Failed to close puzzle store", "error", err)
		}
	}
	return p, cleanup, nil
}

func (p *Provider) openSQLite(ctx context.Context, cfg *config.Config) error {
	path, err := cfg.DatabasePath()
	if err != nil {
		return fmt.Errorf("repo: resolving database path: %w", err)
	}
	store, err := sqlite.NewStore(ctx, &sqlite.Config{
		Path:            path,
		ReadOnly:        cfg.Database.ReadOnly,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	p.sqlite = store
	p.target = store.Path()
	p.base = sqlite.NewPuzzleRepo(store.DB())
	p.migrate = func(ctx context.Context) error {
		return sqlite.ApplyMigrations(ctx, store.DB())
	}
	return nil
}

func (p *Provider) openPostgres(ctx context.Context, cfg *config.Config) error {
	pgCfg := PostgresConfig(&cfg.Database)
	store, err := postgres.NewStore(ctx, pgCfg)
	if err != nil {
		return err
	}
	p.pg = store
	p.target = store.Target()
	p.base = postgres.NewPuzzleRepo(store.Pool())
	dsn := pgCfg.DSN()
	p.migrate = func(ctx context.Context) error {
		_, err := postgres.ApplyMigrationsWithLock(ctx, dsn)
		return err
	}
	return nil
}

// PostgresConfig converts the database section into driver settings.
func PostgresConfig(db *config.DatabaseConfig) *postgres.Config {
	return &postgres.Config{
		ConnString:         db.ConnString.Value(),
		Host:               db.Host,
		Port:               db.Port,
		User:               db.User,
		Password:           db.Password.Value(),
		DBName:             db.DBName,
		SSLMode:            db.SSLMode,
		ReadOnly:           db.ReadOnly,
		MaxOpenConns:       db.MaxOpenConns,
		MaxIdleConns:       db.MaxIdleConns,
		ConnMaxLifetime:    db.ConnMaxLifetime,
		ConnMaxIdleTime:    db.ConnMaxIdleTime,
		HealthCheckPeriod:  db.HealthCheckPeriod,
		ConnectTimeout:     db.ConnectTimeout,
		PingTimeout:        db.PingTimeout,
		HealthCheckTimeout: db.HealthCheckTimeout,
	}
}

// setupCache wraps the driver repository. Shared entries are scoped to the
// open database. An unreachable Redis server, or an in-memory SQLite store
// that no other process can see, only disables the shared tier.
func (p *Provider) setupCache(ctx context.Context, cfg *config.Config) error {
	p.reader = p.base
	if !cfg.Cache.Enabled {
		return nil
	}
	cacheCfg := cache.Config{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL}
	switch {
	case !cfg.Redis.Enabled():
	case p.sqlite != nil && p.sqlite.InMemory():
		logger.FromContext(ctx).Debug("Shared cache skipped for in-memory store")
	default:
		shared, err := cache.NewRedis(ctx, &cache.RedisConfig{
			URL:         cfg.Redis.URL,
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password.Value(),
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			PingTimeout: cfg.Redis.PingTimeout,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			Scope:       p.CacheScope(),
		})
		if err != nil {
			logger.FromContext(ctx).Warn("Shared cache unavailable, continuing with local cache", "error", err)
		} else {
			p.shared = shared
			cacheCfg.Shared = shared
		}
	}
	cached, err := cache.New(p.base, cacheCfg)
	if err != nil {
		return err
	}
	p.cached = cached
	p.reader = cached
	return nil
}

// CacheScope identifies the open database in the shared cache namespace.
func (p *Provider) CacheScope() string { return p.driver + "|" + p.target }

// Driver returns "sqlite" or "postgres".
func (p *Provider) Driver() string { return p.driver }

// Target describes the open database: the SQLite path or postgres host-port-dbname.
func (p *Provider) Target() string { return p.target }

// Repository returns the read side, cached when the cache is enabled.
func (p *Provider) Repository() puzzle.Repository { return p.reader }

// Writer returns the provisioning side. Writes go through the cache so
// cached entries are dropped afterwards.
func (p *Provider) Writer() puzzle.Writer {
	if p.cached != nil {
		return p.cached
	}
	w, _ := p.base.(puzzle.Writer)
	return w
}

// Migrate applies the embedded schema migrations for the open driver.
func (p *Provider) Migrate(ctx context.Context, timeout time.Duration) error {
	if p.migrate == nil {
		return fmt.Errorf("repo: provider is not open")
	}
	if timeout <= 0 {
		timeout = defaultMigrationTimeout
	}
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.migrate(mctx); err != nil {
		return fmt.Errorf("repo: migrating %s: %w", p.driver, err)
	}
	if p.cached != nil {
		p.cached.Purge(ctx)
	}
	return nil
}

// HealthCheck pings the store and, when configured, the shared cache.
func (p *Provider) HealthCheck(ctx context.Context) error {
	var errs []error
	switch {
	case p.sqlite != nil:
		errs = append(errs, p.sqlite.HealthCheck(ctx))
	case p.pg != nil:
		errs = append(errs, p.pg.HealthCheck(ctx))
	}
	if p.shared != nil {
		errs = append(errs, p.shared.HealthCheck(ctx))
	}
	return errors.Join(errs...)
}

// Close releases the store and the shared cache. It is safe to call twice.
func (p *Provider) Close(ctx context.Context) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.shared != nil {
		errs = append(errs, p.shared.Close())
	}
	if p.sqlite != nil {
		errs = append(errs, p.sqlite.Close(ctx))
	}
	if p.pg != nil {
		errs = append(errs, p.pg.Close(ctx))
	}
	return errors.Join(errs...)
}

func (p *Provider) logStartup(ctx context.Context, duration time.Duration) {
	fields := []any{
		"driver", p.driver,
		"duration", duration,
		"cache", p.cached != nil,
		"shared_cache", p.shared != nil,
	}
	if p.driver == config.DriverSQLite {
		fields = append(fields, "path", p.target, "mode", sqliteMode(p.target))
	} else {
		fields = append(fields, "target", p.target)
	}
	logger.FromContext(ctx).Info("Database store initialized", fields...)
}

func sqliteMode(path string) string {
	lowered := strings.ToLower(strings.TrimSpace(path))
	switch {
	case lowered == "":
		return "unknown"
	case lowered == ":memory:" || strings.Contains(lowered, "mode=memory"):
		return "in-memory"
	default:
		return "file-based"
	}
}
