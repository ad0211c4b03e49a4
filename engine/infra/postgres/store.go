package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const (
	defaultMaxConns           = 10
	defaultHealthCheckPeriod  = 30 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = time.Second
	applicationName           = "puzzlekit"
)

// Store owns the pgx pool serving the puzzles database.
type Store struct {
	pool               *pgxpool.Pool
	label              string
	metrics            *poolMetrics
	healthCheckTimeout time.Duration
}

// NewStore opens the pool described by cfg and pings it. Metrics and query
// spans use the global otel providers and are best effort: a meter failure is
// logged and the store opens without them.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	log := logger.FromContext(ctx)
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	label := poolLabel(poolCfg.ConnConfig)
	metrics, err := newPoolMetrics(otel.GetMeterProvider().Meter(meterName), otel.Tracer(meterName), label)
	if err != nil {
		log.Warn("Postgres metrics disabled", "error", err)
	} else {
		poolCfg.ConnConfig.Tracer = metrics
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := ping(ctx, pool, orDefault(cfg.PingTimeout, defaultPingTimeout)); err != nil {
		pool.Close()
		return nil, err
	}
	if metrics != nil {
		if err := metrics.observe(pool); err != nil {
			log.Warn("Postgres pool gauges disabled", "error", err)
		}
	}
	log.Info("Puzzle store opened",
		"driver", "postgres",
		"pool", label,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
		"read_only", cfg.ReadOnly,
	)
	return &Store{
		pool:               pool,
		label:              label,
		metrics:            metrics,
		healthCheckTimeout: orDefault(cfg.HealthCheckTimeout, defaultHealthCheckTimeout),
	}, nil
}

// Pool exposes the pool to the repository and the provider.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Target names the database as host-port-dbname, whichever DSN form opened it.
func (s *Store) Target() string { return s.label }

// HealthCheck pings the database within the configured timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ping(ctx, s.pool, s.healthCheckTimeout); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// Close stops metric collection and shuts down the pool.
func (s *Store) Close(ctx context.Context) error {
	s.metrics.close()
	s.pool.Close()
	logger.FromContext(ctx).Debug("Puzzle store closed", "driver", "postgres")
	return nil
}

// poolConfig parses the DSN and applies pool sizing, timeouts and session
// parameters. Read-only stores make every transaction read only by default.
func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns, poolCfg.MinConns = connBounds(cfg.MaxOpenConns, cfg.MaxIdleConns)
	poolCfg.HealthCheckPeriod = orDefault(cfg.HealthCheckPeriod, defaultHealthCheckPeriod)
	poolCfg.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, defaultConnectTimeout)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	params := poolCfg.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string)
		poolCfg.ConnConfig.RuntimeParams = params
	}
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if cfg.ReadOnly {
		params["default_transaction_read_only"] = "on"
	}
	return poolCfg, nil
}

// connBounds turns the sql-style open/idle limits into pgxpool max/min
// connections. Idle connections never exceed the pool size.
func connBounds(maxOpen, maxIdle int) (maxConns, minConns int32) {
	maxConns = defaultMaxConns
	if maxOpen > 0 {
		maxConns = clamp32(maxOpen)
	}
	minConns = clamp32(min(maxIdle, int(maxConns)))
	return maxConns, minConns
}

func clamp32(v int) int32 {
	return int32(max(0, min(v, math.MaxInt32)))
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func ping(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}
