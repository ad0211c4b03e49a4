package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"

	// Register pgx stdlib driver for database/sql usage in migrations.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const (
	// migrationLockID keys the advisory lock shared by every puzzlekit migrator.
	migrationLockID = 0x7075_7a7a_6c65
	// Lock acquisition retries every lockRetrySeconds, up to lockRetryAttempts times.
	lockRetrySeconds  = 3
	lockRetryAttempts = 15
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationReport summarizes one migration run.
type MigrationReport struct {
	// Applied lists the versions run by this call, in order.
	Applied []int64
	// Version is the schema version after the run.
	Version int64
}

// ApplyMigrations brings the puzzles schema at dsn up to date without locking.
// Use it when a single process owns the database, such as tests.
func ApplyMigrations(ctx context.Context, dsn string) (*MigrationReport, error) {
	return migrate(ctx, dsn, false)
}

// ApplyMigrationsWithLock is ApplyMigrations behind a session advisory lock so
// concurrent importers apply each version once.
func ApplyMigrationsWithLock(ctx context.Context, dsn string) (*MigrationReport, error) {
	return migrate(ctx, dsn, true)
}

// MigrationVersion reports the latest applied migration version at dsn.
func MigrationVersion(ctx context.Context, dsn string) (int64, error) {
	var version int64
	err := withProvider(dsn, false, func(p *goose.Provider) error {
		v, err := p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("postgres: read migration version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func migrate(ctx context.Context, dsn string, locked bool) (*MigrationReport, error) {
	report := &MigrationReport{}
	err := withProvider(dsn, locked, func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		if err != nil {
			return fmt.Errorf("postgres: migrate up: %w", err)
		}
		for _, r := range results {
			report.Applied = append(report.Applied, r.Source.Version)
		}
		report.Version, err = p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("postgres: read migration version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Postgres schema ready",
		"version", report.Version,
		"applied", len(report.Applied),
		"locked", locked,
	)
	return report, nil
}

// withProvider opens a short-lived database/sql handle for goose, which does
// not speak pgxpool.
func withProvider(dsn string, locked bool, fn func(*goose.Provider) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres: open db for migrations: %w", err)
	}
	defer db.Close()
	scripts, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migrations dir: %w", err)
	}
	opts := []goose.ProviderOption{goose.WithDisableGlobalRegistry(true)}
	if locked {
		locker, err := lock.NewPostgresSessionLocker(
			lock.WithLockID(migrationLockID),
			lock.WithLockTimeout(lockRetrySeconds, lockRetryAttempts),
		)
		if err != nil {
			return fmt.Errorf("postgres: migration lock: %w", err)
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, scripts, opts...)
	if err != nil {
		return fmt.Errorf("postgres: migration provider: %w", err)
	}
	defer provider.Close()
	return fn(provider)
}
