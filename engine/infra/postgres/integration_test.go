package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle/puzzletest"
)

// startPostgres runs a disposable server and returns its DSN.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("puzzles"),
		tcpostgres.WithUsername("chess"),
		tcpostgres.WithPassword("chess"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgContainer.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})
	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPuzzleRepo_Integration(t *testing.T) {
	ctx := testCtx(t)
	dsn := startPostgres(ctx, t)
	first, err := ApplyMigrationsWithLock(ctx, dsn)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, first.Applied)
	assert.Equal(t, int64(1), first.Version)
	again, err := ApplyMigrations(ctx, dsn)
	require.NoError(t, err)
	assert.Empty(t, again.Applied)
	version, err := MigrationVersion(ctx, dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	s, err := NewStore(ctx, &Config{ConnString: dsn, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close(ctx)) })
	require.NoError(t, s.HealthCheck(ctx))

	repo := NewPuzzleRepo(s.Pool())
	require.NoError(t, repo.UpsertBatch(ctx, puzzletest.Samples()))
	require.NoError(t, repo.UpsertBatch(ctx, puzzletest.Samples()))

	t.Run("Should keep one row per puzzle id", func(t *testing.T) {
		n, err := repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})
	t.Run("Should match themes case-insensitively as whole words", func(t *testing.T) {
		got, err := repo.Random(ctx, puzzle.NewFilter(puzzle.WithThemes("MATEIN2"), puzzle.WithCount(10)))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, puzzletest.ByID()["matey"], got[0])
	})
	t.Run("Should report metadata", func(t *testing.T) {
		themes, err := repo.Themes(ctx)
		require.NoError(t, err)
		assert.Contains(t, themes, "crushing")
		openings, err := repo.Openings(ctx)
		require.NoError(t, err)
		assert.Len(t, openings, 6)
		popularity, err := repo.PopularityRange(ctx)
		require.NoError(t, err)
		assert.Equal(t, puzzle.Range{Min: -33, Max: 97}, popularity)
		attrs, err := repo.Attributes(ctx)
		require.NoError(t, err)
		assert.Equal(t, puzzle.Columns, attrs)
	})
	t.Run("Should refuse writes smuggled into raw queries", func(t *testing.T) {
		_, err := repo.Raw(ctx, "WITH d AS (DELETE FROM puzzles RETURNING *) SELECT * FROM d")
		require.Error(t, err)
		n, err := repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})
	t.Run("Should bind raw query parameters", func(t *testing.T) {
		rows, err := repo.Raw(ctx, "SELECT puzzle_id FROM puzzles WHERE rating BETWEEN $1 AND $2", 600, 700)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "0003h", rows[0]["puzzle_id"])
	})
	t.Run("Should reject writes through a read-only store", func(t *testing.T) {
		ro, err := NewStore(ctx, &Config{ConnString: dsn, ReadOnly: true})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, ro.Close(ctx)) })
		roRepo := NewPuzzleRepo(ro.Pool())
		require.Error(t, roRepo.UpsertBatch(ctx, puzzletest.Samples()[:1]))
		n, err := roRepo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})
}
