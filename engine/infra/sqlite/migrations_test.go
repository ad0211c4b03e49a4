package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

func TestMigrations(t *testing.T) {
	t.Run("Should create the puzzles table with dump columns", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "apply.db")})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close(ctx)) })
		require.NoError(t, ApplyMigrations(ctx, s.DB()))

		attrs, err := NewPuzzleRepo(s.DB()).Attributes(ctx)
		require.NoError(t, err)
		assert.Equal(t, puzzle.Columns, attrs)
	})

	t.Run("Should create all indexes", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "indexes.db")})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close(ctx)) })
		require.NoError(t, ApplyMigrations(ctx, s.DB()))

		expected := map[string]bool{
			"idx_puzzles_puzzle_id":  true,
			"idx_puzzles_rating":     true,
			"idx_puzzles_popularity": true,
		}
		rows, err := s.DB().QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'index'")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			delete(expected, name)
		}
		require.NoError(t, rows.Err())
		assert.Empty(t, expected)
	})

	t.Run("Should be idempotent and record the version", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "twice.db")})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close(ctx)) })
		require.NoError(t, ApplyMigrations(ctx, s.DB()))
		require.NoError(t, ApplyMigrations(ctx, s.DB()))
		v, err := MigrationVersion(ctx, s.DB())
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("Should adopt a database built without a key", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := NewStore(ctx, &Config{Path: filepath.Join(t.TempDir(), "legacy.db")})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, s.Close(ctx)) })
		_, err = s.DB().ExecContext(ctx, `CREATE TABLE puzzles (
			PuzzleId TEXT, FEN TEXT, Moves TEXT, Rating INTEGER, RatingDeviation INTEGER,
			Popularity INTEGER, NbPlays INTEGER, Themes TEXT, GameUrl TEXT, OpeningTags TEXT)`)
		require.NoError(t, err)
		_, err = s.DB().ExecContext(ctx,
			`INSERT INTO puzzles VALUES ('legacy', 'fen', 'a b', 1500, 80, 90, 10, 'fork', 'url', NULL)`)
		require.NoError(t, err)
		require.NoError(t, ApplyMigrations(ctx, s.DB()))

		p, err := NewPuzzleRepo(s.DB()).ByID(ctx, "legacy")
		require.NoError(t, err)
		assert.Empty(t, p.OpeningTags)
		assert.Equal(t, 1500, p.Rating)
	})
}
