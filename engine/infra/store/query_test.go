package store

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

var testColumns = ColumnSet{
	ID:              "id",
	FEN:             "fen",
	Moves:           "moves",
	Rating:          "rating",
	RatingDeviation: "rd",
	Popularity:      "popularity",
	NbPlays:         "plays",
	Themes:          "themes",
	GameURL:         "url",
	OpeningTags:     "openings",
	Like:            "LIKE",
	Random:          "RANDOM()",
}

func TestRandomSelection(t *testing.T) {
	t.Run("Should build an unfiltered random draw", func(t *testing.T) {
		sql, args, err := RandomSelection(testColumns, squirrel.Question, puzzle.NewFilter()).ToSql()
		require.NoError(t, err)
		assert.Equal(
			t,
			"SELECT id, fen, moves, rating, rd, popularity, plays, themes, url, openings FROM puzzles ORDER BY RANDOM() LIMIT 1",
			sql,
		)
		assert.Empty(t, args)
	})

	t.Run("Should OR themes and bound ranges", func(t *testing.T) {
		f := puzzle.NewFilter(
			puzzle.WithThemes("mateIn2", "fork"),
			puzzle.WithRatingRange(1500, 2000),
			puzzle.WithPopularityRange(50, 100),
			puzzle.WithCount(5),
		)
		sql, args, err := RandomSelection(testColumns, squirrel.Dollar, f).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "((' ' || COALESCE(themes, '') || ' ') LIKE $1 ESCAPE '\\' OR")
		assert.Contains(t, sql, "rating BETWEEN $3 AND $4")
		assert.Contains(t, sql, "popularity BETWEEN $5 AND $6")
		assert.Contains(t, sql, "LIMIT 5")
		assert.Equal(t, []any{"% mateIn2 %", "% fork %", 1500, 2000, 50, 100}, args)
	})

	t.Run("Should AND themes when all are required", func(t *testing.T) {
		f := puzzle.NewFilter(puzzle.WithAllThemes("mate", "short"))
		sql, _, err := RandomSelection(testColumns, squirrel.Question, f).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "ESCAPE '\\' AND (' ' ||")
	})

	t.Run("Should escape LIKE wildcards in opening tags", func(t *testing.T) {
		f := puzzle.NewFilter(puzzle.WithOpenings("Sicilian_Defense"))
		_, args, err := RandomSelection(testColumns, squirrel.Question, f).ToSql()
		require.NoError(t, err)
		assert.Equal(t, []any{`% Sicilian\_Defense %`}, args)
	})

	t.Run("Should pad theme patterns so prefixes do not match", func(t *testing.T) {
		f := puzzle.NewFilter(puzzle.WithThemes("mate", "mate%", `back\rank`))
		_, args, err := RandomSelection(testColumns, squirrel.Question, f).ToSql()
		require.NoError(t, err)
		assert.Equal(t, []any{"% mate %", `% mate\% %`, `% back\\rank %`}, args)
	})
}

func TestCountSelection(t *testing.T) {
	t.Run("Should count without ordering or limit", func(t *testing.T) {
		sql, args, err := CountSelection(testColumns, squirrel.Question, puzzle.NewFilter(
			puzzle.WithRatingRange(600, 700),
		)).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(*) FROM puzzles WHERE rating BETWEEN ? AND ?", sql)
		assert.Equal(t, []any{600, 700}, args)
	})
}

func TestDistinctTokens(t *testing.T) {
	t.Run("Should split dedupe and sort", func(t *testing.T) {
		got := DistinctTokens([]string{"mate mateIn2", "", "fork mate", "  crushing "})
		assert.Equal(t, []string{"crushing", "fork", "mate", "mateIn2"}, got)
	})
}
