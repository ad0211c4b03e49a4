package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePuzzle() *Puzzle {
	return &Puzzle{
		ID:              "0003b",
		FEN:             "r1b1k2r/1p1n1ppp/p2p1n2/q2Pp3/1b2P3/2N1BP2/PP1QN1PP/R3KB1R b KQkq - 3 10",
		Moves:           "f6e4 f3e4",
		Rating:          917,
		RatingDeviation: 91,
		Popularity:      89,
		NbPlays:         296,
		Themes:          "advantage hangingPiece middlegame oneMove",
		GameURL:         "https://lichess.org/71zLcg31/black#20",
		OpeningTags:     "Sicilian_Defense Sicilian_Defense_Alapin_Variation",
	}
}

func TestPuzzle_Fields(t *testing.T) {
	p := samplePuzzle()

	t.Run("Should split themes moves and openings", func(t *testing.T) {
		assert.Equal(t, []string{"advantage", "hangingPiece", "middlegame", "oneMove"}, p.ThemeList())
		assert.Equal(t, []string{"f6e4", "f3e4"}, p.MoveList())
		assert.Equal(t, []string{"Sicilian_Defense", "Sicilian_Defense_Alapin_Variation"}, p.OpeningTagList())
	})

	t.Run("Should match whole theme tokens only", func(t *testing.T) {
		assert.True(t, p.HasTheme("oneMove"))
		assert.False(t, p.HasTheme("one"))
		assert.True(t, p.HasTheme("ONEMOVE"))
		assert.True(t, p.HasOpening("Sicilian_Defense"))
		assert.False(t, p.HasOpening("Sicilian"))
	})

	t.Run("Should expose a row keyed by dump columns", func(t *testing.T) {
		row := p.AsRow()
		assert.Len(t, row, len(Columns))
		assert.Equal(t, "0003b", row[ColumnID])
		assert.Equal(t, 917, row[ColumnRating])
		assert.Equal(t, "https://lichess.org/71zLcg31/black#20", row[ColumnGameURL])
	})

	t.Run("Should format CSV fields in column order", func(t *testing.T) {
		fields := p.Strings()
		require.Len(t, fields, len(Columns))
		assert.Equal(t, "917", fields[3])
		assert.Equal(t, "89", fields[5])
	})

	t.Run("Should return nil lists for empty columns", func(t *testing.T) {
		empty := &Puzzle{ID: "x"}
		assert.Empty(t, empty.OpeningTagList())
		assert.Empty(t, empty.Solution())
	})
}

func TestFilter_Validate(t *testing.T) {
	t.Run("Should default to a single puzzle", func(t *testing.T) {
		f := NewFilter()
		assert.Equal(t, DefaultCount, f.Count)
		require.NoError(t, f.Validate())
	})

	t.Run("Should reject non-positive counts", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			err := NewFilter(WithCount(n)).Validate()
			require.ErrorIs(t, err, ErrInvalidCount)
			assert.Contains(t, err.Error(), "count must be a positive integer")
		}
	})

	t.Run("Should reject inverted ranges", func(t *testing.T) {
		err := NewFilter(WithRatingRange(2000, 1500)).Validate()
		require.ErrorIs(t, err, ErrInvalidRange)
		assert.Contains(t, err.Error(), "rating")

		err = NewFilter(WithPopularityRange(10, -10)).Validate()
		require.ErrorIs(t, err, ErrInvalidRange)
		assert.Contains(t, err.Error(), "popularity")
	})

	t.Run("Should reject blank or multi-word tags", func(t *testing.T) {
		require.ErrorIs(t, NewFilter(WithThemes("")).Validate(), ErrInvalidTheme)
		require.ErrorIs(t, NewFilter(WithThemes("mate In2")).Validate(), ErrInvalidTheme)
		require.ErrorIs(t, NewFilter(WithOpenings(" ")).Validate(), ErrInvalidTheme)
	})

	t.Run("Should accept a nil filter", func(t *testing.T) {
		var f *Filter
		require.NoError(t, f.Validate())
		assert.Equal(t, DefaultCount, f.Limit())
	})
}

func TestValidateRawQuery(t *testing.T) {
	t.Run("Should accept SELECT and WITH statements", func(t *testing.T) {
		require.NoError(t, ValidateRawQuery("SELECT * FROM puzzles LIMIT 1"))
		require.NoError(t, ValidateRawQuery("  with t as (select 1) select * from t;"))
		require.NoError(t, ValidateRawQuery("SELECT replace(Themes, ' ', ',') FROM puzzles"))
	})

	t.Run("Should ignore separators and keywords inside quoted text", func(t *testing.T) {
		require.NoError(t, ValidateRawQuery("SELECT * FROM puzzles WHERE Themes LIKE '%;%'"))
		require.NoError(t, ValidateRawQuery("SELECT 'delete me; now' AS note -- drop; later"))
		require.NoError(t, ValidateRawQuery(`SELECT "PuzzleId" FROM puzzles /* ; */ WHERE Rating > 1500;`))
	})

	t.Run("Should reject writes and stacked statements", func(t *testing.T) {
		require.ErrorIs(t, ValidateRawQuery("DELETE FROM puzzles"), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("SELECT 1; DROP TABLE puzzles"), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("SELECT ';'; SELECT 2"), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("   "), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("-- only a comment"), ErrNotReadOnly)
	})

	t.Run("Should reject writes hidden behind a common table expression", func(t *testing.T) {
		err := ValidateRawQuery("WITH x AS (SELECT 1) DELETE FROM puzzles")
		require.ErrorIs(t, err, ErrNotReadOnly)
		assert.ErrorContains(t, err, "DELETE")
		require.ErrorIs(t, ValidateRawQuery("with x as (select 1) insert into puzzles select * from x"), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("WITH x AS (SELECT 1) REPLACE INTO puzzles SELECT * FROM x"), ErrNotReadOnly)
		require.ErrorIs(t, ValidateRawQuery("SELECT * INTO backup FROM puzzles"), ErrNotReadOnly)
	})
}
