package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle/puzzletest"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func TestWriteCSV(t *testing.T) {
	t.Run("Should omit the header by default", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, puzzletest.Samples(), false))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 6)
		assert.True(t, strings.HasPrefix(lines[0], "00008,"))
	})

	t.Run("Should write the Lichess header when requested", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, puzzletest.Samples()[:1], true))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, strings.Join(puzzle.Columns, ","), lines[0])
	})

	t.Run("Should be readable by the dump reader", func(t *testing.T) {
		var buf bytes.Buffer
		samples := puzzletest.Samples()
		require.NoError(t, WriteCSV(&buf, samples, true))
		r, err := NewReader(&buf)
		require.NoError(t, err)
		for _, want := range samples {
			got, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Should reject nil puzzles", func(t *testing.T) {
		err := WriteCSV(&bytes.Buffer{}, []*puzzle.Puzzle{nil}, false)
		require.Error(t, err)
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("Should create parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "puzzles.csv")
		require.NoError(t, WriteFile(path, puzzletest.Samples()[:2], false))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(string(data), "\n"))
	})

	t.Run("Should replace an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "puzzles.csv")
		require.NoError(t, os.WriteFile(path, []byte("stale\nstale\nstale\n"), 0o644))
		require.NoError(t, WriteFile(path, puzzletest.Samples()[:1], false))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "stale")
	})
}
