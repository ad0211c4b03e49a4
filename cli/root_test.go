package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/dataset"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/repo"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle/puzzletest"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	root := RootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--env-file", "", "--config", ""}, args...))
	code := run(t.Context(), root)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// seedDB builds a SQLite database holding the sample puzzles.
func seedDB(t *testing.T) string {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "puzzles.db")
	cfg.Database.ReadOnly = false
	cfg.Database.AutoMigrate = true
	cfg.Cache.Enabled = false
	p, _, err := repo.NewProvider(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Writer().UpsertBatch(ctx, puzzletest.Samples()))
	require.NoError(t, p.Close(ctx))
	return cfg.Database.Path
}

func TestPuzzleCommands(t *testing.T) {
	dbPath := seedDB(t)

	t.Run("Should draw a filtered puzzle as JSON", func(t *testing.T) {
		res := runCLI(t, "puzzle", "get", "--db-path", dbPath, "--theme", "mateIn2", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var got []*puzzle.Puzzle
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		require.Len(t, got, 1)
		assert.Equal(t, puzzletest.ByID()["matey"], got[0])
	})
	t.Run("Should apply rating bounds and count", func(t *testing.T) {
		res := runCLI(t, "puzzle", "get", "--db-path", dbPath,
			"--min-rating", "900", "--max-rating", "1100", "-n", "10", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var got []*puzzle.Puzzle
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		ids := make([]string, 0, len(got))
		for _, p := range got {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{"0003b", "0004I", "0005D"}, ids)
	})
	t.Run("Should report when nothing matches", func(t *testing.T) {
		res := runCLI(t, "puzzle", "get", "--db-path", dbPath, "--theme", "zugzwang")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "No puzzles match")
	})
	t.Run("Should reject a non-positive count", func(t *testing.T) {
		res := runCLI(t, "puzzle", "get", "--db-path", dbPath, "-n", "0", "-f", "json")
		assert.Equal(t, 1, res.code)
		var cliErr map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stderr), &cliErr))
		assert.Equal(t, "INVALID_ARGUMENT", cliErr["code"])
		assert.Contains(t, cliErr["error"], "count must be a positive integer")
	})
	t.Run("Should count matching puzzles", func(t *testing.T) {
		res := runCLI(t, "puzzle", "count", "--db-path", dbPath, "--theme", "oneMove")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Equal(t, "5", strings.TrimSpace(res.stdout))
	})
	t.Run("Should show a puzzle with its board", func(t *testing.T) {
		res := runCLI(t, "puzzle", "show", "matey", "--db-path", dbPath)
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "Puzzle matey: Black to move")
		assert.Contains(t, res.stdout, "A B C D E F G H")
		assert.Contains(t, res.stdout, "f8a8")
	})
	t.Run("Should fail for an unknown puzzle", func(t *testing.T) {
		res := runCLI(t, "puzzle", "show", "nope", "--db-path", dbPath)
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "Error:")
		assert.Contains(t, res.stderr, "not found")
	})
	t.Run("Should run a raw query with bound arguments", func(t *testing.T) {
		res := runCLI(t, "puzzle", "raw", "--db-path", dbPath, "-f", "json",
			"SELECT PuzzleId FROM puzzles WHERE Rating < ? ORDER BY PuzzleId", "1000")
		require.Equal(t, 0, res.code, res.stderr)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
		ids := make([]any, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r["PuzzleId"])
		}
		assert.Equal(t, []any{"0003b", "0003h", "matey"}, ids)
	})
	t.Run("Should lay out raw rows as a table", func(t *testing.T) {
		res := runCLI(t, "puzzle", "raw", "--db-path", dbPath,
			"SELECT Rating, PuzzleId FROM puzzles WHERE PuzzleId = 'matey'")
		require.Equal(t, 0, res.code, res.stderr)
		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, []string{"PuzzleId", "Rating"}, strings.Fields(lines[0]))
		assert.Equal(t, []string{"matey", "800"}, strings.Fields(lines[2]))
	})
	t.Run("Should refuse statements that write", func(t *testing.T) {
		res := runCLI(t, "puzzle", "raw", "--db-path", dbPath, "DELETE FROM puzzles")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "only SELECT and WITH statements are allowed")
	})
	t.Run("Should grade a solved line", func(t *testing.T) {
		res := runCLI(t, "puzzle", "check", "00008", "e6f7", "g1h1", "--db-path", dbPath, "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		assert.Equal(t, "00008", got["id"])
		assert.Equal(t, true, got["solved"])
		assert.EqualValues(t, 2, got["correct"])
	})
	t.Run("Should report the expected move after a mistake", func(t *testing.T) {
		res := runCLI(t, "puzzle", "check", "00008", "e6e5", "--db-path", dbPath, "-f", "yaml")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "failed: true")
		assert.Contains(t, res.stdout, "expected: e6f7")
	})
}

func TestCatalogCommands(t *testing.T) {
	dbPath := seedDB(t)

	t.Run("Should list themes", func(t *testing.T) {
		res := runCLI(t, "themes", "--db-path", dbPath, "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var themes []string
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &themes))
		assert.Contains(t, themes, "mateIn2")
		assert.IsIncreasing(t, themes)
	})
	t.Run("Should list openings one per line", func(t *testing.T) {
		res := runCLI(t, "openings", "--db-path", dbPath)
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, strings.Split(strings.TrimSpace(res.stdout), "\n"), "Sicilian_Defense")
	})
	t.Run("Should list the table columns", func(t *testing.T) {
		res := runCLI(t, "attributes", "--db-path", dbPath, "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var cols []string
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &cols))
		assert.Equal(t, puzzle.Columns, cols)
	})
	t.Run("Should summarize the database", func(t *testing.T) {
		res := runCLI(t, "stats", "--db-path", dbPath, "-f", "yaml")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "puzzles: 6")
		assert.Contains(t, res.stdout, "min: 629")
		assert.Contains(t, res.stdout, "max: 1858")
	})
}

func TestExportCommand(t *testing.T) {
	dbPath := seedDB(t)

	t.Run("Should write a CSV file with a header", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "nested", "one-movers.csv")
		res := runCLI(t, "export", "--db-path", dbPath, "--theme", "oneMove", "-n", "10", "-o", out, "--header")
		require.Equal(t, 0, res.code, res.stderr)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, strings.Join(puzzle.Columns, ","), lines[0])
		assert.Contains(t, res.stderr, "Wrote 5 puzzles")
	})
	t.Run("Should stream CSV to stdout without a header", func(t *testing.T) {
		res := runCLI(t, "export", "--db-path", dbPath, "--theme", "mateIn2")
		require.Equal(t, 0, res.code, res.stderr)
		assert.True(t, strings.HasPrefix(res.stdout, "matey,"))
	})
}

func TestDBCommands(t *testing.T) {
	t.Run("Should import a CSV dump and then serve it", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "dump.csv")
		require.NoError(t, dataset.WriteFile(csvPath, puzzletest.Samples(), true))
		dbPath := filepath.Join(dir, "imported.db")

		res := runCLI(t, "db", "import", csvPath, "--db-path", dbPath, "--validate", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var stats map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &stats))
		assert.EqualValues(t, 6, stats["read"])
		assert.EqualValues(t, 6, stats["written"])
		assert.EqualValues(t, 0, stats["skipped"])

		res = runCLI(t, "puzzle", "count", "--db-path", dbPath)
		require.Equal(t, 0, res.code, res.stderr)
		assert.Equal(t, "6", strings.TrimSpace(res.stdout))
	})
	t.Run("Should create the schema on migrate", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "fresh.db")
		res := runCLI(t, "db", "migrate", "--db-path", dbPath, "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, `"status": "migrated"`)
		res = runCLI(t, "attributes", "--db-path", dbPath, "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
	})
	t.Run("Should report healthy connections", func(t *testing.T) {
		res := runCLI(t, "db", "health", "--db-path", seedDB(t))
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, "sqlite")
		assert.Contains(t, res.stdout, ": ok")
	})
	t.Run("Should point at the download command when the database is missing", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.db")
		res := runCLI(t, "puzzle", "get", "--db-path", missing)
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "puzzle database not found")
		assert.Contains(t, res.stderr, "Hint: run `puzzlekit db download`")
	})
}

func TestConfigAndVersion(t *testing.T) {
	t.Run("Should merge YAML, environment and flags", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "puzzlekit.yaml")
		yaml := "dataset:\n  batch_size: 250\n  retries: 5\nruntime:\n  log_level: warn\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
		t.Setenv("PUZZLEKIT_DATASET_RETRIES", "7")

		res := runCLI(t, "config", "show", "--sources", "--config", cfgPath, "--batch-size", "50", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var got struct {
			Config  map[string]string `json:"config"`
			Sources map[string]string `json:"sources"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		assert.Equal(t, "50", got.Config["dataset.batch_size"])
		assert.Equal(t, "cli", got.Sources["dataset.batch_size"])
		assert.Equal(t, "7", got.Config["dataset.retries"])
		assert.Equal(t, "env", got.Sources["dataset.retries"])
		assert.Equal(t, "warn", got.Config["runtime.log_level"])
		assert.Equal(t, "yaml", got.Sources["runtime.log_level"])
		assert.Equal(t, "default", got.Sources["database.driver"])
	})
	t.Run("Should reject an invalid configuration before running", func(t *testing.T) {
		res := runCLI(t, "version", "--format", "xml")
		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "Error:")
	})
	t.Run("Should validate the effective configuration", func(t *testing.T) {
		res := runCLI(t, "config", "validate", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		assert.Contains(t, res.stdout, `"valid": true`)
	})
	t.Run("Should print version information", func(t *testing.T) {
		res := runCLI(t, "version", "-f", "json")
		require.Equal(t, 0, res.code, res.stderr)
		var info map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
		assert.Contains(t, info, "version")
		assert.Contains(t, info, "commit_hash")
	})
}
