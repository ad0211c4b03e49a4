// Package dataset moves puzzles between the Lichess CSV format, remote
// downloads and a puzzle.Writer.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// WriteCSV writes puzzles in Lichess column order. The header row is
// only written when header is true.
func WriteCSV(w io.Writer, puzzles []*puzzle.Puzzle, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(puzzle.Columns); err != nil {
			return fmt.Errorf("dataset: writing header: %w", err)
		}
	}
	for i, p := range puzzles {
		if p == nil {
			return fmt.Errorf("dataset: puzzle %d is nil", i)
		}
		if err := cw.Write(p.Strings()); err != nil {
			return fmt.Errorf("dataset: writing puzzle %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataset: flushing csv: %w", err)
	}
	return nil
}

// WriteFile writes puzzles to path as UTF-8 CSV, replacing any existing file.
func WriteFile(path string, puzzles []*puzzle.Puzzle, header bool) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("dataset: closing %s: %w", path, cerr)
		}
	}()
	return WriteCSV(f, puzzles, header)
}
