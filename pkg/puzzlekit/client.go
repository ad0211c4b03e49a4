// Package puzzlekit is the library entry point: it retrieves and filters
// Lichess puzzles from a local SQLite file or a PostgreSQL database.
package puzzlekit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/dataset"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// Client answers puzzle queries against one repository.
type Client struct {
	repo puzzle.Repository
}

func NewClient(repo puzzle.Repository) *Client {
	return &Client{repo: repo}
}

// Repository exposes the underlying read side.
func (c *Client) Repository() puzzle.Repository { return c.repo }

// GetPuzzle draws random puzzles matching the options. Without options a
// single puzzle is drawn from the whole database.
func (c *Client) GetPuzzle(ctx context.Context, opts ...puzzle.FilterOption) ([]*puzzle.Puzzle, error) {
	filter := puzzle.NewFilter(opts...)
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return c.repo.Random(ctx, filter)
}

// GetOnePuzzle is GetPuzzle with the count forced to one. It returns
// puzzle.ErrNotFound when nothing matches.
func (c *Client) GetOnePuzzle(ctx context.Context, opts ...puzzle.FilterOption) (*puzzle.Puzzle, error) {
	opts = append(opts, puzzle.WithCount(1))
	got, err := c.GetPuzzle(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, puzzle.ErrNotFound
	}
	return got[0], nil
}

// CountPuzzles returns how many puzzles match the options.
func (c *Client) CountPuzzles(ctx context.Context, opts ...puzzle.FilterOption) (int64, error) {
	filter := puzzle.NewFilter(opts...)
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	return c.repo.Count(ctx, filter)
}

func (c *Client) GetPuzzleByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, puzzle.ErrInvalidID
	}
	return c.repo.ByID(ctx, id)
}

// GetPuzzleRaw runs a read-only SQL statement against the puzzles table.
func (c *Client) GetPuzzleRaw(ctx context.Context, query string, args ...any) ([]puzzle.Row, error) {
	if err := puzzle.ValidateRawQuery(query); err != nil {
		return nil, err
	}
	return c.repo.Raw(ctx, query, args...)
}

func (c *Client) GetAllThemes(ctx context.Context) ([]string, error) {
	return c.repo.Themes(ctx)
}

func (c *Client) GetAllOpenings(ctx context.Context) ([]string, error) {
	return c.repo.Openings(ctx)
}

func (c *Client) GetRatingRange(ctx context.Context) (puzzle.Range, error) {
	return c.repo.RatingRange(ctx)
}

func (c *Client) GetPopularityRange(ctx context.Context) (puzzle.Range, error) {
	return c.repo.PopularityRange(ctx)
}

// GetPuzzleAttributes lists the columns of the puzzles table.
func (c *Client) GetPuzzleAttributes(ctx context.Context) ([]string, error) {
	return c.repo.Attributes(ctx)
}

// Stats summarizes the open database.
type Stats struct {
	Puzzles    int64        `json:"puzzles"    yaml:"puzzles"`
	Themes     int          `json:"themes"     yaml:"themes"`
	Openings   int          `json:"openings"   yaml:"openings"`
	Rating     puzzle.Range `json:"rating"     yaml:"rating"`
	Popularity puzzle.Range `json:"popularity" yaml:"popularity"`
}

// GetStats gathers counts and ranges in one call.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var (
		s   Stats
		err error
	)
	if s.Puzzles, err = c.CountPuzzles(ctx); err != nil {
		return nil, err
	}
	if s.Puzzles == 0 {
		return &s, nil
	}
	themes, err := c.GetAllThemes(ctx)
	if err != nil {
		return nil, err
	}
	openings, err := c.GetAllOpenings(ctx)
	if err != nil {
		return nil, err
	}
	s.Themes, s.Openings = len(themes), len(openings)
	if s.Rating, err = c.GetRatingRange(ctx); err != nil {
		return nil, err
	}
	if s.Popularity, err = c.GetPopularityRange(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// WritePuzzlesToFile writes puzzles as Lichess CSV; the header is optional.
func WritePuzzlesToFile(puzzles []*puzzle.Puzzle, path string, header bool) error {
	if path == "" {
		return errors.New("puzzlekit: file path is required")
	}
	if err := dataset.WriteFile(path, puzzles, header); err != nil {
		return fmt.Errorf("puzzlekit: %w", err)
	}
	return nil
}

// WritePuzzlesToFile is the method form of the package function.
func (c *Client) WritePuzzlesToFile(puzzles []*puzzle.Puzzle, path string, header bool) error {
	return WritePuzzlesToFile(puzzles, path, header)
}
