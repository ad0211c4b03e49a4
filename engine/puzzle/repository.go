package puzzle

import "context"

// Repository is the read side of the puzzle database.
type Repository interface {
	// Random draws up to filter.Count puzzles matching filter in random order.
	Random(ctx context.Context, filter *Filter) ([]*Puzzle, error)
	// Count returns how many puzzles match filter. Count on the filter is ignored.
	Count(ctx context.Context, filter *Filter) (int64, error)
	// ByID returns ErrNotFound when no puzzle has the ID.
	ByID(ctx context.Context, id string) (*Puzzle, error)
	// Raw runs a read-only SQL statement and returns the rows untyped.
	Raw(ctx context.Context, query string, args ...any) ([]Row, error)
	// Themes returns every distinct theme, sorted.
	Themes(ctx context.Context) ([]string, error)
	// Openings returns every distinct opening tag, sorted.
	Openings(ctx context.Context) ([]string, error)
	RatingRange(ctx context.Context) (Range, error)
	PopularityRange(ctx context.Context) (Range, error)
	// Attributes returns the column names of the puzzles table.
	Attributes(ctx context.Context) ([]string, error)
}

// Writer loads puzzles into a database during provisioning.
type Writer interface {
	// UpsertBatch inserts the puzzles, replacing rows with the same ID.
	UpsertBatch(ctx context.Context, puzzles []*Puzzle) error
}
