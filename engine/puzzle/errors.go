package puzzle

import "errors"

var (
	// ErrNotFound is returned when no puzzle has the requested ID.
	ErrNotFound = errors.New("puzzle not found")
	// ErrInvalidID is returned for an empty puzzle ID.
	ErrInvalidID = errors.New("puzzle id must be a non-empty string")
	// ErrInvalidCount is returned when the requested puzzle count is not positive.
	ErrInvalidCount = errors.New("count must be a positive integer")
	// ErrInvalidRange is returned when a range has its bounds inverted.
	ErrInvalidRange = errors.New("range minimum must not exceed maximum")
	// ErrInvalidTheme is returned for blank theme or opening tags.
	ErrInvalidTheme = errors.New("themes and openings must be non-empty tags")
	// ErrNotReadOnly is returned when a raw query is not a plain read.
	ErrNotReadOnly = errors.New("raw queries must be read-only SELECT statements")
	// ErrDatabaseNotFound is returned when the puzzle database file does not exist.
	ErrDatabaseNotFound = errors.New("puzzle database not found")
	// ErrEmptyDatabase is returned by aggregate lookups on a table with no rows.
	ErrEmptyDatabase = errors.New("puzzle database is empty")
	// ErrInvalidPuzzle is returned when a puzzle's position or moves do not parse.
	ErrInvalidPuzzle = errors.New("invalid puzzle")
)
