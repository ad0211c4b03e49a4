package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/store"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

// columns keeps the Lichess dump names used by the published database.
var columns = store.ColumnSet{
	ID:              puzzle.ColumnID,
	FEN:             puzzle.ColumnFEN,
	Moves:           puzzle.ColumnMoves,
	Rating:          puzzle.ColumnRating,
	RatingDeviation: puzzle.ColumnRatingDeviation,
	Popularity:      puzzle.ColumnPopularity,
	NbPlays:         puzzle.ColumnNbPlays,
	Themes:          puzzle.ColumnThemes,
	GameURL:         puzzle.ColumnGameURL,
	OpeningTags:     puzzle.ColumnOpeningTags,
	Like:            "LIKE",
	Random:          "RANDOM()",
}

// PuzzleRepo implements puzzle.Repository and puzzle.Writer on a SQLite *sql.DB.
type PuzzleRepo struct{ db *sql.DB }

// NewPuzzleRepo creates a new SQLite-backed puzzle repository.
func NewPuzzleRepo(db *sql.DB) *PuzzleRepo { return &PuzzleRepo{db: db} }

var (
	_ puzzle.Repository = (*PuzzleRepo)(nil)
	_ puzzle.Writer     = (*PuzzleRepo)(nil)
)

func (r *PuzzleRepo) Random(ctx context.Context, f *puzzle.Filter) ([]*puzzle.Puzzle, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	q, args, err := store.RandomSelection(columns, squirrel.Question, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build random query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: random puzzles: %w", err)
	}
	defer rows.Close()
	out := make([]*puzzle.Puzzle, 0, f.Limit())
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter puzzles: %w", err)
	}
	return out, nil
}

func (r *PuzzleRepo) Count(ctx context.Context, f *puzzle.Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	q, args, err := store.CountSelection(columns, squirrel.Question, f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: build count query: %w", err)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count puzzles: %w", err)
	}
	return n, nil
}

func (r *PuzzleRepo) ByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, puzzle.ErrInvalidID
	}
	q, args, err := store.SelectPuzzles(columns, squirrel.Question).
		Where(squirrel.Eq{columns.ID: id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build by id query: %w", err)
	}
	p, err := scanPuzzle(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, puzzle.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Raw runs a caller supplied query on a connection switched to query_only, so
// SQLite refuses any write the statement check missed. Rows are keyed by
// column name.
func (r *PuzzleRepo) Raw(ctx context.Context, query string, args ...any) ([]puzzle.Row, error) {
	if err := puzzle.ValidateRawQuery(query); err != nil {
		return nil, err
	}
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: acquire connection: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("sqlite: enable query_only: %w", err)
	}
	defer func() {
		// The connection returns to the pool, so writers must not inherit the flag.
		if _, rerr := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); rerr != nil {
			logger.FromContext(ctx).Warn("sqlite: reset query_only failed", "error", rerr)
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rawQueryError("raw query", err)
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: raw columns: %w", err)
	}
	out := make([]puzzle.Row, 0)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan raw row: %w", err)
		}
		row := make(puzzle.Row, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, rawQueryError("iter raw rows", err)
	}
	logger.FromContext(ctx).Debug("Raw query executed", "rows", len(out))
	return out, nil
}

// rawQueryError reports writes refused by query_only as puzzle.ErrNotReadOnly.
func rawQueryError(stage string, err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_READONLY {
		return fmt.Errorf("%w: sqlite: %s: %w", puzzle.ErrNotReadOnly, stage, err)
	}
	return fmt.Errorf("sqlite: %s: %w", stage, err)
}

func (r *PuzzleRepo) Themes(ctx context.Context) ([]string, error) {
	return r.distinctTokens(ctx, columns.Themes)
}

func (r *PuzzleRepo) Openings(ctx context.Context) ([]string, error) {
	return r.distinctTokens(ctx, columns.OpeningTags)
}

func (r *PuzzleRepo) distinctTokens(ctx context.Context, column string) ([]string, error) {
	q, _, err := squirrel.Select(column).Distinct().From(store.Table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build distinct query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: distinct %s: %w", column, err)
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", column, err)
		}
		values = append(values, v.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter %s: %w", column, err)
	}
	return store.DistinctTokens(values), nil
}

func (r *PuzzleRepo) RatingRange(ctx context.Context) (puzzle.Range, error) {
	return r.bounds(ctx, columns.Rating)
}

func (r *PuzzleRepo) PopularityRange(ctx context.Context) (puzzle.Range, error) {
	return r.bounds(ctx, columns.Popularity)
}

func (r *PuzzleRepo) bounds(ctx context.Context, column string) (puzzle.Range, error) {
	q := fmt.Sprintf("SELECT MIN(%[1]s), MAX(%[1]s) FROM %[2]s", column, store.Table)
	var lo, hi sql.NullInt64
	if err := r.db.QueryRowContext(ctx, q).Scan(&lo, &hi); err != nil {
		return puzzle.Range{}, fmt.Errorf("sqlite: %s range: %w", column, err)
	}
	if !lo.Valid || !hi.Valid {
		return puzzle.Range{}, puzzle.ErrEmptyDatabase
	}
	return puzzle.Range{Min: int(lo.Int64), Max: int(hi.Int64)}, nil
}

// Attributes lists the puzzles table columns in declaration order.
func (r *PuzzleRepo) Attributes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", store.Table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan table info: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter table info: %w", err)
	}
	return names, nil
}

// UpsertBatch inserts or replaces puzzles keyed by PuzzleId in one transaction.
func (r *PuzzleRepo) UpsertBatch(ctx context.Context, puzzles []*puzzle.Puzzle) (err error) {
	if len(puzzles) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rb := tx.Rollback(); rb != nil {
				logger.FromContext(ctx).Warn("sqlite: rollback failed", "error", rb)
			}
		}
	}()
	stmt, err := tx.PrepareContext(ctx, upsertStatement())
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, p := range puzzles {
		if _, err = stmt.ExecContext(ctx, p.Values()...); err != nil {
			return fmt.Errorf("sqlite: upsert puzzle %s: %w", p.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit upsert: %w", err)
	}
	return nil
}

func upsertStatement() string {
	all := columns.All()
	updates := make([]string, 0, len(all)-1)
	for _, c := range all[1:] {
		updates = append(updates, fmt.Sprintf("%[1]s = excluded.%[1]s", c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		store.Table,
		strings.Join(all, ", "),
		questionList(len(all)),
		columns.ID,
		strings.Join(updates, ", "),
	)
}

func questionList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPuzzle tolerates NULLs left by dump importers that skipped empty cells.
func scanPuzzle(s rowScanner) (*puzzle.Puzzle, error) {
	var (
		id, fen, moves, themes, url, openings sql.NullString
		rating, deviation, popularity, plays  sql.NullInt64
	)
	err := s.Scan(&id, &fen, &moves, &rating, &deviation, &popularity, &plays, &themes, &url, &openings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan puzzle: %w", err)
	}
	return &puzzle.Puzzle{
		ID:              id.String,
		FEN:             fen.String,
		Moves:           moves.String,
		Rating:          int(rating.Int64),
		RatingDeviation: int(deviation.Int64),
		Popularity:      int(popularity.Int64),
		NbPlays:         int(plays.Int64),
		Themes:          themes.String,
		GameURL:         url.String,
		OpeningTags:     openings.String,
	}, nil
}
