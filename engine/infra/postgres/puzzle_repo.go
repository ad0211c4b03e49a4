package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/store"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

// DB is the minimal database interface PuzzleRepo depends on (pgxpool or pgxmock).
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var columns = store.ColumnSet{
	ID:              "puzzle_id",
	FEN:             "fen",
	Moves:           "moves",
	Rating:          "rating",
	RatingDeviation: "rating_deviation",
	Popularity:      "popularity",
	NbPlays:         "nb_plays",
	Themes:          "themes",
	GameURL:         "game_url",
	OpeningTags:     "opening_tags",
	Like:            "ILIKE",
	Random:          "random()",
}

// dumpNames maps physical columns back to the Lichess dump names.
var dumpNames = func() map[string]string {
	out := make(map[string]string, len(puzzle.Columns))
	for i, c := range columns.All() {
		out[c] = puzzle.Columns[i]
	}
	return out
}()

// puzzleRow is the scany mapping of a puzzles row.
type puzzleRow struct {
	PuzzleID        string `db:"puzzle_id"`
	FEN             string `db:"fen"`
	Moves           string `db:"moves"`
	Rating          int    `db:"rating"`
	RatingDeviation int    `db:"rating_deviation"`
	Popularity      int    `db:"popularity"`
	NbPlays         int    `db:"nb_plays"`
	Themes          string `db:"themes"`
	GameURL         string `db:"game_url"`
	OpeningTags     string `db:"opening_tags"`
}

func (r *puzzleRow) toPuzzle() *puzzle.Puzzle {
	return &puzzle.Puzzle{
		ID:              r.PuzzleID,
		FEN:             r.FEN,
		Moves:           r.Moves,
		Rating:          r.Rating,
		RatingDeviation: r.RatingDeviation,
		Popularity:      r.Popularity,
		NbPlays:         r.NbPlays,
		Themes:          r.Themes,
		GameURL:         r.GameURL,
		OpeningTags:     r.OpeningTags,
	}
}

// PuzzleRepo implements puzzle.Repository and puzzle.Writer backed by a pgx-compatible pool.
type PuzzleRepo struct {
	db DB
}

func NewPuzzleRepo(db DB) *PuzzleRepo {
	return &PuzzleRepo{db: db}
}

var (
	_ puzzle.Repository = (*PuzzleRepo)(nil)
	_ puzzle.Writer     = (*PuzzleRepo)(nil)
)

func (r *PuzzleRepo) Random(ctx context.Context, f *puzzle.Filter) ([]*puzzle.Puzzle, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := store.RandomSelection(columns, squirrel.Dollar, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building random query: %w", err)
	}
	var rows []*puzzleRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("postgres: scanning puzzles: %w", err)
	}
	out := make([]*puzzle.Puzzle, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toPuzzle())
	}
	return out, nil
}

func (r *PuzzleRepo) Count(ctx context.Context, f *puzzle.Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	sql, args, err := store.CountSelection(columns, squirrel.Dollar, f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("postgres: building count query: %w", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting puzzles: %w", err)
	}
	return n, nil
}

func (r *PuzzleRepo) ByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, puzzle.ErrInvalidID
	}
	sql, args, err := store.SelectPuzzles(columns, squirrel.Dollar).
		Where(squirrel.Eq{columns.ID: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: building by id query: %w", err)
	}
	var row puzzleRow
	if err := pgxscan.Get(ctx, r.db, &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, puzzle.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scanning puzzle: %w", err)
	}
	return row.toPuzzle(), nil
}

// Raw runs query inside a read-only transaction so the server rejects writes
// that slip past the statement check.
func (r *PuzzleRepo) Raw(ctx context.Context, query string, args ...any) (out []puzzle.Row, err error) {
	if err := puzzle.ValidateRawQuery(query); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning read-only transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.FromContext(ctx).Warn("Transaction rollback failed", "error", rbErr)
		}
	}()
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: raw query: %w", err)
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out = make([]puzzle.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: reading raw row: %w", err)
		}
		row := make(puzzle.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating raw rows: %w", err)
	}
	logger.FromContext(ctx).Debug("Raw query executed", "rows", len(out))
	return out, nil
}

func (r *PuzzleRepo) Themes(ctx context.Context) ([]string, error) {
	return r.distinctTokens(ctx, columns.Themes)
}

func (r *PuzzleRepo) Openings(ctx context.Context) ([]string, error) {
	return r.distinctTokens(ctx, columns.OpeningTags)
}

// distinctTokens lets the server split and dedupe the space separated column.
func (r *PuzzleRepo) distinctTokens(ctx context.Context, column string) ([]string, error) {
	sql := fmt.Sprintf(
		"SELECT DISTINCT t FROM %s, regexp_split_to_table(%s, '\\s+') AS t WHERE t <> ''",
		store.Table,
		column,
	)
	var values []string
	if err := pgxscan.Select(ctx, r.db, &values, sql); err != nil {
		return nil, fmt.Errorf("postgres: listing %s: %w", column, err)
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
	sql := fmt.Sprintf("SELECT MIN(%[1]s), MAX(%[1]s) FROM %[2]s", column, store.Table)
	var lo, hi *int64
	if err := r.db.QueryRow(ctx, sql).Scan(&lo, &hi); err != nil {
		return puzzle.Range{}, fmt.Errorf("postgres: %s range: %w", column, err)
	}
	if lo == nil || hi == nil {
		return puzzle.Range{}, puzzle.ErrEmptyDatabase
	}
	return puzzle.Range{Min: int(*lo), Max: int(*hi)}, nil
}

// Attributes lists the table columns, reported under their dump names.
func (r *PuzzleRepo) Attributes(ctx context.Context) ([]string, error) {
	const sql = "SELECT column_name FROM information_schema.columns " +
		"WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position"
	var names []string
	if err := pgxscan.Select(ctx, r.db, &names, sql, store.Table); err != nil {
		return nil, fmt.Errorf("postgres: listing columns: %w", err)
	}
	for i, n := range names {
		if dump, ok := dumpNames[n]; ok {
			names[i] = dump
		}
	}
	return names, nil
}

// UpsertBatch queues one upsert per puzzle in a pgx.Batch inside a transaction.
func (r *PuzzleRepo) UpsertBatch(ctx context.Context, puzzles []*puzzle.Puzzle) error {
	if len(puzzles) == 0 {
		return nil
	}
	return r.withTransaction(ctx, func(tx pgx.Tx) error {
		stmt := upsertStatement()
		batch := &pgx.Batch{}
		for _, p := range puzzles {
			batch.Queue(stmt, p.Values()...)
		}
		br := tx.SendBatch(ctx, batch)
		for _, p := range puzzles {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: upserting puzzle %s: %w", p.ID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: closing batch: %w", err)
		}
		return nil
	})
}

func (r *PuzzleRepo) withTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.FromContext(ctx).Warn("Transaction rollback failed after panic", "error", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.FromContext(ctx).Warn("Transaction rollback failed", "error", rbErr)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()
	err = fn(tx)
	return err
}

func upsertStatement() string {
	all := columns.All()
	placeholders := make([]string, len(all))
	updates := make([]string, 0, len(all)-1)
	for i, c := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			updates = append(updates, fmt.Sprintf("%[1]s = EXCLUDED.%[1]s", c))
		}
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		store.Table,
		strings.Join(all, ", "),
		strings.Join(placeholders, ", "),
		columns.ID,
		strings.Join(updates, ", "),
	)
}
