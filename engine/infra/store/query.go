// Package store holds the SQL building blocks shared by the puzzle drivers.
package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// Table is the name of the puzzles table in every driver.
const Table = "puzzles"

// ColumnSet maps puzzle fields to a driver's physical column names.
type ColumnSet struct {
	ID              string
	FEN             string
	Moves           string
	Rating          string
	RatingDeviation string
	Popularity      string
	NbPlays         string
	Themes          string
	GameURL         string
	OpeningTags     string
	// Like is the case-insensitive pattern operator of the dialect.
	Like string
	// Random is the dialect's random ordering expression.
	Random string
}

// All returns the physical columns in puzzle.Columns order.
func (c ColumnSet) All() []string {
	return []string{
		c.ID,
		c.FEN,
		c.Moves,
		c.Rating,
		c.RatingDeviation,
		c.Popularity,
		c.NbPlays,
		c.Themes,
		c.GameURL,
		c.OpeningTags,
	}
}

// SelectPuzzles starts a SELECT of every puzzle column.
func SelectPuzzles(cols ColumnSet, format squirrel.PlaceholderFormat) squirrel.SelectBuilder {
	return squirrel.Select(cols.All()...).From(Table).PlaceholderFormat(format)
}

// ApplyFilter adds the filter's predicates to sb. Count is not applied.
func ApplyFilter(sb squirrel.SelectBuilder, cols ColumnSet, f *puzzle.Filter) squirrel.SelectBuilder {
	if f == nil {
		return sb
	}
	if len(f.Themes) > 0 {
		preds := make([]squirrel.Sqlizer, 0, len(f.Themes))
		for _, t := range f.Themes {
			preds = append(preds, TokenMatch(cols, cols.Themes, t))
		}
		if f.ThemeMatch == puzzle.MatchAll {
			sb = sb.Where(squirrel.And(preds))
		} else {
			sb = sb.Where(squirrel.Or(preds))
		}
	}
	if len(f.Openings) > 0 {
		preds := make([]squirrel.Sqlizer, 0, len(f.Openings))
		for _, o := range f.Openings {
			preds = append(preds, TokenMatch(cols, cols.OpeningTags, o))
		}
		sb = sb.Where(squirrel.Or(preds))
	}
	if f.Rating != nil {
		sb = sb.Where(fmt.Sprintf("%s BETWEEN ? AND ?", cols.Rating), f.Rating.Min, f.Rating.Max)
	}
	if f.Popularity != nil {
		sb = sb.Where(fmt.Sprintf("%s BETWEEN ? AND ?", cols.Popularity), f.Popularity.Min, f.Popularity.Max)
	}
	return sb
}

// RandomSelection builds the random draw for f.
func RandomSelection(
	cols ColumnSet,
	format squirrel.PlaceholderFormat,
	f *puzzle.Filter,
) squirrel.SelectBuilder {
	sb := ApplyFilter(SelectPuzzles(cols, format), cols, f)
	return sb.OrderBy(cols.Random).Limit(uint64(f.Limit()))
}

// CountSelection builds the COUNT(*) query for f.
func CountSelection(cols ColumnSet, format squirrel.PlaceholderFormat, f *puzzle.Filter) squirrel.SelectBuilder {
	sb := squirrel.Select("COUNT(*)").From(Table).PlaceholderFormat(format)
	return ApplyFilter(sb, cols, f)
}

// TokenMatch matches token as a whole word of a space separated column.
func TokenMatch(cols ColumnSet, column, token string) squirrel.Sqlizer {
	pattern := "% " + escapeLike(token) + " %"
	return squirrel.Expr(
		fmt.Sprintf("(' ' || COALESCE(%s, '') || ' ') %s ? ESCAPE '\\'", column, cols.Like),
		pattern,
	)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DistinctTokens splits space separated values and returns the sorted set.
func DistinctTokens(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, tok := range strings.Fields(v) {
			seen[tok] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	slices.Sort(out)
	return out
}
