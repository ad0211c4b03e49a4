// Package puzzle defines the Lichess puzzle model, the filter used to select
// puzzles and the repository contracts implemented by the storage drivers.
package puzzle

import (
	"strconv"
	"strings"
)

// Column names as published in the Lichess puzzle dump.
const (
	ColumnID              = "PuzzleId"
	ColumnFEN             = "FEN"
	ColumnMoves           = "Moves"
	ColumnRating          = "Rating"
	ColumnRatingDeviation = "RatingDeviation"
	ColumnPopularity      = "Popularity"
	ColumnNbPlays         = "NbPlays"
	ColumnThemes          = "Themes"
	ColumnGameURL         = "GameUrl"
	ColumnOpeningTags     = "OpeningTags"
)

// Columns lists the dump columns in file order.
var Columns = []string{
	ColumnID,
	ColumnFEN,
	ColumnMoves,
	ColumnRating,
	ColumnRatingDeviation,
	ColumnPopularity,
	ColumnNbPlays,
	ColumnThemes,
	ColumnGameURL,
	ColumnOpeningTags,
}

// Row is a single tabular result keyed by column name.
type Row map[string]any

// Puzzle is one entry of the Lichess puzzle database.
type Puzzle struct {
	ID              string `json:"PuzzleId"        yaml:"PuzzleId"`
	FEN             string `json:"FEN"             yaml:"FEN"`
	Moves           string `json:"Moves"           yaml:"Moves"`
	Rating          int    `json:"Rating"          yaml:"Rating"`
	RatingDeviation int    `json:"RatingDeviation" yaml:"RatingDeviation"`
	Popularity      int    `json:"Popularity"      yaml:"Popularity"`
	NbPlays         int    `json:"NbPlays"         yaml:"NbPlays"`
	Themes          string `json:"Themes"          yaml:"Themes"`
	GameURL         string `json:"GameUrl"         yaml:"GameUrl"`
	OpeningTags     string `json:"OpeningTags"     yaml:"OpeningTags"`
}

// ThemeList splits the space separated Themes column.
func (p *Puzzle) ThemeList() []string {
	return strings.Fields(p.Themes)
}

// MoveList splits the UCI move sequence. The first move is played by the
// opponent and sets up the position the solver faces.
func (p *Puzzle) MoveList() []string {
	return strings.Fields(p.Moves)
}

// OpeningTagList splits the OpeningTags column; most puzzles have none.
func (p *Puzzle) OpeningTagList() []string {
	return strings.Fields(p.OpeningTags)
}

// HasTheme reports whether theme is one of the puzzle's themes. Case is
// ignored, as the stores' LIKE matching does.
func (p *Puzzle) HasTheme(theme string) bool {
	return hasToken(p.Themes, theme)
}

// HasOpening reports whether tag is one of the puzzle's opening tags.
func (p *Puzzle) HasOpening(tag string) bool {
	return hasToken(p.OpeningTags, tag)
}

// Values returns the puzzle fields in Columns order.
func (p *Puzzle) Values() []any {
	return []any{
		p.ID,
		p.FEN,
		p.Moves,
		p.Rating,
		p.RatingDeviation,
		p.Popularity,
		p.NbPlays,
		p.Themes,
		p.GameURL,
		p.OpeningTags,
	}
}

// Strings returns the puzzle fields in Columns order, formatted for CSV.
func (p *Puzzle) Strings() []string {
	return []string{
		p.ID,
		p.FEN,
		p.Moves,
		strconv.Itoa(p.Rating),
		strconv.Itoa(p.RatingDeviation),
		strconv.Itoa(p.Popularity),
		strconv.Itoa(p.NbPlays),
		p.Themes,
		p.GameURL,
		p.OpeningTags,
	}
}

// AsRow converts the puzzle into a Row keyed by the dump column names.
func (p *Puzzle) AsRow() Row {
	values := p.Values()
	row := make(Row, len(Columns))
	for i, col := range Columns {
		row[col] = values[i]
	}
	return row
}

func hasToken(field, token string) bool {
	for _, t := range strings.Fields(field) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
