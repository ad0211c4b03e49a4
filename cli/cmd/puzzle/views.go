package puzzle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// puzzleList renders drawn puzzles one per row.
type puzzleList []*puzzle.Puzzle

func (l puzzleList) Header() []string {
	return []string{"ID", "RATING", "POPULARITY", "THEMES", "OPENINGS", "FEN"}
}

func (l puzzleList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{
			p.ID,
			strconv.Itoa(p.Rating),
			strconv.Itoa(p.Popularity),
			p.Themes,
			p.OpeningTags,
			p.FEN,
		})
	}
	return rows
}

// puzzleDetail is the show command payload.
type puzzleDetail struct {
	Puzzle   *puzzle.Puzzle `json:"puzzle"    yaml:"puzzle"`
	Position string         `json:"position"  yaml:"position"`
	ToMove   string         `json:"to_move"   yaml:"to_move"`
	Solution []string       `json:"solution"  yaml:"solution"`
	Board    string         `json:"-"         yaml:"-"`
}

func newPuzzleDetail(p *puzzle.Puzzle) (*puzzleDetail, error) {
	position, err := p.Position()
	if err != nil {
		return nil, err
	}
	color, err := p.SolverColor()
	if err != nil {
		return nil, err
	}
	board, err := p.Board()
	if err != nil {
		return nil, err
	}
	return &puzzleDetail{
		Puzzle:   p,
		Position: position,
		ToMove:   color,
		Solution: p.Solution(),
		Board:    board,
	}, nil
}

func (d *puzzleDetail) Header() []string { return []string{"FIELD", "VALUE"} }

func (d *puzzleDetail) Rows() [][]string {
	p := d.Puzzle
	return [][]string{
		{"PuzzleId", p.ID},
		{"Rating", fmt.Sprintf("%d ±%d", p.Rating, p.RatingDeviation)},
		{"Popularity", strconv.Itoa(p.Popularity)},
		{"NbPlays", strconv.Itoa(p.NbPlays)},
		{"Themes", p.Themes},
		{"OpeningTags", p.OpeningTags},
		{"GameUrl", p.GameURL},
		{"Position", d.Position},
		{"ToMove", d.ToMove},
		{"Solution", strings.Join(d.Solution, " ")},
	}
}

// rowTable lays out raw query rows. Known puzzle columns come first in dump
// order, anything else follows alphabetically.
type rowTable []puzzle.Row

func (t rowTable) Header() []string {
	seen := make(map[string]bool)
	for _, row := range t {
		for k := range row {
			seen[k] = true
		}
	}
	header := make([]string, 0, len(seen))
	for _, col := range puzzle.Columns {
		if seen[col] {
			header = append(header, col)
			delete(seen, col)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(header, rest...)
}

func (t rowTable) Rows() [][]string {
	header := t.Header()
	rows := make([][]string, 0, len(t))
	for _, row := range t {
		cells := make([]string, len(header))
		for i, col := range header {
			if v, ok := row[col]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, cells)
	}
	return rows
}

// attemptView is the check command payload.
type attemptView struct {
	ID             string `json:"id" yaml:"id"`
	puzzle.Attempt `yaml:",inline"`
}

func (a attemptView) Header() []string {
	return []string{"ID", "CORRECT", "SOLVED", "FAILED", "EXPECTED"}
}

func (a attemptView) Rows() [][]string {
	return [][]string{{
		a.ID,
		strconv.Itoa(a.Correct),
		strconv.FormatBool(a.Solved),
		strconv.FormatBool(a.Failed),
		a.Expected,
	}}
}
