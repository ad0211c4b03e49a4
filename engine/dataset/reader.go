package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Reader streams puzzles from a Lichess CSV dump.
type Reader struct {
	csv    *csv.Reader
	closer io.Closer
	index  map[string]int
	line   int
}

// NewReader wraps r, transparently decompressing zstd input. The first
// record must be the header; OpeningTags may be absent.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	var closer io.Closer
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("dataset: opening zstd stream: %w", err)
		}
		rc := dec.IOReadCloser()
		src, closer = rc, rc
	}
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset: missing header")
		}
		return nil, fmt.Errorf("dataset: reading header: %w", err)
	}
	index, err := indexHeader(header)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	return &Reader{csv: cr, closer: closer, index: index, line: 1}, nil
}

// OpenFile opens a plain or zstd compressed dump from disk.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = multiCloser{r.closer, f}
	return r, nil
}

func indexHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, col := range puzzle.Columns {
		if _, ok := index[col]; !ok && col != puzzle.ColumnOpeningTags {
			return nil, fmt.Errorf("dataset: header is missing column %s", col)
		}
	}
	return index, nil
}

// Next returns the next puzzle or io.EOF once the dump is exhausted.
func (r *Reader) Next() (*puzzle.Puzzle, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("dataset: line %d: %w", r.line+1, err)
	}
	r.line++
	p, err := r.parse(record)
	if err != nil {
		return nil, fmt.Errorf("dataset: line %d: %w", r.line, err)
	}
	return p, nil
}

// Line returns the number of the last record read, counting the header.
func (r *Reader) Line() int { return r.line }

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) field(record []string, col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (r *Reader) intField(record []string, col string) (int, error) {
	v := strings.TrimSpace(r.field(record, col))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return n, nil
}

func (r *Reader) parse(record []string) (*puzzle.Puzzle, error) {
	p := &puzzle.Puzzle{
		ID:          r.field(record, puzzle.ColumnID),
		FEN:         r.field(record, puzzle.ColumnFEN),
		Moves:       r.field(record, puzzle.ColumnMoves),
		Themes:      r.field(record, puzzle.ColumnThemes),
		GameURL:     r.field(record, puzzle.ColumnGameURL),
		OpeningTags: r.field(record, puzzle.ColumnOpeningTags),
	}
	if p.ID == "" {
		return nil, puzzle.ErrInvalidID
	}
	ints := []struct {
		col string
		dst *int
	}{
		{puzzle.ColumnRating, &p.Rating},
		{puzzle.ColumnRatingDeviation, &p.RatingDeviation},
		{puzzle.ColumnPopularity, &p.Popularity},
		{puzzle.ColumnNbPlays, &p.NbPlays},
	}
	for _, f := range ints {
		n, err := r.intField(record, f.col)
		if err != nil {
			return nil, err
		}
		*f.dst = n
	}
	return p, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
