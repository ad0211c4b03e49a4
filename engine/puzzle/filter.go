package puzzle

import (
	"fmt"
	"strings"
)

// DefaultCount is the number of puzzles returned when no count is requested.
const DefaultCount = 1

// Range is a closed interval used for rating and popularity bounds.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Validate checks the bounds are ordered.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ThemeMatch selects how multiple themes combine.
type ThemeMatch int

const (
	// MatchAny keeps puzzles carrying at least one of the themes.
	MatchAny ThemeMatch = iota
	// MatchAll keeps puzzles carrying every theme.
	MatchAll
)

// Filter describes which puzzles are eligible and how many to draw.
type Filter struct {
	Themes     []string
	ThemeMatch ThemeMatch
	Openings   []string
	Rating     *Range
	Popularity *Range
	Count      int
}

// FilterOption mutates a Filter under construction.
type FilterOption func(*Filter)

// NewFilter builds a Filter with DefaultCount and applies opts in order.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{Count: DefaultCount}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithThemes keeps puzzles matching any of the themes.
func WithThemes(themes ...string) FilterOption {
	return func(f *Filter) {
		f.Themes = append(f.Themes, themes...)
		f.ThemeMatch = MatchAny
	}
}

// WithAllThemes keeps puzzles matching every theme.
func WithAllThemes(themes ...string) FilterOption {
	return func(f *Filter) {
		f.Themes = append(f.Themes, themes...)
		f.ThemeMatch = MatchAll
	}
}

// WithOpenings keeps puzzles tagged with any of the opening tags.
func WithOpenings(tags ...string) FilterOption {
	return func(f *Filter) {
		f.Openings = append(f.Openings, tags...)
	}
}

func WithRatingRange(minRating, maxRating int) FilterOption {
	return func(f *Filter) {
		f.Rating = &Range{Min: minRating, Max: maxRating}
	}
}

func WithPopularityRange(minPopularity, maxPopularity int) FilterOption {
	return func(f *Filter) {
		f.Popularity = &Range{Min: minPopularity, Max: maxPopularity}
	}
}

func WithCount(n int) FilterOption {
	return func(f *Filter) {
		f.Count = n
	}
}

// Validate rejects filters that cannot be turned into a query.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Count <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, f.Count)
	}
	if f.Rating != nil {
		if err := f.Rating.Validate(); err != nil {
			return fmt.Errorf("rating: %w", err)
		}
	}
	if f.Popularity != nil {
		if err := f.Popularity.Validate(); err != nil {
			return fmt.Errorf("popularity: %w", err)
		}
	}
	for _, t := range f.Themes {
		if strings.TrimSpace(t) == "" || strings.ContainsAny(t, " \t") {
			return fmt.Errorf("%w: theme %q", ErrInvalidTheme, t)
		}
	}
	for _, o := range f.Openings {
		if strings.TrimSpace(o) == "" || strings.ContainsAny(o, " \t") {
			return fmt.Errorf("%w: opening %q", ErrInvalidTheme, o)
		}
	}
	return nil
}

// Limit returns the requested count, falling back to DefaultCount.
func (f *Filter) Limit() int {
	if f == nil || f.Count <= 0 {
		return DefaultCount
	}
	return f.Count
}

// writeKeywords never appear in a read outside quoted text. REPLACE is left
// out because it is also a SQLite string function; INTO still catches
// REPLACE INTO and SELECT INTO.
var writeKeywords = map[string]struct{}{
	"INSERT": {}, "INTO": {}, "UPDATE": {}, "DELETE": {}, "UPSERT": {}, "MERGE": {},
	"CREATE": {}, "DROP": {}, "ALTER": {}, "TRUNCATE": {},
	"ATTACH": {}, "DETACH": {}, "PRAGMA": {}, "VACUUM": {}, "REINDEX": {},
	"GRANT": {}, "REVOKE": {}, "COPY": {}, "CALL": {},
}

// ValidateRawQuery accepts a single SELECT or WITH statement that names no
// write keyword. Quoted text and comments are skipped, so a ';' inside a
// literal is fine. Drivers still run the statement read-only.
func ValidateRawQuery(query string) error {
	words, statements := scanSQL(query)
	if len(words) == 0 {
		return fmt.Errorf("%w: empty query", ErrNotReadOnly)
	}
	if statements > 1 {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	switch words[0] {
	case "SELECT", "WITH":
	default:
		return fmt.Errorf("%w: %s", ErrNotReadOnly, words[0])
	}
	for _, w := range words[1:] {
		if _, ok := writeKeywords[w]; ok {
			return fmt.Errorf("%w: %s", ErrNotReadOnly, w)
		}
	}
	return nil
}

// scanSQL returns the upper-cased bare words of query and the number of
// non-empty statements separated by ';'.
func scanSQL(query string) ([]string, int) {
	var (
		words      []string
		statements int
		pending    bool
	)
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				i = len(query)
			} else {
				i += end + 2
			}
			pending = true
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				i = len(query)
			} else {
				i += end
			}
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 4
			}
		case c == ';':
			if pending {
				statements++
				pending = false
			}
			i++
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			words = append(words, strings.ToUpper(query[i:j]))
			pending = true
			i = j
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		default:
			pending = true
			i++
		}
	}
	if pending {
		statements++
	}
	return words, statements
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
