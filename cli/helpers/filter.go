package helpers

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// AddFilterFlags registers the puzzle selection flags shared by the
// commands that draw puzzles.
func AddFilterFlags(cmd *cobra.Command, defaultCount int) {
	flags := cmd.Flags()
	flags.StringSliceP("theme", "t", nil, "Theme to match; repeat or comma separate for several")
	flags.Bool("all-themes", false, "Require every --theme instead of any")
	flags.StringSlice("opening", nil, "Opening tag to match")
	flags.Int("min-rating", 0, "Lowest puzzle rating")
	flags.Int("max-rating", math.MaxInt32, "Highest puzzle rating")
	flags.Int("min-popularity", -100, "Lowest popularity")
	flags.Int("max-popularity", 100, "Highest popularity")
	flags.IntP("count", "n", defaultCount, "Number of puzzles to draw")
}

// FilterOptions converts the flags registered by AddFilterFlags into filter
// options. Ranges are only applied when one of their bounds was set.
func FilterOptions(cmd *cobra.Command) ([]puzzle.FilterOption, error) {
	flags := cmd.Flags()
	var opts []puzzle.FilterOption

	themes, err := flags.GetStringSlice("theme")
	if err != nil {
		return nil, err
	}
	if len(themes) > 0 {
		allThemes, err := flags.GetBool("all-themes")
		if err != nil {
			return nil, err
		}
		if allThemes {
			opts = append(opts, puzzle.WithAllThemes(themes...))
		} else {
			opts = append(opts, puzzle.WithThemes(themes...))
		}
	}
	openings, err := flags.GetStringSlice("opening")
	if err != nil {
		return nil, err
	}
	if len(openings) > 0 {
		opts = append(opts, puzzle.WithOpenings(openings...))
	}

	if flags.Changed("min-rating") || flags.Changed("max-rating") {
		lo, hi, err := intPair(cmd, "min-rating", "max-rating")
		if err != nil {
			return nil, err
		}
		opts = append(opts, puzzle.WithRatingRange(lo, hi))
	}
	if flags.Changed("min-popularity") || flags.Changed("max-popularity") {
		lo, hi, err := intPair(cmd, "min-popularity", "max-popularity")
		if err != nil {
			return nil, err
		}
		opts = append(opts, puzzle.WithPopularityRange(lo, hi))
	}

	count, err := flags.GetInt("count")
	if err != nil {
		return nil, err
	}
	return append(opts, puzzle.WithCount(count)), nil
}

func intPair(cmd *cobra.Command, lo, hi string) (int, int, error) {
	a, err := cmd.Flags().GetInt(lo)
	if err != nil {
		return 0, 0, err
	}
	b, err := cmd.Flags().GetInt(hi)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
