// Package catalog implements the commands that describe what the puzzle
// database contains.
package catalog

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/puzzlekit"
)

var readOnly = cmd.ExecutorOptions{RequireDB: true}

// Commands returns the top-level catalog commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{themesCmd(), openingsCmd(), attributesCmd(), statsCmd()}
}

func listCommand(use, short string, list func(*puzzlekit.Client, context.Context) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly,
				func(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					items, err := list(e.Client(), ctx)
					if err != nil {
						return err
					}
					return e.Output().WriteData(items)
				}, args)
		},
	}
}

func themesCmd() *cobra.Command {
	return listCommand("themes", "List every puzzle theme", (*puzzlekit.Client).GetAllThemes)
}

func openingsCmd() *cobra.Command {
	return listCommand("openings", "List every opening tag", (*puzzlekit.Client).GetAllOpenings)
}

func attributesCmd() *cobra.Command {
	return listCommand("attributes", "List the columns of the puzzles table", (*puzzlekit.Client).GetPuzzleAttributes)
}

// statsView lays out database statistics as a two column table.
type statsView struct {
	puzzlekit.Stats `yaml:",inline"`
	Target          string `json:"target" yaml:"target"`
}

func (s statsView) Header() []string { return []string{"STAT", "VALUE"} }

func (s statsView) Rows() [][]string {
	rows := [][]string{
		{"database", s.Target},
		{"puzzles", strconv.FormatInt(s.Puzzles, 10)},
	}
	if s.Puzzles == 0 {
		return rows
	}
	return append(rows,
		[]string{"themes", strconv.Itoa(s.Themes)},
		[]string{"openings", strconv.Itoa(s.Openings)},
		[]string{"rating", s.Rating.String()},
		[]string{"popularity", s.Popularity.String()},
	)
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the puzzle database",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runStats, args)
		},
	}
}

func runStats(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	stats, err := e.Client().GetStats(ctx)
	if err != nil {
		return err
	}
	return e.Output().WriteData(statsView{Stats: *stats, Target: e.Provider().Target()})
}
