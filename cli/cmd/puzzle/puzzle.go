// Package puzzle implements the commands that draw, look up and grade puzzles.
package puzzle

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/helpers"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

var readOnly = cmd.ExecutorOptions{RequireDB: true}

// Cmd returns the puzzle command group.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "puzzle",
		Short: "Draw, inspect and solve puzzles",
		Long:  "Query the puzzle database: random selections, lookups by ID, raw SQL and move checking.",
	}
	command.AddCommand(getCmd(), countCmd(), showCmd(), rawCmd(), checkCmd())
	return command
}

func getCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "get",
		Short: "Draw random puzzles matching the filters",
		Example: `  puzzlekit puzzle get --theme fork --min-rating 1500 --max-rating 1800 -n 5
  puzzlekit puzzle get --theme mateIn2 --theme endgame --all-themes -f json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runGet, args)
		},
	}
	helpers.AddFilterFlags(command, 1)
	return command
}

func runGet(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	opts, err := helpers.FilterOptions(c)
	if err != nil {
		return err
	}
	puzzles, err := e.Client().GetPuzzle(ctx, opts...)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Drew puzzles", "count", len(puzzles))
	if len(puzzles) == 0 && e.Output().Format() == helpers.OutputFormatTable {
		e.Output().Println("No puzzles match the given filters.")
		return nil
	}
	return e.Output().WriteData(puzzleList(puzzles))
}

type countResult struct {
	Count int64 `json:"count" yaml:"count"`
}

func (r countResult) String() string { return fmt.Sprint(r.Count) }

func countCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "count",
		Short: "Count puzzles matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runCount, args)
		},
	}
	helpers.AddFilterFlags(command, 1)
	return command
}

func runCount(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	opts, err := helpers.FilterOptions(c)
	if err != nil {
		return err
	}
	n, err := e.Client().CountPuzzles(ctx, opts...)
	if err != nil {
		return err
	}
	return e.Output().WriteData(countResult{Count: n})
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <puzzle-id>",
		Short: "Show one puzzle with its board",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runShow, args)
		},
	}
}

func runShow(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	p, err := e.Client().GetPuzzleByID(ctx, args[0])
	if err != nil {
		return err
	}
	detail, err := newPuzzleDetail(p)
	if err != nil {
		return err
	}
	out := e.Output()
	if out.Format() != helpers.OutputFormatTable {
		return out.WriteData(detail)
	}
	out.Println(out.Highlight(fmt.Sprintf("Puzzle %s: %s to move", p.ID, detail.ToMove)))
	out.Println(detail.Board)
	return out.WriteData(detail)
}

func rawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "raw <query> [args...]",
		Short: "Run a read-only SQL query against the puzzles table",
		Long: `Run a SELECT or WITH statement and print the rows. Positional arguments
after the query bind to its placeholders in order.`,
		Example: `  puzzlekit puzzle raw "SELECT PuzzleId, Rating FROM puzzles WHERE Rating > ? LIMIT 5" 2000`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runRaw, args)
		},
	}
}

func runRaw(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	params := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		params = append(params, a)
	}
	rows, err := e.Client().GetPuzzleRaw(ctx, args[0], params...)
	if err != nil {
		return err
	}
	if e.Output().Format() == helpers.OutputFormatTable {
		if len(rows) == 0 {
			e.Output().Println("No rows.")
			return nil
		}
		return e.Output().WriteData(rowTable(rows))
	}
	return e.Output().WriteData(rows)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <puzzle-id> <move>...",
		Short: "Grade a line of UCI moves against the solution",
		Example: `  puzzlekit puzzle check 00008 e6f7 g1h1
  puzzlekit puzzle check 00008 "e6f7 g1h1"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, readOnly, runCheck, args)
		},
	}
}

func runCheck(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	p, err := e.Client().GetPuzzleByID(ctx, args[0])
	if err != nil {
		return err
	}
	moves := strings.Fields(strings.Join(args[1:], " "))
	attempt, err := p.Check(moves)
	if err != nil {
		return err
	}
	return e.Output().WriteData(attemptView{ID: p.ID, Attempt: *attempt})
}
