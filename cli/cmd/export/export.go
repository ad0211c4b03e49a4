// Package export writes filtered puzzle selections as Lichess CSV.
package export

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/helpers"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/dataset"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const defaultExportCount = 100

// Cmd returns the export command.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "export",
		Short: "Export random puzzles matching the filters as CSV",
		Long: `Draw puzzles like "puzzle get" and write them in the Lichess column order.
Without --output the CSV goes to stdout.`,
		Example: `  puzzlekit export --theme endgame -n 500 -o endgames.csv --header`,
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireDB: true}, runExport, args)
		},
	}
	helpers.AddFilterFlags(command, defaultExportCount)
	command.Flags().StringP("output", "o", "", "File to write; stdout when empty")
	command.Flags().Bool("header", false, "Write the column header line")
	return command
}

func runExport(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	opts, err := helpers.FilterOptions(c)
	if err != nil {
		return err
	}
	output, err := c.Flags().GetString("output")
	if err != nil {
		return err
	}
	header, err := c.Flags().GetBool("header")
	if err != nil {
		return err
	}
	puzzles, err := e.Client().GetPuzzle(ctx, opts...)
	if err != nil {
		return err
	}
	if output == "" {
		return dataset.WriteCSV(e.Output().Writer(), puzzles, header)
	}
	if err := e.Client().WritePuzzlesToFile(puzzles, output, header); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Exported puzzles", "count", len(puzzles), "path", output)
	fmt.Fprintf(c.ErrOrStderr(), "Wrote %d puzzles to %s\n", len(puzzles), output)
	return nil
}
