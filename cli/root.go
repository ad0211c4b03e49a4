// Package cli assembles the puzzlekit command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd/catalog"
	configcmd "github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd/db"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd/export"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/helpers"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "puzzlekit",
		Short: "Retrieve and filter Lichess chess puzzles",
		Long: `puzzlekit queries a database built from the Lichess puzzle dataset.
Puzzles can be drawn at random by rating, popularity, theme and opening,
looked up by ID, graded move by move and exported as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return setupGlobalConfig(c)
		},
	}
	helpers.AddGlobalFlags(root)

	root.AddCommand(puzzle.Cmd())
	root.AddCommand(catalog.Commands()...)
	root.AddCommand(
		export.Cmd(),
		db.Cmd(),
		configcmd.NewConfigCommand(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{},
				func(_ context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
					return e.Output().WriteData(version.Get())
				}, args)
		},
	}
}

func setupGlobalConfig(c *cobra.Command) error {
	if _, err := helpers.LoadEnvironmentFile(c); err != nil {
		return fmt.Errorf("failed to load environment file: %w", err)
	}
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliFlags, err := helpers.ExtractCLIFlags(c)
	if err != nil {
		return fmt.Errorf("failed to extract CLI flags: %w", err)
	}

	// Precedence, lowest first: defaults, YAML file, environment, CLI flags.
	sources := []config.Source{config.NewDefaultProvider()}
	configFile, err := c.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config file: %w", err)
	}
	if configFile != "" {
		path, err := config.ExpandHome(configFile)
		if err != nil {
			return err
		}
		sources = append(sources, config.NewYAMLProvider(path))
	}
	sources = append(sources, config.NewEnvProvider())
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}

	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx, sources...)
	if err != nil {
		return helpers.NewCliError("INVALID_CONFIG", err.Error(), "run `puzzlekit config show --sources` to see where values come from")
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithManager(ctx, manager)
	c.SetContext(ctx)
	return nil
}

// Execute runs the command tree and reports a failure in the configured
// output format. It returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, RootCmd())
}

func run(ctx context.Context, root *cobra.Command) int {
	c, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	format, color := helpers.OutputFormatTable, false
	if c != nil && c.Context() != nil {
		cfg := config.FromContext(c.Context())
		format = helpers.DetectFormat(cfg)
		color = helpers.ShouldUseColor(cfg, root.ErrOrStderr())
	}
	helpers.OutputError(root.ErrOrStderr(), err, format, color)
	return 1
}
