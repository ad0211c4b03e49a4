package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/helpers"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/infra/repo"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/puzzlekit"
)

// CommandExecutor handles common setup and execution patterns for CLI commands.
// It gives every command one place for:
// - Opening the puzzle store
// - Output format detection
// - Signal driven cancellation
// - Error classification
type CommandExecutor struct {
	cfg      *config.Config
	out      *helpers.OutputWriter
	provider *repo.Provider
	client   *puzzlekit.Client
	cleanup  func()
}

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ExecutorOptions allows customization of the command executor
type ExecutorOptions struct {
	// RequireDB opens the configured puzzle store before the handler runs.
	RequireDB bool
	// Writable opens the store for provisioning instead of read-only.
	Writable bool
	// Migrate applies the schema migrations on open.
	Migrate bool
}

// NewCommandExecutor creates a new command executor with all necessary setup.
func NewCommandExecutor(ctx context.Context, cmd *cobra.Command, opts ExecutorOptions) (*CommandExecutor, error) {
	cfg := config.FromContext(ctx)
	format := helpers.DetectFormat(cfg)
	color := helpers.ShouldUseColor(cfg, cmd.OutOrStdout())
	logger.FromContext(ctx).Debug("detected output format", "format", format, "color", color)
	executor := &CommandExecutor{
		cfg: cfg,
		out: helpers.NewOutputWriter(cmd.OutOrStdout(), format, color),
	}
	if !opts.RequireDB {
		return executor, nil
	}
	dbCfg := *cfg
	if opts.Writable {
		dbCfg.Database.ReadOnly = false
	}
	if opts.Migrate {
		dbCfg.Database.AutoMigrate = true
	}
	provider, cleanup, err := repo.NewProvider(ctx, &dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open puzzle database: %w", err)
	}
	executor.provider = provider
	executor.cleanup = cleanup
	executor.client = puzzlekit.NewClient(provider.Repository())
	return executor, nil
}

// Execute runs handler and releases the store afterwards.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handler HandlerFunc, args []string) error {
	defer e.Close()
	if handler == nil {
		return fmt.Errorf("command handler not implemented")
	}
	return handler(ctx, cmd, e, args)
}

// Close releases the puzzle store when one was opened.
func (e *CommandExecutor) Close() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

func (e *CommandExecutor) Config() *config.Config { return e.cfg }

func (e *CommandExecutor) Output() *helpers.OutputWriter { return e.out }

// Client returns the puzzle client, nil unless RequireDB was set.
func (e *CommandExecutor) Client() *puzzlekit.Client { return e.client }

// Provider returns the open store, nil unless RequireDB was set.
func (e *CommandExecutor) Provider() *repo.Provider { return e.provider }

// ExecuteCommand creates an executor and runs handler under a context that
// is canceled on SIGINT or SIGTERM.
func ExecuteCommand(cmd *cobra.Command, opts ExecutorOptions, handler HandlerFunc, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	executor, err := NewCommandExecutor(ctx, cmd, opts)
	if err != nil {
		return HandleCommonErrors(err)
	}
	return HandleCommonErrors(executor.Execute(ctx, cmd, handler, args))
}

// HandleCommonErrors converts errors into structured CLI errors. Printing is
// left to the entry point so every error is reported exactly once.
func HandleCommonErrors(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user")
	case errors.Is(err, context.DeadlineExceeded):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out")
	default:
		return helpers.Classify(err)
	}
}
