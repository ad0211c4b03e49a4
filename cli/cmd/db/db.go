// Package db implements the provisioning commands: download, import, migrate.
package db

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/engine/dataset"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/puzzlekit"
)

// Cmd returns the db command group.
func Cmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "db",
		Short: "Provision the puzzle database",
	}
	command.AddCommand(downloadCmd(), importCmd(), migrateCmd(), healthCmd())
	return command
}

type downloadView struct {
	URL      string `json:"url"      yaml:"url"`
	Path     string `json:"path"     yaml:"path"`
	Bytes    int64  `json:"bytes"    yaml:"bytes"`
	Skipped  bool   `json:"skipped"  yaml:"skipped"`
	Duration string `json:"duration" yaml:"duration"`
}

func (v downloadView) String() string {
	if v.Skipped {
		return fmt.Sprintf("%s already exists, use --force to download again", v.Path)
	}
	return fmt.Sprintf("Downloaded %s (%d bytes) to %s in %s", v.URL, v.Bytes, v.Path, v.Duration)
}

func newDownloadView(rawURL string, res *dataset.Result) downloadView {
	return downloadView{
		URL:      rawURL,
		Path:     res.Path,
		Bytes:    res.Bytes,
		Skipped:  res.Skipped,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
}

func downloadCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "download",
		Short: "Download the prebuilt puzzle database",
		Long: `Download the prebuilt SQLite database into the dataset directory.
With --csv the raw Lichess dump is fetched instead, ready for "db import".`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, runDownload, args)
		},
	}
	command.Flags().Bool("force", false, "Download even when the file already exists")
	command.Flags().Bool("csv", false, "Fetch the Lichess CSV dump instead of the database")
	return command
}

func runDownload(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	force, err := c.Flags().GetBool("force")
	if err != nil {
		return err
	}
	csv, err := c.Flags().GetBool("csv")
	if err != nil {
		return err
	}
	cfg := e.Config()
	if !csv {
		res, err := puzzlekit.NewRegistry(cfg).Download(ctx, force)
		if err != nil {
			return err
		}
		return e.Output().WriteData(newDownloadView(cfg.Dataset.DBURL, res))
	}
	res, err := downloadDump(ctx, cfg, force)
	if err != nil {
		return err
	}
	return e.Output().WriteData(newDownloadView(cfg.Dataset.CSVURL, res))
}

// dumpPath is where the Lichess dump lands inside the dataset directory.
func dumpPath(cfg *config.Config) (string, error) {
	dir, err := cfg.DatasetDir()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(cfg.Dataset.CSVURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset.csv_url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "lichess_db_puzzle.csv.zst"
	}
	return filepath.Join(dir, name), nil
}

func downloadDump(ctx context.Context, cfg *config.Config, force bool) (*dataset.Result, error) {
	dest, err := dumpPath(cfg)
	if err != nil {
		return nil, err
	}
	return dataset.DownloaderFromConfig(&cfg.Dataset).Download(ctx, cfg.Dataset.CSVURL, dest, force)
}

type importView struct {
	Source   string `json:"source"   yaml:"source"`
	Target   string `json:"target"   yaml:"target"`
	Read     int    `json:"read"     yaml:"read"`
	Written  int    `json:"written"  yaml:"written"`
	Skipped  int    `json:"skipped"  yaml:"skipped"`
	Duration string `json:"duration" yaml:"duration"`
}

func (v importView) Header() []string {
	return []string{"SOURCE", "TARGET", "READ", "WRITTEN", "SKIPPED", "DURATION"}
}

func (v importView) Rows() [][]string {
	return [][]string{{
		v.Source,
		v.Target,
		strconv.Itoa(v.Read),
		strconv.Itoa(v.Written),
		strconv.Itoa(v.Skipped),
		v.Duration,
	}}
}

func importCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "import [file]",
		Short: "Load a Lichess puzzle CSV into the database",
		Long: `Stream a Lichess puzzle dump (plain CSV or .zst) into the configured database,
creating the schema when needed. Without a file the dump is downloaded first.`,
		Example: `  puzzlekit db import lichess_db_puzzle.csv.zst --db-path ./puzzles.db --validate`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			opts := cmd.ExecutorOptions{RequireDB: true, Writable: true, Migrate: true}
			return cmd.ExecuteCommand(c, opts, runImport, args)
		},
	}
	command.Flags().Bool("validate", false, "Skip puzzles whose FEN or moves do not replay")
	return command
}

func runImport(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	log := logger.FromContext(ctx)
	validate, err := c.Flags().GetBool("validate")
	if err != nil {
		return err
	}
	cfg := e.Config()
	var source string
	if len(args) == 1 {
		source = args[0]
	} else {
		res, err := downloadDump(ctx, cfg, false)
		if err != nil {
			return err
		}
		source = res.Path
	}
	reader, err := dataset.OpenFile(source)
	if err != nil {
		return err
	}
	defer reader.Close()

	start := time.Now()
	importer := dataset.NewImporter(e.Provider().Writer(),
		dataset.WithBatchSize(cfg.Dataset.BatchSize),
		dataset.WithValidation(validate),
		dataset.WithProgress(func(s dataset.Stats) {
			log.Debug("Import progress", "written", s.Written)
		}),
	)
	stats, err := importer.Import(ctx, reader)
	if err != nil {
		return err
	}
	return e.Output().WriteData(importView{
		Source:   source,
		Target:   e.Provider().Target(),
		Read:     stats.Read,
		Written:  stats.Written,
		Skipped:  stats.Skipped,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})
}

type statusView struct {
	Driver string `json:"driver" yaml:"driver"`
	Target string `json:"target" yaml:"target"`
	Status string `json:"status" yaml:"status"`
}

func (v statusView) String() string {
	return fmt.Sprintf("%s %s: %s", v.Driver, v.Target, v.Status)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the puzzles schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts := cmd.ExecutorOptions{RequireDB: true, Writable: true}
			return cmd.ExecuteCommand(c, opts, runMigrate, args)
		},
	}
}

func runMigrate(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	p := e.Provider()
	if err := p.Migrate(ctx, e.Config().Database.MigrationTimeout); err != nil {
		return err
	}
	return e.Output().WriteData(statusView{Driver: p.Driver(), Target: p.Target(), Status: "migrated"})
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database and cache connections",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{RequireDB: true}, runHealth, args)
		},
	}
}

func runHealth(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	p := e.Provider()
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}
	return e.Output().WriteData(statusView{Driver: p.Driver(), Target: p.Target(), Status: "ok"})
}
