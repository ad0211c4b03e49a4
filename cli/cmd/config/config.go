package config

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli/cmd"
	"github.com/chesspuzzlekit/chesspuzzlekit/cli/helpers"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

// Pre-compiled regex for URL token redaction
var tokenRegex = regexp.MustCompile(`token=[^&\s]+`)

// NewConfigCommand creates the config command using the unified command pattern
func NewConfigCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Configuration management and diagnostics",
		Long:  `Inspect and validate the layered configuration (defaults, environment, YAML file, flags).`,
	}
	command.AddCommand(NewConfigShowCommand(), NewConfigValidateCommand())
	return command
}

// NewConfigShowCommand creates the config show subcommand
func NewConfigShowCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values",
		Long: `Display the effective configuration with secrets redacted.
With --sources every key is annotated with the layer that set it.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, handleConfigShow, args)
		},
	}
	command.Flags().Bool("sources", false, "Show which source set each value")
	return command
}

func handleConfigShow(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	logger.FromContext(ctx).Debug("executing config show command")
	showSources, err := c.Flags().GetBool("sources")
	if err != nil {
		return fmt.Errorf("failed to get sources flag: %w", err)
	}
	var sources map[string]config.SourceType
	if showSources {
		sources = collectSources(ctx, flattenConfig(e.Config()))
	}
	return e.Output().WriteData(newConfigView(e.Config(), sources))
}

// collectSources asks the loader which layer set each flattened key.
func collectSources(ctx context.Context, flat map[string]string) map[string]config.SourceType {
	service := config.ManagerFromContext(ctx).Service
	sources := make(map[string]config.SourceType, len(flat))
	for key := range flat {
		source := service.GetSource(key)
		if source == "" {
			source = config.SourceDefault
		}
		sources[key] = source
	}
	return sources
}

// configView is the config show payload: a flattened, redacted copy of the
// configuration and optionally the source of every key.
type configView struct {
	Config  map[string]string            `json:"config"            yaml:"config"`
	Sources map[string]config.SourceType `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func newConfigView(cfg *config.Config, sources map[string]config.SourceType) configView {
	return configView{Config: flattenConfig(cfg), Sources: sources}
}

func (v configView) Header() []string {
	if v.Sources != nil {
		return []string{"KEY", "VALUE", "SOURCE"}
	}
	return []string{"KEY", "VALUE"}
}

func (v configView) Rows() [][]string {
	keys := make([]string, 0, len(v.Config))
	for k := range v.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		row := []string{key, v.Config[key]}
		if v.Sources != nil {
			row = append(row, string(v.Sources[key]))
		}
		rows = append(rows, row)
	}
	return rows
}

// NewConfigValidateCommand creates the config validate subcommand
func NewConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, cmd.ExecutorOptions{}, handleConfigValidate, args)
		},
	}
}

type validationResult struct {
	Valid   bool   `json:"valid"   yaml:"valid"`
	Message string `json:"message" yaml:"message"`
}

func (r validationResult) String() string { return r.Message }

func handleConfigValidate(ctx context.Context, _ *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
	logger.FromContext(ctx).Debug("executing config validate command")
	service := config.ManagerFromContext(ctx).Service
	if err := service.Validate(e.Config()); err != nil {
		if e.Output().Format() == helpers.OutputFormatTable {
			return helpers.NewCliError("INVALID_CONFIG", fmt.Sprintf("configuration validation failed: %v", err))
		}
		return e.Output().WriteData(validationResult{Valid: false, Message: err.Error()})
	}
	return e.Output().WriteData(validationResult{Valid: true, Message: "Configuration is valid"})
}

// flattenConfig converts nested config to flat key-value map
func flattenConfig(cfg *config.Config) map[string]string {
	result := make(map[string]string)
	flattenDatabaseConfig(cfg, result)
	flattenDatasetConfig(cfg, result)
	flattenCacheConfig(cfg, result)
	flattenRedisConfig(cfg, result)
	flattenRuntimeConfig(cfg, result)
	flattenCLIConfig(cfg, result)
	return result
}

func flattenDatabaseConfig(cfg *config.Config, result map[string]string) {
	db := &cfg.Database
	result["database.driver"] = db.Driver
	result["database.path"] = db.Path
	result["database.read_only"] = strconv.FormatBool(db.ReadOnly)
	result["database.busy_timeout"] = db.BusyTimeout.String()
	result["database.auto_migrate"] = strconv.FormatBool(db.AutoMigrate)
	result["database.migration_timeout"] = db.MigrationTimeout.String()
	if db.ConnString != "" {
		result["database.conn_string"] = redactURL(db.ConnString.Value())
	}
	result["database.host"] = db.Host
	result["database.port"] = db.Port
	result["database.user"] = db.User
	result["database.password"] = redactSensitive(db.Password.Value())
	result["database.name"] = db.DBName
	result["database.ssl_mode"] = db.SSLMode
	result["database.max_open_conns"] = strconv.Itoa(db.MaxOpenConns)
	result["database.max_idle_conns"] = strconv.Itoa(db.MaxIdleConns)
	result["database.conn_max_lifetime"] = db.ConnMaxLifetime.String()
	result["database.conn_max_idle_time"] = db.ConnMaxIdleTime.String()
	result["database.ping_timeout"] = db.PingTimeout.String()
	result["database.health_check_timeout"] = db.HealthCheckTimeout.String()
	result["database.health_check_period"] = db.HealthCheckPeriod.String()
	result["database.connect_timeout"] = db.ConnectTimeout.String()
}

func flattenDatasetConfig(cfg *config.Config, result map[string]string) {
	ds := &cfg.Dataset
	result["dataset.dir"] = ds.Dir
	result["dataset.file_name"] = ds.FileName
	result["dataset.db_url"] = redactURL(ds.DBURL)
	result["dataset.csv_url"] = redactURL(ds.CSVURL)
	result["dataset.timeout"] = ds.Timeout.String()
	result["dataset.retries"] = strconv.Itoa(ds.Retries)
	result["dataset.retry_backoff"] = ds.RetryBackoff.String()
	result["dataset.batch_size"] = strconv.Itoa(ds.BatchSize)
}

func flattenCacheConfig(cfg *config.Config, result map[string]string) {
	result["cache.enabled"] = strconv.FormatBool(cfg.Cache.Enabled)
	result["cache.size"] = strconv.Itoa(cfg.Cache.Size)
	result["cache.ttl"] = cfg.Cache.TTL.String()
}

func flattenRedisConfig(cfg *config.Config, result map[string]string) {
	if cfg.Redis.URL != "" {
		result["redis.url"] = redactURL(cfg.Redis.URL)
	}
	result["redis.host"] = cfg.Redis.Host
	result["redis.port"] = cfg.Redis.Port
	if cfg.Redis.Password != "" {
		result["redis.password"] = redactSensitive(cfg.Redis.Password.Value())
	}
	result["redis.db"] = strconv.Itoa(cfg.Redis.DB)
	result["redis.pool_size"] = strconv.Itoa(cfg.Redis.PoolSize)
	result["redis.ping_timeout"] = cfg.Redis.PingTimeout.String()
	result["redis.key_prefix"] = cfg.Redis.KeyPrefix
}

func flattenRuntimeConfig(cfg *config.Config, result map[string]string) {
	result["runtime.log_level"] = cfg.Runtime.LogLevel
	result["runtime.log_json"] = strconv.FormatBool(cfg.Runtime.LogJSON)
	result["runtime.log_source"] = strconv.FormatBool(cfg.Runtime.LogSource)
}

func flattenCLIConfig(cfg *config.Config, result map[string]string) {
	result["cli.format"] = cfg.CLI.Format
	result["cli.config_file"] = cfg.CLI.ConfigFile
	result["cli.env_file"] = cfg.CLI.EnvFile
	result["cli.no_color"] = strconv.FormatBool(cfg.CLI.NoColor)
}

// redactURL redacts sensitive information from URLs (passwords, tokens, etc.)
func redactURL(urlStr string) string {
	if strings.Contains(urlStr, "://") && strings.Contains(urlStr, "@") {
		protocolEnd := strings.Index(urlStr, "://") + 3
		atIndex := strings.LastIndex(urlStr, "@")
		if atIndex > protocolEnd {
			return urlStr[:protocolEnd] + "[REDACTED]@" + urlStr[atIndex+1:]
		}
	}
	if strings.Contains(urlStr, "token=") {
		return tokenRegex.ReplaceAllString(urlStr, "token=[REDACTED]")
	}
	return urlStr
}

func redactSensitive(value string) string {
	if value == "" {
		return ""
	}
	return "[REDACTED]"
}
