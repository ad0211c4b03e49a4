package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config/definition"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete configuration of the puzzle toolkit.
type Config struct {
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Dataset  DatasetConfig  `koanf:"dataset"  validate:"required"`
	Cache    CacheConfig    `koanf:"cache"`
	Redis    RedisConfig    `koanf:"redis"`
	Runtime  RuntimeConfig  `koanf:"runtime"`
	CLI      CLIConfig      `koanf:"cli"`
}

// DatabaseConfig selects the puzzle store and how to reach it.
// Path applies to sqlite; the connection fields apply to postgres.
type DatabaseConfig struct {
	Driver           string        `koanf:"driver"            env:"PUZZLEKIT_DB_DRIVER"            validate:"oneof=sqlite postgres"`
	Path             string        `koanf:"path"              env:"PUZZLEKIT_DB_PATH"`
	ReadOnly         bool          `koanf:"read_only"         env:"PUZZLEKIT_DB_READ_ONLY"`
	BusyTimeout      time.Duration `koanf:"busy_timeout"      env:"PUZZLEKIT_DB_BUSY_TIMEOUT"      validate:"min=0"`
	AutoMigrate      bool          `koanf:"auto_migrate"      env:"PUZZLEKIT_DB_AUTO_MIGRATE"`
	MigrationTimeout time.Duration `koanf:"migration_timeout" env:"PUZZLEKIT_DB_MIGRATION_TIMEOUT" validate:"min=0"`

	ConnString SensitiveString `koanf:"conn_string" env:"PUZZLEKIT_DB_CONN_STRING" sensitive:"true"`
	Host       string          `koanf:"host"        env:"PUZZLEKIT_DB_HOST"`
	Port       string          `koanf:"port"        env:"PUZZLEKIT_DB_PORT"`
	User       string          `koanf:"user"        env:"PUZZLEKIT_DB_USER"`
	Password   SensitiveString `koanf:"password"    env:"PUZZLEKIT_DB_PASSWORD"    sensitive:"true"`
	DBName     string          `koanf:"name"        env:"PUZZLEKIT_DB_NAME"`
	SSLMode    string          `koanf:"ssl_mode"    env:"PUZZLEKIT_DB_SSL_MODE"`

	MaxOpenConns       int           `koanf:"max_open_conns"       env:"PUZZLEKIT_DB_MAX_OPEN_CONNS"       validate:"min=0"`
	MaxIdleConns       int           `koanf:"max_idle_conns"       env:"PUZZLEKIT_DB_MAX_IDLE_CONNS"       validate:"min=0"`
	ConnMaxLifetime    time.Duration `koanf:"conn_max_lifetime"    env:"PUZZLEKIT_DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime    time.Duration `koanf:"conn_max_idle_time"   env:"PUZZLEKIT_DB_CONN_MAX_IDLE_TIME"`
	PingTimeout        time.Duration `koanf:"ping_timeout"         env:"PUZZLEKIT_DB_PING_TIMEOUT"`
	HealthCheckTimeout time.Duration `koanf:"health_check_timeout" env:"PUZZLEKIT_DB_HEALTH_CHECK_TIMEOUT"`
	HealthCheckPeriod  time.Duration `koanf:"health_check_period"  env:"PUZZLEKIT_DB_HEALTH_CHECK_PERIOD"`
	ConnectTimeout     time.Duration `koanf:"connect_timeout"      env:"PUZZLEKIT_DB_CONNECT_TIMEOUT"`
}

// DatasetConfig locates the published database and the raw Lichess dump.
type DatasetConfig struct {
	Dir          string        `koanf:"dir"           env:"PUZZLEKIT_DATASET_DIR"           validate:"required"`
	FileName     string        `koanf:"file_name"     env:"PUZZLEKIT_DATASET_FILE_NAME"     validate:"required"`
	DBURL        string        `koanf:"db_url"        env:"PUZZLEKIT_DATASET_DB_URL"        validate:"http_url"`
	CSVURL       string        `koanf:"csv_url"       env:"PUZZLEKIT_DATASET_CSV_URL"       validate:"http_url"`
	Timeout      time.Duration `koanf:"timeout"       env:"PUZZLEKIT_DATASET_TIMEOUT"       validate:"min=0"`
	Retries      int           `koanf:"retries"       env:"PUZZLEKIT_DATASET_RETRIES"       validate:"min=0,max=20"`
	RetryBackoff time.Duration `koanf:"retry_backoff" env:"PUZZLEKIT_DATASET_RETRY_BACKOFF" validate:"min=0"`
	BatchSize    int           `koanf:"batch_size"    env:"PUZZLEKIT_DATASET_BATCH_SIZE"    validate:"min=1"`
}

// CacheConfig controls the in-process read cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled" env:"PUZZLEKIT_CACHE_ENABLED"`
	Size    int           `koanf:"size"    env:"PUZZLEKIT_CACHE_SIZE"    validate:"min=1"`
	TTL     time.Duration `koanf:"ttl"     env:"PUZZLEKIT_CACHE_TTL"     validate:"min=0"`
}

// RedisConfig configures the optional shared cache tier.
type RedisConfig struct {
	URL         string          `koanf:"url"          env:"PUZZLEKIT_REDIS_URL"`
	Host        string          `koanf:"host"         env:"PUZZLEKIT_REDIS_HOST"`
	Port        string          `koanf:"port"         env:"PUZZLEKIT_REDIS_PORT"`
	Password    SensitiveString `koanf:"password"     env:"PUZZLEKIT_REDIS_PASSWORD"     sensitive:"true"`
	DB          int             `koanf:"db"           env:"PUZZLEKIT_REDIS_DB"           validate:"min=0"`
	PoolSize    int             `koanf:"pool_size"    env:"PUZZLEKIT_REDIS_POOL_SIZE"    validate:"min=0"`
	PingTimeout time.Duration   `koanf:"ping_timeout" env:"PUZZLEKIT_REDIS_PING_TIMEOUT"`
	KeyPrefix   string          `koanf:"key_prefix"   env:"PUZZLEKIT_REDIS_KEY_PREFIX"`
}

// Enabled reports whether a shared tier endpoint is configured.
func (c *RedisConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  env:"PUZZLEKIT_LOG_LEVEL"  validate:"log_level"`
	LogJSON   bool   `koanf:"log_json"   env:"PUZZLEKIT_LOG_JSON"`
	LogSource bool   `koanf:"log_source" env:"PUZZLEKIT_LOG_SOURCE"`
}

// CLIConfig holds settings only the command line tool reads.
type CLIConfig struct {
	Format     string `koanf:"format"      env:"PUZZLEKIT_FORMAT"      validate:"oneof=table json yaml"`
	ConfigFile string `koanf:"config_file" env:"PUZZLEKIT_CONFIG_FILE"`
	EnvFile    string `koanf:"env_file"    env:"PUZZLEKIT_ENV_FILE"`
	NoColor    bool   `koanf:"no_color"    env:"PUZZLEKIT_NO_COLOR"`
}

// SensitiveString hides its value when printed or serialized.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the unredacted value.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SensitiveString(v)
	return nil
}

func (s SensitiveString) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Service loads and validates configuration while tracking where each key came from.
type Service interface {
	// Load loads configuration from the sources; later sources win.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource returns which source (default, yaml, env, cli) set key.
	GetSource(key string) SourceType
}

// Source provides one layer of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
	Close() error
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads defaults and environment overrides with a fresh service.
func Load() (*Config, error) {
	return NewService().Load(context.Background(), NewDefaultProvider(), NewEnvProvider())
}

// Default returns the configuration built from the definition registry.
func Default() *Config {
	registry := definition.CreateRegistry()
	return &Config{
		Database: buildDatabaseConfig(registry),
		Dataset:  buildDatasetConfig(registry),
		Cache:    buildCacheConfig(registry),
		Redis:    buildRedisConfig(registry),
		Runtime:  buildRuntimeConfig(registry),
		CLI:      buildCLIConfig(registry),
	}
}

// DatasetDir returns Dataset.Dir with a leading "~" expanded.
func (c *Config) DatasetDir() (string, error) {
	return ExpandHome(c.Dataset.Dir)
}

// DatabasePath returns the SQLite file to open: Database.Path when set,
// otherwise the prebuilt database inside the dataset directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		if c.Database.Path == ":memory:" {
			return c.Database.Path, nil
		}
		return ExpandHome(c.Database.Path)
	}
	dir, err := c.DatasetDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Dataset.FileName), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func getString(registry *definition.Registry, path string) string {
	if s, ok := registry.GetDefault(path).(string); ok {
		return s
	}
	return ""
}

func getInt(registry *definition.Registry, path string) int {
	if i, ok := registry.GetDefault(path).(int); ok {
		return i
	}
	return 0
}

func getBool(registry *definition.Registry, path string) bool {
	if b, ok := registry.GetDefault(path).(bool); ok {
		return b
	}
	return false
}

func getDuration(registry *definition.Registry, path string) time.Duration {
	if d, ok := registry.GetDefault(path).(time.Duration); ok {
		return d
	}
	return 0
}

func buildDatabaseConfig(registry *definition.Registry) DatabaseConfig {
	return DatabaseConfig{
		Driver:             getString(registry, "database.driver"),
		Path:               getString(registry, "database.path"),
		ReadOnly:           getBool(registry, "database.read_only"),
		BusyTimeout:        getDuration(registry, "database.busy_timeout"),
		AutoMigrate:        getBool(registry, "database.auto_migrate"),
		MigrationTimeout:   getDuration(registry, "database.migration_timeout"),
		ConnString:         SensitiveString(getString(registry, "database.conn_string")),
		Host:               getString(registry, "database.host"),
		Port:               getString(registry, "database.port"),
		User:               getString(registry, "database.user"),
		Password:           SensitiveString(getString(registry, "database.password")),
		DBName:             getString(registry, "database.name"),
		SSLMode:            getString(registry, "database.ssl_mode"),
		MaxOpenConns:       getInt(registry, "database.max_open_conns"),
		MaxIdleConns:       getInt(registry, "database.max_idle_conns"),
		ConnMaxLifetime:    getDuration(registry, "database.conn_max_lifetime"),
		ConnMaxIdleTime:    getDuration(registry, "database.conn_max_idle_time"),
		PingTimeout:        getDuration(registry, "database.ping_timeout"),
		HealthCheckTimeout: getDuration(registry, "database.health_check_timeout"),
		HealthCheckPeriod:  getDuration(registry, "database.health_check_period"),
		ConnectTimeout:     getDuration(registry, "database.connect_timeout"),
	}
}

func buildDatasetConfig(registry *definition.Registry) DatasetConfig {
	return DatasetConfig{
		Dir:          getString(registry, "dataset.dir"),
		FileName:     getString(registry, "dataset.file_name"),
		DBURL:        getString(registry, "dataset.db_url"),
		CSVURL:       getString(registry, "dataset.csv_url"),
		Timeout:      getDuration(registry, "dataset.timeout"),
		Retries:      getInt(registry, "dataset.retries"),
		RetryBackoff: getDuration(registry, "dataset.retry_backoff"),
		BatchSize:    getInt(registry, "dataset.batch_size"),
	}
}

func buildCacheConfig(registry *definition.Registry) CacheConfig {
	return CacheConfig{
		Enabled: getBool(registry, "cache.enabled"),
		Size:    getInt(registry, "cache.size"),
		TTL:     getDuration(registry, "cache.ttl"),
	}
}

func buildRedisConfig(registry *definition.Registry) RedisConfig {
	return RedisConfig{
		URL:         getString(registry, "redis.url"),
		Host:        getString(registry, "redis.host"),
		Port:        getString(registry, "redis.port"),
		Password:    SensitiveString(getString(registry, "redis.password")),
		DB:          getInt(registry, "redis.db"),
		PoolSize:    getInt(registry, "redis.pool_size"),
		PingTimeout: getDuration(registry, "redis.ping_timeout"),
		KeyPrefix:   getString(registry, "redis.key_prefix"),
	}
}

func buildRuntimeConfig(registry *definition.Registry) RuntimeConfig {
	return RuntimeConfig{
		LogLevel:  getString(registry, "runtime.log_level"),
		LogJSON:   getBool(registry, "runtime.log_json"),
		LogSource: getBool(registry, "runtime.log_source"),
	}
}

func buildCLIConfig(registry *definition.Registry) CLIConfig {
	return CLIConfig{
		Format:     getString(registry, "cli.format"),
		ConfigFile: getString(registry, "cli.config_file"),
		EnvFile:    getString(registry, "cli.env_file"),
		NoColor:    getBool(registry, "cli.no_color"),
	}
}
