package definition

import (
	"reflect"
	"time"
)

var (
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	boolType     = reflect.TypeOf(true)
	durationType = reflect.TypeOf(time.Duration(0))
)

// CreateRegistry creates and populates the configuration registry.
// Every default used by Default() and every bindable CLI flag lives here.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	registerDatabaseFields(registry)
	registerDatasetFields(registry)
	registerCacheFields(registry)
	registerRedisFields(registry)
	registerRuntimeFields(registry)
	registerCLIFields(registry)
	return registry
}

func registerDatabaseFields(registry *Registry) {
	registerDatabaseCoreFields(registry)
	registerDatabaseConnectionFields(registry)
	registerDatabasePoolFields(registry)
}

func registerDatabaseCoreFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "database.driver",
		Default: "sqlite",
		CLIFlag: "db-driver",
		EnvVar:  "PUZZLEKIT_DB_DRIVER",
		Type:    stringType,
		Help:    "Database driver: sqlite or postgres",
	})
	registry.Register(&FieldDef{
		Path:    "database.path",
		Default: "",
		CLIFlag: "db-path",
		EnvVar:  "PUZZLEKIT_DB_PATH",
		Type:    stringType,
		Help:    "SQLite database file (defaults to <dataset.dir>/<dataset.file_name>)",
	})
	registry.Register(&FieldDef{
		Path:    "database.read_only",
		Default: true,
		CLIFlag: "db-read-only",
		EnvVar:  "PUZZLEKIT_DB_READ_ONLY",
		Type:    boolType,
		Help:    "Open the SQLite database read-only",
	})
	registry.Register(&FieldDef{
		Path:    "database.busy_timeout",
		Default: 5 * time.Second,
		CLIFlag: "db-busy-timeout",
		EnvVar:  "PUZZLEKIT_DB_BUSY_TIMEOUT",
		Type:    durationType,
		Help:    "SQLite busy timeout",
	})
	registry.Register(&FieldDef{
		Path:    "database.auto_migrate",
		Default: false,
		CLIFlag: "db-auto-migrate",
		EnvVar:  "PUZZLEKIT_DB_AUTO_MIGRATE",
		Type:    boolType,
		Help:    "Apply schema migrations when the database is opened",
	})
	registry.Register(&FieldDef{
		Path:    "database.migration_timeout",
		Default: 2 * time.Minute,
		CLIFlag: "db-migration-timeout",
		EnvVar:  "PUZZLEKIT_DB_MIGRATION_TIMEOUT",
		Type:    durationType,
		Help:    "Maximum duration allowed for schema migrations",
	})
}

func registerDatabaseConnectionFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "database.conn_string",
		Default: "",
		CLIFlag: "db-conn-string",
		EnvVar:  "PUZZLEKIT_DB_CONN_STRING",
		Type:    stringType,
		Help:    "PostgreSQL connection string",
	})
	registry.Register(&FieldDef{
		Path:    "database.host",
		Default: "localhost",
		CLIFlag: "db-host",
		EnvVar:  "PUZZLEKIT_DB_HOST",
		Type:    stringType,
		Help:    "PostgreSQL host",
	})
	registry.Register(&FieldDef{
		Path:    "database.port",
		Default: "5432",
		CLIFlag: "db-port",
		EnvVar:  "PUZZLEKIT_DB_PORT",
		Type:    stringType,
		Help:    "PostgreSQL port",
	})
	registry.Register(&FieldDef{
		Path:    "database.user",
		Default: "postgres",
		CLIFlag: "db-user",
		EnvVar:  "PUZZLEKIT_DB_USER",
		Type:    stringType,
		Help:    "PostgreSQL user",
	})
	registry.Register(&FieldDef{
		Path:    "database.password",
		Default: "",
		CLIFlag: "db-password",
		EnvVar:  "PUZZLEKIT_DB_PASSWORD",
		Type:    stringType,
		Help:    "PostgreSQL password",
	})
	registry.Register(&FieldDef{
		Path:    "database.name",
		Default: "puzzles",
		CLIFlag: "db-name",
		EnvVar:  "PUZZLEKIT_DB_NAME",
		Type:    stringType,
		Help:    "PostgreSQL database name",
	})
	registry.Register(&FieldDef{
		Path:    "database.ssl_mode",
		Default: "disable",
		CLIFlag: "db-ssl-mode",
		EnvVar:  "PUZZLEKIT_DB_SSL_MODE",
		Type:    stringType,
		Help:    "PostgreSQL SSL mode",
	})
}

func registerDatabasePoolFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "database.max_open_conns",
		Default: 10,
		EnvVar:  "PUZZLEKIT_DB_MAX_OPEN_CONNS",
		Type:    intType,
		Help:    "Maximum open connections in the pool",
	})
	registry.Register(&FieldDef{
		Path:    "database.max_idle_conns",
		Default: 2,
		EnvVar:  "PUZZLEKIT_DB_MAX_IDLE_CONNS",
		Type:    intType,
		Help:    "Minimum idle connections kept by the pool",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_lifetime",
		Default: 30 * time.Minute,
		EnvVar:  "PUZZLEKIT_DB_CONN_MAX_LIFETIME",
		Type:    durationType,
		Help:    "Maximum lifetime of a pooled connection",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_idle_time",
		Default: 5 * time.Minute,
		EnvVar:  "PUZZLEKIT_DB_CONN_MAX_IDLE_TIME",
		Type:    durationType,
		Help:    "Maximum idle time of a pooled connection",
	})
	registry.Register(&FieldDef{
		Path:    "database.ping_timeout",
		Default: 5 * time.Second,
		EnvVar:  "PUZZLEKIT_DB_PING_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for the initial connection ping",
	})
	registry.Register(&FieldDef{
		Path:    "database.health_check_timeout",
		Default: 2 * time.Second,
		EnvVar:  "PUZZLEKIT_DB_HEALTH_CHECK_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for health check pings",
	})
	registry.Register(&FieldDef{
		Path:    "database.health_check_period",
		Default: 30 * time.Second,
		EnvVar:  "PUZZLEKIT_DB_HEALTH_CHECK_PERIOD",
		Type:    durationType,
		Help:    "Interval between pool health checks",
	})
	registry.Register(&FieldDef{
		Path:    "database.connect_timeout",
		Default: 5 * time.Second,
		EnvVar:  "PUZZLEKIT_DB_CONNECT_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for establishing a connection",
	})
}

func registerDatasetFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "dataset.dir",
		Default: "~/.chess_puzzles",
		CLIFlag: "dataset-dir",
		EnvVar:  "PUZZLEKIT_DATASET_DIR",
		Type:    stringType,
		Help:    "Directory holding downloaded puzzle databases",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.file_name",
		Default: "lichess_db_puzzle.db",
		EnvVar:  "PUZZLEKIT_DATASET_FILE_NAME",
		Type:    stringType,
		Help:    "File name of the prebuilt database inside dataset.dir",
	})
	registry.Register(&FieldDef{
		Path: "dataset.db_url",
		Default: "https://github.com/JackScallan02/chess-puzzle-kit/releases/download/" +
			"v0.1.0/lichess_db_puzzle.db",
		CLIFlag: "db-url",
		EnvVar:  "PUZZLEKIT_DATASET_DB_URL",
		Type:    stringType,
		Help:    "Download URL of the prebuilt SQLite database",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.csv_url",
		Default: "https://database.lichess.org/lichess_db_puzzle.csv.zst",
		CLIFlag: "csv-url",
		EnvVar:  "PUZZLEKIT_DATASET_CSV_URL",
		Type:    stringType,
		Help:    "Download URL of the Lichess puzzle dump",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.timeout",
		Default: 30 * time.Minute,
		CLIFlag: "download-timeout",
		EnvVar:  "PUZZLEKIT_DATASET_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for a single download attempt",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.retries",
		Default: 3,
		CLIFlag: "download-retries",
		EnvVar:  "PUZZLEKIT_DATASET_RETRIES",
		Type:    intType,
		Help:    "Retries for a failed download",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.retry_backoff",
		Default: time.Second,
		EnvVar:  "PUZZLEKIT_DATASET_RETRY_BACKOFF",
		Type:    durationType,
		Help:    "Initial backoff between download retries",
	})
	registry.Register(&FieldDef{
		Path:    "dataset.batch_size",
		Default: 1000,
		CLIFlag: "batch-size",
		EnvVar:  "PUZZLEKIT_DATASET_BATCH_SIZE",
		Type:    intType,
		Help:    "Puzzles written per transaction during import",
	})
}

func registerCacheFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "cache.enabled",
		Default: true,
		CLIFlag: "cache",
		EnvVar:  "PUZZLEKIT_CACHE_ENABLED",
		Type:    boolType,
		Help:    "Cache puzzle lookups and database metadata",
	})
	registry.Register(&FieldDef{
		Path:    "cache.size",
		Default: 1024,
		EnvVar:  "PUZZLEKIT_CACHE_SIZE",
		Type:    intType,
		Help:    "Puzzles kept in the by-ID cache",
	})
	registry.Register(&FieldDef{
		Path:    "cache.ttl",
		Default: 10 * time.Minute,
		EnvVar:  "PUZZLEKIT_CACHE_TTL",
		Type:    durationType,
		Help:    "Lifetime of cached metadata",
	})
}

func registerRedisFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "redis.url",
		Default: "",
		CLIFlag: "redis-url",
		EnvVar:  "PUZZLEKIT_REDIS_URL",
		Type:    stringType,
		Help:    "Redis URL for the shared cache tier (disabled when empty)",
	})
	registry.Register(&FieldDef{
		Path:    "redis.host",
		Default: "",
		EnvVar:  "PUZZLEKIT_REDIS_HOST",
		Type:    stringType,
		Help:    "Redis host, used when redis.url is empty",
	})
	registry.Register(&FieldDef{
		Path:    "redis.port",
		Default: "6379",
		EnvVar:  "PUZZLEKIT_REDIS_PORT",
		Type:    stringType,
		Help:    "Redis port",
	})
	registry.Register(&FieldDef{
		Path:    "redis.password",
		Default: "",
		EnvVar:  "PUZZLEKIT_REDIS_PASSWORD",
		Type:    stringType,
		Help:    "Redis password",
	})
	registry.Register(&FieldDef{
		Path:    "redis.db",
		Default: 0,
		EnvVar:  "PUZZLEKIT_REDIS_DB",
		Type:    intType,
		Help:    "Redis database number",
	})
	registry.Register(&FieldDef{
		Path:    "redis.pool_size",
		Default: 10,
		EnvVar:  "PUZZLEKIT_REDIS_POOL_SIZE",
		Type:    intType,
		Help:    "Redis connection pool size",
	})
	registry.Register(&FieldDef{
		Path:    "redis.ping_timeout",
		Default: 3 * time.Second,
		EnvVar:  "PUZZLEKIT_REDIS_PING_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for the initial Redis ping",
	})
	registry.Register(&FieldDef{
		Path:    "redis.key_prefix",
		Default: "puzzlekit:",
		EnvVar:  "PUZZLEKIT_REDIS_KEY_PREFIX",
		Type:    stringType,
		Help:    "Prefix applied to every shared cache key",
	})
}

func registerRuntimeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "runtime.log_level",
		Default: "info",
		CLIFlag: "log-level",
		EnvVar:  "PUZZLEKIT_LOG_LEVEL",
		Type:    stringType,
		Help:    "Log level: debug, info, warn, error or disabled",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_json",
		Default: false,
		CLIFlag: "log-json",
		EnvVar:  "PUZZLEKIT_LOG_JSON",
		Type:    boolType,
		Help:    "Emit logs as JSON",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_source",
		Default: false,
		CLIFlag: "log-source",
		EnvVar:  "PUZZLEKIT_LOG_SOURCE",
		Type:    boolType,
		Help:    "Include source location in logs",
	})
}

func registerCLIFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:      "cli.format",
		Default:   "table",
		CLIFlag:   "format",
		Shorthand: "f",
		EnvVar:    "PUZZLEKIT_FORMAT",
		Type:      stringType,
		Help:      "Output format: table, json or yaml",
	})
	registry.Register(&FieldDef{
		Path:    "cli.config_file",
		Default: "puzzlekit.yaml",
		CLIFlag: "config",
		EnvVar:  "PUZZLEKIT_CONFIG_FILE",
		Type:    stringType,
		Help:    "Path to the YAML configuration file",
	})
	registry.Register(&FieldDef{
		Path:    "cli.env_file",
		Default: ".env",
		CLIFlag: "env-file",
		EnvVar:  "PUZZLEKIT_ENV_FILE",
		Type:    stringType,
		Help:    "Path to the environment variables file",
	})
	registry.Register(&FieldDef{
		Path:    "cli.no_color",
		Default: false,
		CLIFlag: "no-color",
		EnvVar:  "PUZZLEKIT_NO_COLOR",
		Type:    boolType,
		Help:    "Disable colored output",
	})
}
