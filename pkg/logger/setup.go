package logger

import (
	"os"
)

// SetupLogger installs the process-wide logger for the CLI and returns it.
// Logs go to stderr.
func SetupLogger(logLevel string, logJSON, logSource bool) Logger {
	cfg := &Config{
		Level:      ParseLevel(logLevel),
		Output:     os.Stderr,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	}
	Init(cfg)
	return GetDefault()
}
