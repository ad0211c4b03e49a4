package helpers

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
)

var ciVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"BUILDKITE",
	"JENKINS_URL",
	"TF_BUILD",
}

func isRunningInCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShouldUseColor reports whether styled output should be written to w.
func ShouldUseColor(cfg *config.Config, w io.Writer) bool {
	if cfg != nil && cfg.CLI.NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || isRunningInCI() {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "" {
		return false
	}
	return isTerminal(w)
}

// DetectFormat returns the configured output format, falling back to table.
func DetectFormat(cfg *config.Config) OutputFormat {
	if cfg == nil {
		return OutputFormatTable
	}
	format, err := ParseOutputFormat(cfg.CLI.Format)
	if err != nil {
		return OutputFormatTable
	}
	return format
}
