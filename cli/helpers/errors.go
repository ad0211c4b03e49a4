package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
)

// CliError represents a CLI-specific error with a short code and an
// optional hint on how to fix it.
type CliError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Hint    string `json:"hint,omitempty"`
	cause   error
}

func (e *CliError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CliError) Unwrap() error { return e.cause }

// NewCliError creates a new CLI error
func NewCliError(code, message string, hint ...string) *CliError {
	err := &CliError{Code: code, Message: message}
	if len(hint) > 0 {
		err.Hint = hint[0]
	}
	return err
}

var errorCodes = []struct {
	target error
	code   string
	hint   string
}{
	{puzzle.ErrDatabaseNotFound, "DATABASE_NOT_FOUND", "run `puzzlekit db download` or pass --db-path"},
	{puzzle.ErrEmptyDatabase, "DATABASE_EMPTY", "load puzzles with `puzzlekit db import`"},
	{puzzle.ErrNotFound, "NOT_FOUND", ""},
	{puzzle.ErrInvalidID, "INVALID_ARGUMENT", ""},
	{puzzle.ErrInvalidCount, "INVALID_ARGUMENT", ""},
	{puzzle.ErrInvalidRange, "INVALID_ARGUMENT", ""},
	{puzzle.ErrInvalidTheme, "INVALID_ARGUMENT", ""},
	{puzzle.ErrNotReadOnly, "INVALID_QUERY", "only SELECT and WITH statements are allowed"},
	{puzzle.ErrInvalidPuzzle, "INVALID_PUZZLE", ""},
}

// Classify turns any error into a CliError, keeping one that already is.
func Classify(err error) *CliError {
	if err == nil {
		return nil
	}
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.target) {
			return &CliError{Code: c.code, Message: err.Error(), Hint: c.hint, cause: err}
		}
	}
	return &CliError{Code: "ERROR", Message: err.Error(), cause: err}
}

// FormatError renders err for the given output format.
func FormatError(err error, format OutputFormat, color bool) string {
	if err == nil {
		return ""
	}
	cliErr := Classify(err)
	if format == OutputFormatJSON {
		data, mErr := json.MarshalIndent(cliErr, "", "  ")
		if mErr != nil {
			return `{"code": "ERROR", "error": "failed to encode error"}`
		}
		return string(data)
	}
	message := "Error: " + cliErr.Message
	hint := ""
	if cliErr.Hint != "" {
		hint = "Hint: " + cliErr.Hint
	}
	if color {
		message = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true).Render(message)
		if hint != "" {
			hint = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true).Render(hint)
		}
	}
	if hint != "" {
		return message + "\n" + hint
	}
	return message
}

// OutputError writes err to w in the appropriate format
func OutputError(w io.Writer, err error, format OutputFormat, color bool) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, FormatError(err, format, color))
}
