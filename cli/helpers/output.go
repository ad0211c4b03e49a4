package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Tabular is implemented by values that know how to lay themselves out as
// rows for table output.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// OutputWriter handles different output formats
type OutputWriter struct {
	writer io.Writer
	format OutputFormat
	color  bool
}

func NewOutputWriter(writer io.Writer, format OutputFormat, color bool) *OutputWriter {
	return &OutputWriter{writer: writer, format: format, color: color}
}

func (ow *OutputWriter) Format() OutputFormat { return ow.format }

func (ow *OutputWriter) Writer() io.Writer { return ow.writer }

// Color reports whether styled output is enabled.
func (ow *OutputWriter) Color() bool { return ow.color }

// WriteData writes data in the configured format. Table output needs a
// Tabular value, a string slice or a fmt.Stringer.
func (ow *OutputWriter) WriteData(data any) error {
	switch ow.format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(ow.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(ow.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	case OutputFormatTable:
		return ow.writeTable(data)
	default:
		return fmt.Errorf("unsupported output format: %s", ow.format)
	}
}

func (ow *OutputWriter) writeTable(data any) error {
	switch v := data.(type) {
	case Tabular:
		return ow.WriteTable(v.Header(), v.Rows())
	case []string:
		for _, s := range v {
			if _, err := fmt.Fprintln(ow.writer, s); err != nil {
				return err
			}
		}
		return nil
	case fmt.Stringer:
		_, err := fmt.Fprintln(ow.writer, v.String())
		return err
	default:
		return fmt.Errorf("table output not supported for %T", data)
	}
}

// WriteTable aligns rows under a header using tabwriter.
func (ow *OutputWriter) WriteTable(header []string, rows [][]string) error {
	w := tabwriter.NewWriter(ow.writer, 0, 0, 2, ' ', 0)
	if len(header) > 0 {
		rules := make([]string, len(header))
		for i, h := range header {
			rules[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(w, strings.Join(header, "\t"))
		fmt.Fprintln(w, strings.Join(rules, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// Println writes a plain line, used for table-mode messages.
func (ow *OutputWriter) Println(a ...any) {
	fmt.Fprintln(ow.writer, a...)
}

// Highlight renders s bold when color is enabled.
func (ow *OutputWriter) Highlight(s string) string {
	if !ow.color {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FB3D5")).Render(s)
}
