package helpers

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config/definition"
)

// AddGlobalFlags binds every registry field that declares a CLI flag as a
// persistent flag on cmd, using the registry default.
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	for _, field := range definition.CreateRegistry().Fields() {
		if field.CLIFlag == "" || flags.Lookup(field.CLIFlag) != nil {
			continue
		}
		addFlag(flags, &field)
	}
}

func addFlag(flags *pflag.FlagSet, field *definition.FieldDef) {
	switch field.Type.Kind() {
	case reflect.Bool:
		v, _ := field.Default.(bool)
		flags.BoolP(field.CLIFlag, field.Shorthand, v, field.Help)
	case reflect.Int:
		v, _ := field.Default.(int)
		flags.IntP(field.CLIFlag, field.Shorthand, v, field.Help)
	case reflect.Int64:
		if field.Type == reflect.TypeOf(time.Duration(0)) {
			v, _ := field.Default.(time.Duration)
			flags.DurationP(field.CLIFlag, field.Shorthand, v, field.Help)
			return
		}
		v, _ := field.Default.(int64)
		flags.Int64P(field.CLIFlag, field.Shorthand, v, field.Help)
	default:
		v, _ := field.Default.(string)
		flags.StringP(field.CLIFlag, field.Shorthand, v, field.Help)
	}
}

// ExtractCLIFlags returns the registry flags the user set explicitly,
// keyed by flag name and typed like the flag.
func ExtractCLIFlags(cmd *cobra.Command) (map[string]any, error) {
	known := definition.CreateRegistry().GetCLIFlagMapping()
	out := make(map[string]any)
	var firstErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := known[f.Name]; !ok || firstErr != nil {
			return
		}
		v, err := flagValue(cmd.Flags(), f)
		if err != nil {
			firstErr = fmt.Errorf("failed to read flag %s: %w", f.Name, err)
			return
		}
		out[f.Name] = v
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func flagValue(flags *pflag.FlagSet, f *pflag.Flag) (any, error) {
	switch f.Value.Type() {
	case "bool":
		return flags.GetBool(f.Name)
	case "int":
		return flags.GetInt(f.Name)
	case "int64":
		return flags.GetInt64(f.Name)
	case "duration":
		return flags.GetDuration(f.Name)
	default:
		return f.Value.String(), nil
	}
}
