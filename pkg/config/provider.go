package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config/definition"
)

// envProvider marks the environment layer; the loader reads the
// environment itself through koanf's env provider.
type envProvider struct{}

func NewEnvProvider() Source { return envProvider{} }

func (envProvider) Load() (map[string]any, error) { return map[string]any{}, nil }
func (envProvider) Type() SourceType               { return SourceEnv }
func (envProvider) Close() error                   { return nil }

// defaultProvider marks the registry defaults layer, which the loader
// always applies first.
type defaultProvider struct{}

func NewDefaultProvider() Source { return defaultProvider{} }

func (defaultProvider) Load() (map[string]any, error) { return map[string]any{}, nil }
func (defaultProvider) Type() SourceType               { return SourceDefault }
func (defaultProvider) Close() error                   { return nil }

// cliProvider turns changed CLI flags into configuration keys.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider maps flag names (as registered in the definition registry)
// to config paths. Unknown flags are ignored.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	if len(c.flags) == 0 {
		return map[string]any{}, nil
	}
	flagToPath := definition.CreateRegistry().GetCLIFlagMapping()
	out := make(map[string]any)
	for name, value := range c.flags {
		path, ok := flagToPath[name]
		if !ok {
			continue
		}
		if err := setNested(out, path, value); err != nil {
			return nil, fmt.Errorf("failed to set CLI flag %s: %w", name, err)
		}
	}
	return out, nil
}

func (c *cliProvider) Type() SourceType { return SourceCLI }
func (c *cliProvider) Close() error     { return nil }

// setNested sets value in m at the dot separated path.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i, part := range parts[:len(parts)-1] {
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// yamlProvider reads a YAML configuration file. A missing file yields no values.
type yamlProvider struct {
	path string
}

func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(out), nil
}

func (y *yamlProvider) Type() SourceType { return SourceYAML }
func (y *yamlProvider) Close() error     { return nil }

// filterNilValues drops nil leaves so empty YAML keys keep lower layers.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}
