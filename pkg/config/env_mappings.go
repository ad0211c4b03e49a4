package config

import (
	"reflect"
	"sync"
)

// EnvMapping pairs an environment variable with the config path it sets.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
	Sensitive  bool
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings derives the mappings from the koanf/env tags on Config.
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cachedMappings = walkFields(reflect.TypeOf(Config{}), "", nil)
	})
	return cachedMappings
}

// walkFields visits every leaf field carrying a koanf tag.
func walkFields(t reflect.Type, prefix string, out []EnvMapping) []EnvMapping {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			out = walkFields(field.Type, path, out)
			continue
		}
		out = append(out, EnvMapping{
			EnvVar:     field.Tag.Get("env"),
			ConfigPath: path,
			Sensitive:  field.Type == reflect.TypeOf(SensitiveString("")) || field.Tag.Get("sensitive") == "true",
		})
	}
	return out
}

// GenerateEnvToConfigMap maps environment variables to config paths.
func GenerateEnvToConfigMap() map[string]string {
	result := make(map[string]string)
	for _, m := range GenerateEnvMappings() {
		if m.EnvVar != "" && m.EnvVar != "-" {
			result[m.EnvVar] = m.ConfigPath
		}
	}
	return result
}

// GetEnvVarForConfigPath returns the environment variable for configPath or "".
func GetEnvVarForConfigPath(configPath string) string {
	for _, m := range GenerateEnvMappings() {
		if m.ConfigPath == configPath {
			return m.EnvVar
		}
	}
	return ""
}

// IsSensitiveConfigPath reports whether configPath holds a secret.
func IsSensitiveConfigPath(configPath string) bool {
	for _, m := range GenerateEnvMappings() {
		if m.ConfigPath == configPath {
			return m.Sensitive
		}
	}
	return false
}
