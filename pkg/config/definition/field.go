package definition

import (
	"reflect"
	"sort"
)

// FieldDef describes one configuration key: its default, where it can be set
// from and the help shown next to its CLI flag.
type FieldDef struct {
	Path      string       // Config path like "database.driver"
	Default   any          // Default value
	CLIFlag   string       // CLI flag name like "db-driver"
	Shorthand string       // Single character shorthand
	EnvVar    string       // Environment variable like "PUZZLEKIT_DB_DRIVER"
	Type      reflect.Type // Field type used to bind the flag
	Help      string       // Help text for CLI
}

// Registry holds every configuration field definition keyed by path.
type Registry struct {
	fields map[string]FieldDef
}

func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]FieldDef)}
}

// Register adds or replaces a field definition.
func (r *Registry) Register(field *FieldDef) {
	r.fields[field.Path] = *field
}

func (r *Registry) GetField(path string) (FieldDef, bool) {
	field, exists := r.fields[path]
	return field, exists
}

// GetDefault returns the default value for path or nil when unknown.
func (r *Registry) GetDefault(path string) any {
	if field, exists := r.fields[path]; exists {
		return field.Default
	}
	return nil
}

// Fields returns the definitions ordered by path.
func (r *Registry) Fields() []FieldDef {
	out := make([]FieldDef, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// GetCLIFlagMapping maps CLI flag names to config paths.
func (r *Registry) GetCLIFlagMapping() map[string]string {
	mapping := make(map[string]string)
	for path, field := range r.fields {
		if field.CLIFlag != "" {
			mapping[field.CLIFlag] = path
		}
	}
	return mapping
}
