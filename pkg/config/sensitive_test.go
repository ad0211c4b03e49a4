package config

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSensitiveString(t *testing.T) {
	t.Run("Should hide the value when printed", func(t *testing.T) {
		pw := SensitiveString("hunter2")
		assert.Equal(t, "[REDACTED]", pw.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", pw))
		assert.Equal(t, "hunter2", pw.Value())
	})
	t.Run("Should print empty secrets as empty", func(t *testing.T) {
		assert.Empty(t, SensitiveString("").String())
	})
	t.Run("Should read plain JSON strings", func(t *testing.T) {
		var s SensitiveString
		require.NoError(t, json.Unmarshal([]byte(`"postgres://chess:pw@db/puzzles"`), &s))
		assert.Equal(t, "postgres://chess:pw@db/puzzles", s.Value())
	})
}

func TestSensitiveFieldsInSerializedConfig(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "db-secret"
	cfg.Database.ConnString = "postgres://chess:db-secret@db/puzzles"
	cfg.Redis.Password = "redis-secret"

	t.Run("Should redact database and redis secrets in JSON", func(t *testing.T) {
		data, err := json.Marshal(cfg)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "db-secret")
		assert.NotContains(t, string(data), "redis-secret")
		assert.Contains(t, string(data), `"Password":"[REDACTED]"`)
	})
	t.Run("Should redact secrets in YAML", func(t *testing.T) {
		data, err := yaml.Marshal(cfg)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "db-secret")
		assert.NotContains(t, string(data), "redis-secret")
	})
	t.Run("Should decode secrets from the environment", func(t *testing.T) {
		t.Setenv("PUZZLEKIT_DB_PASSWORD", "from-env")
		t.Setenv("PUZZLEKIT_REDIS_PASSWORD", "redis-env")
		loaded, err := NewService().Load(context.Background(), NewDefaultProvider(), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, "from-env", loaded.Database.Password.Value())
		assert.Equal(t, "redis-env", loaded.Redis.Password.Value())
		assert.Equal(t, "[REDACTED]", loaded.Database.Password.String())
	})
}
