package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIProvider(t *testing.T) {
	t.Run("Should map registered flags to nested paths", func(t *testing.T) {
		data, err := NewCLIProvider(map[string]any{
			"db-driver": "postgres",
			"db-host":   "db.local",
			"cache":     false,
			"unknown":   "ignored",
		}).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"database": map[string]any{"driver": "postgres", "host": "db.local"},
			"cache":    map[string]any{"enabled": false},
		}, data)
	})

	t.Run("Should return an empty map without flags", func(t *testing.T) {
		data, err := NewCLIProvider(nil).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestSetNested(t *testing.T) {
	t.Run("Should report conflicts with scalar keys", func(t *testing.T) {
		m := map[string]any{"database": "flat"}
		err := setNested(m, "database.driver", "sqlite")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `key "database" is not a map`)
	})

	t.Run("Should ignore an empty path", func(t *testing.T) {
		m := map[string]any{}
		require.NoError(t, setNested(m, "", 1))
		assert.Empty(t, m)
	})
}

func TestYAMLProvider(t *testing.T) {
	t.Run("Should treat a missing file as empty", func(t *testing.T) {
		data, err := NewYAMLProvider("/does/not/exist.yaml").Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should drop null values", func(t *testing.T) {
		path := writeYAML(t, "database:\n  path:\n  driver: sqlite\nredis:\n  url:\n")
		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"database": map[string]any{"driver": "sqlite"}}, data)
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Should expose the loaded configuration", func(t *testing.T) {
		m := NewManager(nil)
		assert.Nil(t, m.Get())
		cfg, err := m.Load(ctx, NewDefaultProvider())
		require.NoError(t, err)
		assert.Same(t, cfg, m.Get())
	})

	t.Run("Should notify callbacks only when the configuration changes", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{"cache": map[string]any{"size": 10}}}
		m := NewManager(nil)
		calls := 0
		m.OnChange(func(*Config) { calls++ })
		_, err := m.Load(ctx, src)
		require.NoError(t, err)
		require.NoError(t, m.Reload(ctx))
		assert.Equal(t, 1, calls)

		src.data = map[string]any{"cache": map[string]any{"size": 20}}
		require.NoError(t, m.Reload(ctx))
		assert.Equal(t, 2, calls)
		assert.Equal(t, 20, m.Get().Cache.Size)
	})

	t.Run("Should keep the previous configuration when reload fails", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{}}
		m := NewManager(nil)
		_, err := m.Load(ctx, src)
		require.NoError(t, err)
		src.data = map[string]any{"cli": map[string]any{"format": "xml"}}
		require.Error(t, m.Reload(ctx))
		assert.Equal(t, "table", m.Get().CLI.Format)
	})

	t.Run("Should close sources once", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML}
		m := NewManager(nil)
		_, err := m.Load(ctx, src)
		require.NoError(t, err)
		require.NoError(t, m.Close(ctx))
		require.NoError(t, m.Close(ctx))
		assert.True(t, src.closed)
	})
}

func TestContext(t *testing.T) {
	t.Run("Should return the attached manager's configuration", func(t *testing.T) {
		m := NewManager(nil)
		_, err := m.Load(context.Background(), &mockSource{
			sourceType: SourceYAML,
			data:       map[string]any{"cli": map[string]any{"format": "yaml"}},
		})
		require.NoError(t, err)
		ctx := ContextWithManager(context.Background(), m)
		assert.Same(t, m, ManagerFromContext(ctx))
		assert.Equal(t, "yaml", FromContext(ctx).CLI.Format)
	})

	t.Run("Should fall back to defaults without a manager", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	})
}

func TestEnvMappings(t *testing.T) {
	t.Run("Should derive env variables from struct tags", func(t *testing.T) {
		assert.Equal(t, "PUZZLEKIT_DB_DRIVER", GetEnvVarForConfigPath("database.driver"))
		assert.Equal(t, "cache.ttl", GenerateEnvToConfigMap()["PUZZLEKIT_CACHE_TTL"])
		assert.Empty(t, GetEnvVarForConfigPath("nope.nothing"))
	})

	t.Run("Should flag secrets as sensitive", func(t *testing.T) {
		assert.True(t, IsSensitiveConfigPath("database.password"))
		assert.True(t, IsSensitiveConfigPath("database.conn_string"))
		assert.True(t, IsSensitiveConfigPath("redis.password"))
		assert.False(t, IsSensitiveConfigPath("database.host"))
	})
}
