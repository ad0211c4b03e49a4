package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

func newTestContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func setupMiniredis(ctx context.Context, t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, connectScoped(ctx, t, mr, "")
}

func connectScoped(ctx context.Context, t *testing.T, mr *miniredis.Miniredis, scope string) *Redis {
	t.Helper()
	r, err := NewRedis(ctx, &RedisConfig{URL: "redis://" + mr.Addr(), Scope: scope})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedis(t *testing.T) {
	t.Run("Should round trip values under the prefix", func(t *testing.T) {
		ctx := newTestContext(t)
		mr, r := setupMiniredis(ctx, t)
		require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
		got, ok, err := r.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), got)
		assert.True(t, mr.Exists("puzzlekit:k"))
		assert.Equal(t, time.Minute, mr.TTL("puzzlekit:k"))
	})
	t.Run("Should report misses without error", func(t *testing.T) {
		ctx := newTestContext(t)
		_, r := setupMiniredis(ctx, t)
		_, ok, err := r.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("Should purge only prefixed keys", func(t *testing.T) {
		ctx := newTestContext(t)
		mr, r := setupMiniredis(ctx, t)
		require.NoError(t, mr.Set("other", "keep"))
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, r.Set(ctx, k, []byte(k), 0))
		}
		require.NoError(t, r.Purge(ctx))
		assert.Equal(t, []string{"other"}, mr.Keys())
	})
	t.Run("Should namespace keys by scope", func(t *testing.T) {
		ctx := newTestContext(t)
		mr := miniredis.RunT(t)
		a := connectScoped(ctx, t, mr, "sqlite|/data/a.db")
		b := connectScoped(ctx, t, mr, "sqlite|/data/b.db")
		again := connectScoped(ctx, t, mr, "sqlite|/data/a.db")
		assert.NotEqual(t, a.prefix, b.prefix)
		assert.Equal(t, a.prefix, again.prefix)
		assert.Regexp(t, `^puzzlekit:[0-9a-f]{16}:$`, a.prefix)
		require.NoError(t, a.Set(ctx, "k", []byte("a"), 0))
		_, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
		got, ok, err := again.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("a"), got)
	})
	t.Run("Should fail fast when the server is unreachable", func(t *testing.T) {
		ctx := newTestContext(t)
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedis(ctx, &RedisConfig{URL: "redis://" + addr, PingTimeout: 200 * time.Millisecond})
		require.Error(t, err)
	})
	t.Run("Should close idempotently", func(t *testing.T) {
		ctx := newTestContext(t)
		_, r := setupMiniredis(ctx, t)
		require.NoError(t, r.HealthCheck(ctx))
		require.NoError(t, r.Close())
		require.NoError(t, r.Close())
	})
}

func TestRepository_SharedTier(t *testing.T) {
	t.Run("Should serve a second process from the shared tier", func(t *testing.T) {
		ctx := newTestContext(t)
		_, shared := setupMiniredis(ctx, t)
		first := newCountingRepo()
		a, err := New(first, Config{Shared: shared})
		require.NoError(t, err)
		_, err = a.Themes(ctx)
		require.NoError(t, err)
		_, err = a.ByID(ctx, "0003b")
		require.NoError(t, err)

		second := newCountingRepo()
		b, err := New(second, Config{Shared: shared})
		require.NoError(t, err)
		themes, err := b.Themes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"crushing", "mateIn2"}, themes)
		p, err := b.ByID(ctx, "0003b")
		require.NoError(t, err)
		assert.Equal(t, "Sicilian_Defense Sicilian_Defense_Alapin_Variation", p.OpeningTags)
		assert.Zero(t, second.calls.Load())
	})
	t.Run("Should keep databases on one server apart", func(t *testing.T) {
		ctx := newTestContext(t)
		mr := miniredis.RunT(t)
		firstDB := newCountingRepo()
		secondDB := newCountingRepo()
		secondDB.rating = puzzle.Range{Min: 339, Max: 3352}
		a, err := New(firstDB, Config{Shared: connectScoped(ctx, t, mr, "sqlite|/data/a.db")})
		require.NoError(t, err)
		b, err := New(secondDB, Config{Shared: connectScoped(ctx, t, mr, "sqlite|/data/b.db")})
		require.NoError(t, err)

		ra, err := a.RatingRange(ctx)
		require.NoError(t, err)
		rb, err := b.RatingRange(ctx)
		require.NoError(t, err)
		assert.Equal(t, puzzle.Range{Min: 629, Max: 1858}, ra)
		assert.Equal(t, puzzle.Range{Min: 339, Max: 3352}, rb)
		assert.Equal(t, int64(1), secondDB.calls.Load())

		_, err = b.ByID(ctx, "matey")
		require.NoError(t, err)
		keysBefore := len(mr.Keys())
		a.Purge(ctx)
		assert.Equal(t, keysBefore-1, len(mr.Keys()))
		again, err := b.RatingRange(ctx)
		require.NoError(t, err)
		assert.Equal(t, rb, again)
	})
	t.Run("Should fall back to the repository when the tier is down", func(t *testing.T) {
		ctx := newTestContext(t)
		mr, shared := setupMiniredis(ctx, t)
		next := newCountingRepo()
		r, err := New(next, Config{Shared: shared})
		require.NoError(t, err)
		mr.Close()
		rr, err := r.PopularityRange(ctx)
		require.NoError(t, err)
		assert.Equal(t, puzzle.Range{Min: -33, Max: 97}, rr)
		assert.Equal(t, int64(1), next.calls.Load())
	})
}
