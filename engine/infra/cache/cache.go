// Package cache wraps a puzzle.Repository with in-process caches for lookups
// whose answers only change when the database is rewritten.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/chesspuzzlekit/chesspuzzlekit/engine/puzzle"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 10 * time.Minute
	metaEntries = 16
	loadTimeout = 30 * time.Second
)

const (
	keyThemes          = "themes"
	keyOpenings        = "openings"
	keyRatingRange     = "rating_range"
	keyPopularityRange = "popularity_range"
	keyAttributes      = "attributes"
)

type Config struct {
	// Size bounds the number of puzzles kept by ID.
	Size int
	// TTL expires metadata entries, locally and in the shared tier.
	TTL time.Duration
	// Shared is an optional second tier consulted on local misses.
	Shared SharedStore
}

// SharedStore is a byte-oriented cache shared between processes.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// Repository decorates a puzzle.Repository. Random draws and raw queries are
// always forwarded.
type Repository struct {
	next   puzzle.Repository
	byID   *lru.Cache[string, puzzle.Puzzle]
	meta   *expirable.LRU[string, any]
	shared SharedStore
	ttl    time.Duration
	group  singleflight.Group
}

var (
	_ puzzle.Repository = (*Repository)(nil)
	_ puzzle.Writer     = (*Repository)(nil)
)

func New(next puzzle.Repository, cfg Config) (*Repository, error) {
	if next == nil {
		return nil, fmt.Errorf("cache: repository is required")
	}
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	byID, err := lru.New[string, puzzle.Puzzle](size)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	return &Repository{
		next:   next,
		byID:   byID,
		meta:   expirable.NewLRU[string, any](metaEntries, nil, ttl),
		shared: cfg.Shared,
		ttl:    ttl,
	}, nil
}

func (r *Repository) Random(ctx context.Context, f *puzzle.Filter) ([]*puzzle.Puzzle, error) {
	return r.next.Random(ctx, f)
}

func (r *Repository) Count(ctx context.Context, f *puzzle.Filter) (int64, error) {
	return r.next.Count(ctx, f)
}

func (r *Repository) Raw(ctx context.Context, query string, args ...any) ([]puzzle.Row, error) {
	return r.next.Raw(ctx, query, args...)
}

// ByID returns a copy of the cached puzzle so callers cannot mutate the entry.
func (r *Repository) ByID(ctx context.Context, id string) (*puzzle.Puzzle, error) {
	if p, ok := r.byID.Get(id); ok {
		return &p, nil
	}
	v, shared, err := r.load(ctx, "id:"+id, func(ctx context.Context) (any, error) {
		var p puzzle.Puzzle
		if r.loadShared(ctx, "id:"+id, &p) {
			r.byID.Add(id, p)
			return p, nil
		}
		loaded, err := r.next.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.byID.Add(id, *loaded)
		r.storeShared(ctx, "id:"+id, loaded)
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.FromContext(ctx).Debug("Puzzle lookup shared", "puzzle_id", id)
	}
	p := v.(puzzle.Puzzle)
	return &p, nil
}

func (r *Repository) Themes(ctx context.Context) ([]string, error) {
	return cachedSlice(ctx, r, keyThemes, r.next.Themes)
}

func (r *Repository) Openings(ctx context.Context) ([]string, error) {
	return cachedSlice(ctx, r, keyOpenings, r.next.Openings)
}

func (r *Repository) Attributes(ctx context.Context) ([]string, error) {
	return cachedSlice(ctx, r, keyAttributes, r.next.Attributes)
}

func (r *Repository) RatingRange(ctx context.Context) (puzzle.Range, error) {
	return cached(ctx, r, keyRatingRange, r.next.RatingRange)
}

func (r *Repository) PopularityRange(ctx context.Context) (puzzle.Range, error) {
	return cached(ctx, r, keyPopularityRange, r.next.PopularityRange)
}

// UpsertBatch forwards to the wrapped repository's writer and drops every entry.
func (r *Repository) UpsertBatch(ctx context.Context, puzzles []*puzzle.Puzzle) error {
	w, ok := r.next.(puzzle.Writer)
	if !ok {
		return errors.New("cache: wrapped repository is read-only")
	}
	defer r.Purge(ctx)
	return w.UpsertBatch(ctx, puzzles)
}

// Purge drops every cached entry, including the shared tier.
func (r *Repository) Purge(ctx context.Context) {
	r.byID.Purge()
	r.meta.Purge()
	if r.shared == nil {
		return
	}
	if err := r.shared.Purge(ctx); err != nil {
		logger.FromContext(ctx).Warn("Shared cache purge failed", "error", err)
	}
}

// load collapses concurrent misses on key into one call of fn. fn runs
// detached from any single caller, bounded by loadTimeout, so a caller that
// gives up returns its own ctx error without failing the others.
func (r *Repository) load(
	ctx context.Context,
	key string,
	fn func(context.Context) (any, error),
) (any, bool, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(lctx)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

// loadShared decodes key from the shared tier into dst. Tier failures count as misses.
func (r *Repository) loadShared(ctx context.Context, key string, dst any) bool {
	if r.shared == nil {
		return false
	}
	b, ok, err := r.shared.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("Shared cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.FromContext(ctx).Warn("Shared cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

func (r *Repository) storeShared(ctx context.Context, key string, value any) {
	if r.shared == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		logger.FromContext(ctx).Warn("Shared cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := r.shared.Set(ctx, key, b, r.ttl); err != nil {
		logger.FromContext(ctx).Warn("Shared cache write failed", "key", key, "error", err)
	}
}

func cached[T any](
	ctx context.Context,
	r *Repository,
	key string,
	load func(context.Context) (T, error),
) (T, error) {
	var zero T
	if v, ok := r.meta.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, _, err := r.load(ctx, "meta:"+key, func(ctx context.Context) (any, error) {
		var value T
		if r.loadShared(ctx, "meta:"+key, &value) {
			r.meta.Add(key, value)
			return value, nil
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		r.meta.Add(key, value)
		r.storeShared(ctx, "meta:"+key, value)
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// cachedSlice clones the cached slice before handing it out.
func cachedSlice(
	ctx context.Context,
	r *Repository,
	key string,
	load func(context.Context) ([]string, error),
) ([]string, error) {
	v, err := cached(ctx, r, key, load)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, nil
}
