package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const (
	fallbackRedisPingTimeout = 10 * time.Second
	defaultKeyPrefix         = "puzzlekit:"
	purgeScanCount           = 256
	scopeDigestBytes         = 8
)

// RedisConfig describes the optional shared tier.
type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	TLSEnabled   bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
	// KeyPrefix namespaces every key; defaults to "puzzlekit:".
	KeyPrefix string
	// Scope names the database whose answers are cached. It is hashed into
	// the prefix so stores sharing a server never read each other's entries.
	Scope string
}

// Enabled reports whether a Redis endpoint is configured.
func (c *RedisConfig) Enabled() bool {
	return c != nil && (c.URL != "" || c.Host != "")
}

// Redis is a SharedStore backed by a Redis server, letting several processes
// reuse metadata computed against the same database.
type Redis struct {
	client redis.UniversalClient
	prefix string
	once   sync.Once
}

var _ SharedStore = (*Redis)(nil)

// NewRedis connects to the configured server and pings it.
func NewRedis(ctx context.Context, cfg *RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache: redis config is required")
	}
	client, err := buildRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackRedisPingTimeout
	}
	if err := pingRedis(ctx, client, timeout); err != nil {
		client.Close()
		return nil, err
	}
	prefix := scopedPrefix(cfg.KeyPrefix, cfg.Scope)
	logger.FromContext(ctx).With(
		"cache_driver", "redis",
		"host", cfg.Host,
		"db", cfg.DB,
		"scope", cfg.Scope,
		"prefix", prefix,
	).Info("Redis connection established")
	return &Redis{client: client, prefix: prefix}, nil
}

// scopedPrefix appends a short digest of scope to the key prefix.
func scopedPrefix(keyPrefix, scope string) string {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if scope == "" {
		return keyPrefix
	}
	sum := sha256.Sum256([]byte(scope))
	return keyPrefix + hex.EncodeToString(sum[:scopeDigestBytes]) + ":"
}

func buildRedisClient(cfg *RedisConfig) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("cache: parsing Redis URL: %w", err)
		}
		applyConfigToOptions(opt, cfg)
		return redis.NewClient(opt), nil
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	opt := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	applyConfigToOptions(opt, cfg)
	return redis.NewClient(opt), nil
}

func pingRedis(ctx context.Context, client redis.UniversalClient, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("cache: pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}

func applyConfigToOptions(opt *redis.Options, cfg *RedisConfig) {
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.TLSEnabled && opt.TLSConfig == nil {
		opt.TLSConfig = &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

// Purge deletes every key under the scoped prefix using SCAN so large
// keyspaces are not blocked. Other scopes are untouched.
func (r *Redis) Purge(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", purgeScanCount).Result()
		if err != nil {
			return fmt.Errorf("cache: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache: redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return nil
}

// Close shuts down the client; repeated calls are no-ops.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.client.Close()
	})
	return err
}
