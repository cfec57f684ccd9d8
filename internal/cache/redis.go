package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// defaultKeyPrefix namespaces all cache keys in Redis to avoid collisions.
	defaultKeyPrefix = "opensubtitles:search:"

	redisOpTimeout = 2 * time.Second
)

func init() {
	Register("redis", newRedisCache)
}

// redisCache stores each entry as a plain string key with a PX expiry, so Redis
// (or Valkey) removes stale search results on its own. Size is not enforced:
// configure maxmemory-policy on the server when a bound is needed.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger Logger
	prefix string
}

func newRedisCache(cfg ProviderConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Verify connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
		prefix: defaultKeyPrefix,
	}, nil
}

func (r *redisCache) key(key string) string {
	return r.prefix + key
}

func (r *redisCache) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, err)
	}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		// redis.Nil is a normal cache miss.
		if !errors.Is(err, redis.Nil) {
			r.logError("redis cache Get failed", err)
		}
		return nil, false
	}
	return val, true
}

func (r *redisCache) Set(key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		r.logError("redis cache Set failed", err)
	}
}

func (r *redisCache) Invalidate(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logError("redis cache Invalidate failed", err)
	}
}

func (r *redisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		r.logError("redis cache Len failed", err)
		return 0
	}
	return int(n)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
