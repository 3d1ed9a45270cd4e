package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix  = "llm-pipes:completion:"
	defaultCacheTTL = 24 * time.Hour
)

// RedisStore is the subset of *redis.Client the cache needs.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisOptions configures the Redis connection backing a Cache.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient dials lazily; the first command establishes the connection.
func NewRedisClient(options RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        options.Address,
		Password:    options.Password,
		DB:          options.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
}

// Cache stores successful replies in Redis keyed by a digest of the request.
// Redis failures are logged and the request is served by the next Completer.
type Cache struct {
	next   Completer
	store  RedisStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewCache(next Completer, store RedisStore, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *Cache) Complete(ctx context.Context, request Request) (string, error) {
	key, keyErr := CacheKey(request)
	if keyErr != nil {
		c.logger.Warn("completion cache key failed", zap.Error(keyErr))
		return c.next.Complete(ctx, request)
	}

	cached, getErr := c.store.Get(ctx, key).Result()
	switch {
	case getErr == nil:
		c.logger.Debug("completion cache hit", zap.String("key", key))
		return cached, nil
	case errors.Is(getErr, redis.Nil):
	default:
		c.logger.Warn("completion cache unavailable", zap.String("key", key), zap.Error(getErr))
	}

	reply, err := c.next.Complete(ctx, request)
	if err != nil {
		return "", err
	}
	if setErr := c.store.Set(ctx, key, reply, c.ttl).Err(); setErr != nil {
		c.logger.Warn("completion cache write failed", zap.String("key", key), zap.Error(setErr))
	}
	return reply, nil
}

// CacheKey is the Redis key of request: a fixed prefix and the SHA-256 of its JSON form.
func CacheKey(request Request) (string, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(encoded)
	return cacheKeyPrefix + hex.EncodeToString(digest[:]), nil
}
