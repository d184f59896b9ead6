package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key prefixes. Every mutation of the underlying record must invalidate its key.
const (
	UserPrefix      = "user:"
	QuestionsPrefix = "questions:"
	LeaderboardKey  = "leaderboard"
)

func UserKey(userID string) string { return UserPrefix + userID }

func QuestionsKey(difficulty string) string {
	if difficulty == "" {
		return QuestionsPrefix + "all"
	}
	return QuestionsPrefix + difficulty
}

// Cache is a read-through JSON cache over redis. A nil *Cache, or a redis outage,
// degrades to calling the loader directly.
type Cache struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
	group  singleflight.Group
}

func New(rdb redis.UniversalClient, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, logger: logger}
}

// Ping reports whether redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errors.New("cache not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

// GetOrLoad returns the cached value for key, or calls load, stores the result for ttl
// and returns it. Concurrent misses on the same key share one load.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.rdb == nil {
		return load(ctx)
	}

	var zero T
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if uerr := json.Unmarshal(raw, &cached); uerr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed, loading from source", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, ttl, loaded)
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache) store(ctx context.Context, key string, ttl time.Duration, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes keys. Failures are returned so callers can log them; stale entries
// still expire with their TTL.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("invalidate %v: %w", keys, err)
	}
	return nil
}

// InvalidateUser drops the cached profile of a user after a balance or profile change.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	return c.Invalidate(ctx, UserKey(userID))
}
