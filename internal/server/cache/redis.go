package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/server/models"
)

const userKeyPrefix = "user"

var errNotCached = common.ErrNotFound

// RedisUserCache is a UserCache backed by Redis. Entries are stored as JSON
// under "user:<idOrEmail>".
type RedisUserCache struct {
	redis  *redis.Client
	prefix string
}

// NewRedisUserCache constructs a cache over the given Redis client.
func NewRedisUserCache(redisClient *redis.Client) *RedisUserCache {
	return &RedisUserCache{
		redis:  redisClient,
		prefix: userKeyPrefix,
	}
}

func (c *RedisUserCache) key(idOrEmail string) string {
	return c.prefix + ":" + idOrEmail
}

func (c *RedisUserCache) Get(ctx context.Context, key string) (*models.User, error) {
	payload, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errNotCached
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	user := &models.User{}
	if err := json.Unmarshal(payload, user); err != nil {
		// A corrupt entry behaves like a miss; the next Set repairs it.
		return nil, errNotCached
	}
	return user, nil
}

func (c *RedisUserCache) Set(ctx context.Context, key string, user *models.User, ttl time.Duration) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisUserCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, c.key(k))
	}
	if err := c.redis.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
