package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Connect opens a Redis client and pings it. When Redis is unreachable it
// returns a nil client and the server runs without the profile cache.
func Connect(ctx context.Context, addr, password string) *redis.Client {
	if addr == "" {
		log.Info().Str("component", "redis").Msg("REDIS_URL not set, profile cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("component", "redis").Msg("could not connect, falling back to the database only")
		client.Close()
		return nil
	}

	log.Info().Str("component", "redis").Str("addr", addr).Msg("connected")
	return client
}

// Cache wraps redis.Client behind the small key/value surface the services need.
// Every key is stored under a namespace prefix.
type Cache struct {
	client    *redis.Client
	namespace string
}

func NewCache(client *redis.Client, namespace string) *Cache {
	return &Cache{client: client, namespace: namespace}
}

func (c *Cache) key(k string) string {
	return c.namespace + k
}

// Set stores a key-value pair with expiration
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, expiration).Err()
}

// Get returns the value for key. A missing key yields an empty string and ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

// Del deletes keys
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

var ErrMiss = errors.New("cache miss")
