// Package cache wraps a Redis client for JSON values and pub/sub. A Cache
// built without a client is a valid, disabled cache: reads miss and writes
// are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Cache struct {
	client *redis.Client
}

// Disabled returns a Cache with no backing client.
func Disabled() *Cache {
	return &Cache{}
}

// New connects to redisURL (redis://host:port/db) and pings it, retrying a
// few times to ride out sidecar startup.
func New(ctx context.Context, redisURL string, attempts int, logger zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return &Cache{client: client}, nil
		}
		logger.Warn().Err(lastErr).Int("attempt", i+1).Int("of", attempts).Msg("redis ping failed")
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				client.Close()
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	client.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// Get decodes the JSON value at key into dest. found is false on a miss or
// when the cache is disabled.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Available() {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	if !c.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, channel, data).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Available() {
		return errors.New("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.client.Close()
}
