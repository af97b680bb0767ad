package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a shared store for deployments running several verifiers
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache connects to addr and verifies the connection with PING
func NewRedisCache(addr string, timeout time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return newRedisCache(client, timeout)
}

func newRedisCache(client *redis.Client, timeout time.Duration) (*RedisCache, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	c := &RedisCache{client: client, timeout: timeout}

	ctx, cancel := c.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func (c *RedisCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Get retrieves a value. Connection errors are reported as a miss.
func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := c.ctx()
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value with the given TTL (0 means no expiry)
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a value
func (c *RedisCache) Delete(key string) error {
	ctx, cancel := c.ctx()
	defer cancel()

	err := c.client.Del(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Clear deletes every key written by this package
func (c *RedisCache) Clear() error {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Close closes the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
