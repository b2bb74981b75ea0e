package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// SetOrderStatus caches the latest known status of an order
func (c *Client) SetOrderStatus(ctx context.Context, orderID, status string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("order-status:%s", orderID), status, ttl).Err()
}

// GetOrderStatus returns the cached status of an order; found is false on a cache miss
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (status string, found bool, err error) {
	status, err = c.rdb.Get(ctx, fmt.Sprintf("order-status:%s", orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// SetJSON stores v JSON encoded under key
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value under key into v; found is false on a cache miss
func (c *Client) GetJSON(ctx context.Context, key string, v interface{}) (found bool, err error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}
