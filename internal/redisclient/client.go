package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const gatewayTokenKey = "gateway:access_token"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetGatewayToken returns the cached gateway access token. Empty string and
// nil error means no valid token is cached.
func (c *Client) GetGatewayToken(ctx context.Context) (string, error) {
	token, err := c.rdb.Get(ctx, gatewayTokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// SetGatewayToken caches the gateway access token with a TTL shorter than the
// provider's expiry so a cached token is never presented stale.
func (c *Client) SetGatewayToken(ctx context.Context, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, gatewayTokenKey, token, ttl).Err()
}

// InvalidateGatewayToken drops the cached token, forcing re-authentication
func (c *Client) InvalidateGatewayToken(ctx context.Context) error {
	return c.rdb.Del(ctx, gatewayTokenKey).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
