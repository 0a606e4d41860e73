package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"gallery-store/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/rate_limit.lua
var rateLimitScript string

type Client struct {
	rdb             *redis.Client
	rateLimitScript *redis.Script
	productTTL      time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, productTTL time.Duration) (*Client, error) {
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

	return &Client{
		rdb:             rdb,
		rateLimitScript: redis.NewScript(rateLimitScript),
		productTTL:      productTTL,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// GetProduct returns a cached product, or nil on a cache miss
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product cache get failed: %w", err)
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("product cache decode failed: %w", err)
	}
	return &product, nil
}

// SetProduct caches a product for the configured TTL
func (c *Client) SetProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("product cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, productKey(product.ID), data, c.productTTL).Err()
}

// InvalidateProduct removes cached products
func (c *Client) InvalidateProduct(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func revokedSessionKey(id string) string {
	return "session:revoked:" + id
}

// RevokeSession denies the session id until the given time, after which its token
// has expired anyway
func (c *Client) RevokeSession(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, revokedSessionKey(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("session revoke failed: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the session id was revoked
func (c *Client) IsSessionRevoked(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, revokedSessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("session revoke lookup failed: %w", err)
	}
	return n > 0, nil
}

// RateLimiter is a fixed window limiter shared by every server instance
type RateLimiter struct {
	client *Client
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimiter allows limit events per window for each key
func (c *Client) NewRateLimiter(prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: c, limit: limit, window: window, prefix: prefix}
}

// Allow atomically counts one event for key and reports whether it is within the limit
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	result, err := l.client.rateLimitScript.Run(ctx, l.client.rdb, []string{redisKey},
		l.limit, l.window.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return allowed == 1, nil
}
