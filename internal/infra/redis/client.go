package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used for shared caches.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Config holds Redis connection configuration. An empty URL disables Redis.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "scamradar"
	}
	return &Client{rdb: rdb, prefix: prefix, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) setKey(name string) string {
	return fmt.Sprintf("%s:set:%s", c.prefix, name)
}

// AddMembers adds members to a named set and refreshes its expiry.
func (c *Client) AddMembers(ctx context.Context, name string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	key := c.setKey(name)
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, args...)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	return nil
}

// IsMember reports whether member belongs to the named set.
func (c *Client) IsMember(ctx context.Context, name, member string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, c.setKey(name), member).Result()
	if err != nil {
		return false, fmt.Errorf("sismember failed: %w", err)
	}
	return ok, nil
}

// Members returns every member of the named set.
func (c *Client) Members(ctx context.Context, name string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, c.setKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	return members, nil
}

// Count returns the cardinality of the named set.
func (c *Client) Count(ctx context.Context, name string) (int64, error) {
	n, err := c.rdb.SCard(ctx, c.setKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("scard failed: %w", err)
	}
	return n, nil
}
