// Package redis owns the process's optional Redis connection, used for the
// token revocation list.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"certflow/internal/platform/config"
)

// Client wraps the go-redis client so callers get a health check alongside
// the raw command surface.
type Client struct {
	*redis.Client
}

// New dials Redis from the provided configuration and verifies the
// connection. An empty URL means Redis is not configured; callers get
// (nil, nil) and fall back to in-memory implementations.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
