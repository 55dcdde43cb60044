// Package redis opens the optional Redis connection shared by terminal locks
// and PIN lockout counters.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kiosk/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New connects to cfg.URL. An empty URL returns a nil client and the server
// keeps that state in process memory instead.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.ClientName = "kiosk"
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	return opts, nil
}

// Universal returns the client as the interface the stores accept, or nil
// when Redis is not configured.
func (c *Client) Universal() redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c.Client
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
