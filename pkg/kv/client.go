// Package kv wraps the Redis client shared by the lock, rate-limit, party,
// and WS-gateway handshake components. Every multi-key mutation that must
// be atomic is a server-side Lua script executed through this client
// (spec.md §5); mutations that don't need atomicity use a pipeline instead.
package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client is the thin wrapper the rest of the dorch binaries depend on
// instead of *redis.Client directly, so scripts can be registered once and
// reused by SHA.
type Client struct {
	*redis.Client
}

// New creates a Client from a Redis URL (redis://host:port/db) and
// verifies connectivity with a Ping, matching wisbric-nightowl's
// platform.NewRedisClient convention.
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Client{Client: rdb}, nil
}
