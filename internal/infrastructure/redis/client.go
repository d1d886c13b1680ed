package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis client shared by the settlement lock, the
// attempt journal, idempotency keys and the event stream.
type Config struct {
	URL      string
	PoolSize int
}

// NewClient creates a new Redis client and verifies it with a ping.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
