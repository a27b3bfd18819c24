package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mesikahq/hospital-api/internal/config"
)

// NewRedisClient returns nil when no address is configured; callers treat a
// nil client as "caching disabled".
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
