package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/config"
)

var (
	// ErrRedisDisabled indicates Redis is disabled in config.
	ErrRedisDisabled = errors.New("redis disabled")
	// ErrEmptyAddress is returned when Redis is enabled without an address.
	ErrEmptyAddress = errors.New("redis address is required")
)

const redisConnectionTimeout = 5 * time.Second

// CreateRedisClient connects to Redis and verifies the connection.
func CreateRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, ErrRedisDisabled
	}
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
