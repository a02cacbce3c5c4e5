package persistence

import (
	"context"
	"fmt"
	"time"

	"deal-catalog-service/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance backing the transcode queue.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisHealthCheck pings the queue backend
func RedisHealthCheck(client *redis.Client) repository.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
