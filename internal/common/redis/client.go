package redis

import (
	"context"

	"github.com/Hossein925/f-maharat/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// Client aliases the go-redis client so callers need a single import.
type Client = redis.Client

// NewRedisClient creates a client for cfg without connecting.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks that the server is reachable.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes client if it is non-nil.
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
