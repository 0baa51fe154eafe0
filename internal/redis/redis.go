package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a go-redis client with the engine's key layout
type Store struct {
	client       *redis.Client
	telemetryTTL time.Duration
}

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	log.Printf("REDIS: Connected to %s", addr)
	return client, nil
}

// NewStore wraps client. A zero telemetryTTL keeps mirrored telemetry forever.
func NewStore(client *redis.Client, telemetryTTL time.Duration) *Store {
	return &Store{client: client, telemetryTTL: telemetryTTL}
}
