// Package cache provides the Redis-backed infrastructure: the idempotency key
// store used by the HTTP layer and the event stream fed by the outbox worker.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Health adapts a client to the readiness probe.
type Health struct {
	Client *redis.Client
}

// Ping reports whether Redis answers.
func (h Health) Ping(ctx context.Context) error {
	return h.Client.Ping(ctx).Err()
}
