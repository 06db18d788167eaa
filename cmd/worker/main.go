// Package main is the entry point for the gamestore background worker.
// It relays outbox events to a Redis stream and expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gamestore/internal/infrastructure/cache"
	"gamestore/internal/infrastructure/storage/postgres"
	"gamestore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting gamestore worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, postgres.DefaultTxOptions())

	var handler postgres.OutboxHandler = logHandler{log: log.WithComponent("outbox")}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()

		stream := getEnv("EVENT_STREAM", "gamestore.events")
		handler = cache.NewStreamSink(client, stream, int64(getEnvInt("EVENT_STREAM_MAXLEN", 100000)))
		log.Infow("relaying outbox to redis stream", "stream", stream)
	} else {
		log.Warn("REDIS_ADDR not set, outbox events are only logged")
	}

	relay := postgres.NewOutboxRelay(txManager, getEnvInt("OUTBOX_BATCH_SIZE", 100), handler)
	idem := postgres.NewIdempotencyStore(txManager, getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relay.Run(ctx, getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond))
	}()
	go func() {
		defer wg.Done()
		runCleanup(ctx, log, idem, getEnvDuration("CLEANUP_INTERVAL", time.Hour))
	}()

	<-ctx.Done()
	log.Info("shutting down worker...")
	wg.Wait()
	log.Info("worker stopped")
}

// logHandler stands in for a broker when none is configured.
type logHandler struct {
	log *logger.Logger
}

func (h logHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.WithContext(ctx).Infow("outbox event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
	)
	return nil
}

func runCleanup(ctx context.Context, log *logger.Logger, idem *postgres.IdempotencyStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := idem.CleanupExpired(ctx)
			if err != nil {
				log.Errorw("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("cleaned up idempotency keys", "count", n)
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
