// Package main is the entry point for the gamestore API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gamestore/internal/app"
	"gamestore/internal/core/idempotency"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/auth"
	"gamestore/internal/domain/orders"
	"gamestore/internal/infrastructure/cache"
	v1 "gamestore/internal/infrastructure/http/v1"
	"gamestore/internal/infrastructure/http/v1/handlers"
	"gamestore/internal/infrastructure/storage/memory"
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

	log.Info("starting gamestore server")

	// --- Domain configuration ---
	shippingFee, err := types.NewMoneyFromString(getEnv("SHIPPING_FEE", "0"))
	if err != nil {
		log.Fatalw("invalid SHIPPING_FEE", "error", err)
	}
	branchPolicy, err := orders.ParseBranchPolicy(getEnv("ORDER_BRANCH_POLICY", "highest_stock"))
	if err != nil {
		log.Fatalw("invalid ORDER_BRANCH_POLICY", "error", err)
	}
	lockTimeout := getEnvDuration("LOCK_TIMEOUT", 2*time.Second)

	appCfg := app.Config{
		Retry: tx.RetryPolicy{
			Attempts: getEnvInt("TX_RETRY_ATTEMPTS", 3),
			Backoff:  getEnvDuration("TX_RETRY_BACKOFF", 20*time.Millisecond),
		},
		ShippingFee:    shippingFee,
		BranchPolicy:   branchPolicy,
		TrackingPrefix: getEnv("TRACKING_PREFIX", "TRK"),
	}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient, err = cache.NewClient(ctx, cache.Config{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		log.Infow("redis connection established", "addr", addr)
	}
	idempotencyTTL := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)

	// --- Storage ---
	var (
		backend   app.Backend
		idemStore idempotency.Store
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		poolCfg := postgres.DefaultPoolConfig(dsn)
		if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
			poolCfg.MaxConns = int32(maxConns)
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalw("failed to migrate database", "error", err)
		}

		txOpts := postgres.DefaultTxOptions()
		txOpts.LockTimeout = lockTimeout
		txOpts.StatementTimeout = getEnvDuration("STATEMENT_TIMEOUT", txOpts.StatementTimeout)
		txManager := postgres.NewTxManager(pool, txOpts)

		auditService, err := postgres.NewAuditService(txManager)
		if err != nil {
			log.Fatalw("failed to create audit service", "error", err)
		}

		backend = app.PostgresBackend(pool, txManager, auditService)
		idemStore = postgres.NewIdempotencyStore(txManager, idempotencyTTL)
		go reportPoolStats(ctx, pool, getEnvDuration("DB_STATS_INTERVAL", 5*time.Minute))

		log.Infow("database connection established", "max_conns", poolCfg.MaxConns)
	} else {
		store := memory.NewSeeded(memory.WithLockTimeout(lockTimeout))
		backend = app.MemoryBackend(store)
		log.Warn("DATABASE_URL not set, serving seeded in-memory demo store")
	}
	if redisClient != nil {
		idemStore = cache.NewIdempotencyStore(redisClient, idempotencyTTL)
	}

	services := app.NewServices(backend, appCfg)

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(getEnv("JWT_SECRET", "your-secret-key-change-in-production"))
	jwtConfig.AccessTokenTTL = getEnvDuration("JWT_TTL", jwtConfig.AccessTokenTTL)
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	healthChecks := map[string]handlers.Pinger{}
	if redisClient != nil {
		healthChecks["redis"] = cache.Health{Client: redisClient}
	}
	router := v1.NewRouter(v1.RouterConfig{
		Services:         services,
		Logger:           log,
		JWTValidator:     jwtService,
		IdempotencyStore: idemStore,
		HealthChecks:     healthChecks,
	})

	// --- HTTP Server ---
	port := getEnv("SERVER_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func reportPoolStats(ctx context.Context, pool *postgres.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			postgres.LogPoolStats(ctx, pool)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
