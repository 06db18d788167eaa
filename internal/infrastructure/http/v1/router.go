// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/app"
	"gamestore/internal/core/idempotency"
	"gamestore/internal/infrastructure/http/v1/handlers"
	"gamestore/internal/infrastructure/http/v1/middleware"
	"gamestore/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services are the domain services behind the API
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// IdempotencyStore enables the idempotency middleware when set
	IdempotencyStore idempotency.Store

	// HealthChecks are reported by /health/ready in addition to storage
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	checks := map[string]handlers.Pinger{"storage": cfg.Services.Health}
	for name, check := range cfg.HealthChecks {
		checks[name] = check
	}
	healthHandler := handlers.NewHealthHandler(checks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.IdempotencyStore != nil {
		v1.Use(middleware.Idempotency(cfg.IdempotencyStore))
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	registerRoutes(v1, admin, cfg.Services)

	return router
}

func registerRoutes(customer, admin *gin.RouterGroup, s *app.Services) {
	base := handlers.NewBaseHandler()

	handlers.NewOrderHandler(base, s.Orders).RegisterRoutes(customer, admin)
	handlers.NewReturnHandler(base, s.Returns).RegisterRoutes(customer, admin)
	handlers.NewCartHandler(base, s.Cart).RegisterRoutes(customer)
	handlers.NewInventoryHandler(base, s.Ledger, s.Restock, s.Transfer, s.OfflineSale).RegisterRoutes(admin)
	handlers.NewReferenceHandler(base, s.Catalog, s.Restock, s.OfflineSale).RegisterRoutes(admin)
}
