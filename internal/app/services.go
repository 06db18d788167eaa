// Package app wires the domain services onto a storage backend. It is the
// composition root shared by cmd/server and the HTTP tests.
package app

import (
	"context"

	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/audit"
	"gamestore/internal/domain/cart"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/orders"
	"gamestore/internal/domain/restock"
	"gamestore/internal/domain/returns"
	"gamestore/internal/domain/transfer"
	"gamestore/internal/infrastructure/storage/memory"
	"gamestore/internal/infrastructure/storage/postgres"
	"gamestore/internal/infrastructure/storage/postgres/catalog_repo"
	"gamestore/internal/infrastructure/storage/postgres/document_repo"
	"gamestore/internal/infrastructure/storage/postgres/register_repo"
	"gamestore/pkg/numerator"
)

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is a storage implementation of every repository the services need.
type Backend struct {
	TxManager tx.Manager
	Inventory ledger.Repository
	Catalog   catalog.Catalog
	Directory catalog.Directory
	Orders    orders.Repository
	Returns   returns.Repository
	Carts     cart.Repository
	Purchases restock.Repository
	Sales     offlinesale.Repository
	Events    events.Publisher
	Audit     audit.Recorder
	Sequences numerator.Store
	Health    Pinger
}

// MemoryBackend serves everything from an in-process store.
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		TxManager: store,
		Inventory: store.Inventory(),
		Catalog:   store.Catalog(),
		Directory: store.Catalog(),
		Orders:    store.Orders(),
		Returns:   store.Returns(),
		Carts:     store.Carts(),
		Purchases: store.Purchases(),
		Sales:     store.Sales(),
		Events:    store.Events(),
		Audit:     store.Audit(),
		Sequences: numerator.NewMemoryStore(),
		Health:    store,
	}
}

// PostgresBackend serves everything from PostgreSQL. Events go to the
// transactional outbox.
func PostgresBackend(pool *postgres.Pool, txManager *postgres.TxManager, auditService *postgres.AuditService) Backend {
	reference := catalog_repo.NewRepo(txManager)
	return Backend{
		TxManager: txManager,
		Inventory: register_repo.NewInventoryRepo(txManager),
		Catalog:   reference,
		Directory: reference,
		Orders:    document_repo.NewOrderRepo(txManager),
		Returns:   document_repo.NewReturnRepo(txManager),
		Carts:     document_repo.NewCartRepo(txManager),
		Purchases: document_repo.NewPurchaseRepo(txManager),
		Sales:     document_repo.NewSaleRepo(txManager),
		Events:    postgres.NewOutboxPublisher(txManager),
		Audit:     auditService,
		Sequences: numerator.NewPostgresStore(func(ctx context.Context) numerator.Querier {
			return txManager.GetQuerier(ctx)
		}),
		Health: pool,
	}
}

// Config holds the settings of all domain services.
type Config struct {
	Retry        tx.RetryPolicy
	ShippingFee  types.Money
	BranchPolicy orders.BranchSelector
	// TrackingPrefix names the tracking number sequence. Empty falls back to
	// random numbers.
	TrackingPrefix string
}

// Services is the set of domain services exposed by the API.
type Services struct {
	Catalog     *catalog.Service
	Ledger      *ledger.Service
	Orders      *orders.Service
	Returns     *returns.Service
	Cart        *cart.Service
	Restock     *restock.Service
	Transfer    *transfer.Service
	OfflineSale *offlinesale.Service
	Health      Pinger
}

// NewServices builds the services on top of b.
func NewServices(b Backend, cfg Config) *Services {
	catalogSvc := catalog.NewService(b.Catalog, b.Directory)
	ledgerSvc := ledger.NewService(b.Inventory, b.TxManager, b.Events, ledger.Config{Retry: cfg.Retry})

	var tracking func(ctx context.Context) (string, error)
	if cfg.TrackingPrefix != "" && b.Sequences != nil {
		tracking = numerator.New(b.Sequences, numerator.DefaultOptions()).
			Generator(numerator.DefaultConfig(cfg.TrackingPrefix))
	}

	orderSvc := orders.NewService(b.Orders, ledgerSvc, catalogSvc, b.TxManager, b.Events, b.Audit, orders.Config{
		ShippingFee:    cfg.ShippingFee,
		Selector:       cfg.BranchPolicy,
		Retry:          cfg.Retry,
		TrackingNumber: tracking,
	})

	return &Services{
		Catalog: catalogSvc,
		Ledger:  ledgerSvc,
		Orders:  orderSvc,
		Returns: returns.NewService(b.Returns, b.Orders, ledgerSvc, b.TxManager, b.Events, b.Audit, returns.Config{
			Retry: cfg.Retry,
		}),
		Cart:        cart.NewService(b.Carts, catalogSvc, orderSvc, b.TxManager, cart.Config{Retry: cfg.Retry}),
		Restock:     restock.NewService(b.Purchases, ledgerSvc, catalogSvc, b.TxManager, cfg.Retry),
		Transfer:    transfer.NewService(ledgerSvc, catalogSvc),
		OfflineSale: offlinesale.NewService(b.Sales, ledgerSvc, catalogSvc, b.TxManager, cfg.Retry),
		Health:      b.Health,
	}
}
