// Package main provides a CLI tool for seeding the database with demo data
// and printing development tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	appctx "gamestore/internal/core/context"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/domain/auth"
	"gamestore/internal/infrastructure/storage/memory"
	"gamestore/internal/infrastructure/storage/postgres"
	"gamestore/internal/infrastructure/storage/postgres/catalog_repo"
	"gamestore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalw("failed to migrate database", "error", err)
	}
	txManager := postgres.NewTxManager(pool, postgres.DefaultTxOptions())

	data := memory.Demo()
	if err := seedReference(ctx, txManager, data); err != nil {
		log.Fatalw("failed to seed reference data", "error", err)
	}
	log.Infow("reference data seeded",
		"branches", len(data.Branches),
		"suppliers", len(data.Suppliers),
		"products", len(data.Products),
	)

	n, err := seedOpeningBalances(ctx, txManager, data)
	if err != nil {
		log.Fatalw("failed to seed opening balances", "error", err)
	}
	if n == 0 {
		log.Info("inventory already present, opening balances skipped")
	} else {
		log.Infow("opening balances seeded", "records", n)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		printTokens(secret)
	}

	log.Info("seeding completed successfully")
}

func seedReference(ctx context.Context, txManager *postgres.TxManager, data memory.DemoData) error {
	repo := catalog_repo.NewRepo(txManager)
	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, b := range data.Branches {
			if err := repo.SaveBranch(ctx, b); err != nil {
				return err
			}
		}
		for _, s := range data.Suppliers {
			if err := repo.SaveSupplier(ctx, s); err != nil {
				return err
			}
		}
		for _, p := range data.Products {
			if err := repo.SaveProduct(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// seedOpeningBalances copies opening stock and its change log in one
// transaction. An already stocked database is left alone.
func seedOpeningBalances(ctx context.Context, txManager *postgres.TxManager, data memory.DemoData) (int64, error) {
	inserter := postgres.NewBatchInserter(txManager)
	var copied int64

	err := txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var existing int
		if err := txManager.GetQuerier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM inventory`).Scan(&existing); err != nil {
			return fmt.Errorf("count inventory: %w", err)
		}
		if existing > 0 {
			return nil
		}

		now := time.Now().UTC()
		actor := entity.SystemActor().ID()
		keys := make([]entity.StockKey, 0, len(data.Stock))
		for k := range data.Stock {
			keys = append(keys, k)
		}

		records := make([][]any, 0, len(keys))
		changes := make([][]any, 0, len(keys))
		for _, k := range entity.SortedKeys(keys) {
			qty := data.Stock[k]
			records = append(records, []any{k.ProductID, k.BranchID, qty, entity.DefaultStockAlertLevel, now})
			changes = append(changes, []any{id.New(), k.ProductID, k.BranchID, 0, qty, string(entity.ReasonOpeningBalance), "", actor, now})
		}

		n, err := inserter.CopyFromSlice(ctx, "inventory",
			[]string{"product_id", "branch_id", "quantity", "stock_alert_level", "last_update"}, records)
		if err != nil {
			return err
		}
		if _, err := inserter.CopyFromSlice(ctx, "stock_changes",
			[]string{"id", "product_id", "branch_id", "old_quantity", "new_quantity", "reason", "reference", "actor_id", "changed_at"}, changes); err != nil {
			return err
		}
		copied = n
		return nil
	})
	return copied, err
}

func printTokens(secret string) {
	cfg := auth.DefaultJWTConfig(secret)
	cfg.AccessTokenTTL = 24 * time.Hour
	svc := auth.NewJWTService(cfg)

	users := []appctx.UserContext{
		{UserID: "admin", Email: "admin@gamestore.local", Roles: []string{appctx.RoleAdmin}},
		{UserID: "customer-1", CustomerID: 1, Email: "player1@gamestore.local", Roles: []string{appctx.RoleCustomer}},
	}
	for _, u := range users {
		token, expires, err := svc.GenerateAccessToken(u)
		if err != nil {
			logger.Error(context.Background(), "failed to sign token", "user", u.UserID, "error", err)
			continue
		}
		fmt.Printf("%s (expires %s)\n%s\n\n", u.Email, expires.Format(time.RFC3339), token)
	}
}
