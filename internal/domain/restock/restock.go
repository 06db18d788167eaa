// Package restock records supplier purchases and adds the purchased units to
// the ledger.
package restock

import (
	"context"
	"fmt"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/ledger"
	"gamestore/pkg/logger"
)

// PaymentPending is the supplier payment state of a new purchase.
const PaymentPending = "pending"

// Purchase is a recorded supplier delivery. Cost is kept for margin
// reporting and never affects stock math.
type Purchase struct {
	ID            id.ID       `db:"id" json:"id"`
	SupplierID    int64       `db:"supplier_id" json:"supplierId"`
	ProductID     int64       `db:"product_id" json:"productId"`
	BranchID      int64       `db:"branch_id" json:"branchId"`
	Quantity      int         `db:"quantity" json:"quantity"`
	UnitCost      types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost     types.Money `db:"total_cost" json:"totalCost"`
	PaymentStatus string      `db:"payment_status" json:"paymentStatus"`
	ActorID       string      `db:"actor_id" json:"actorId"`
	PurchasedAt   time.Time   `db:"purchased_at" json:"purchasedAt"`
}

// Repository persists purchases.
type Repository interface {
	CreatePurchase(ctx context.Context, p *Purchase) error
	ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error)
}

// ListFilter for listing purchases.
type ListFilter struct {
	SupplierID *int64
	ProductID  *int64
	BranchID   *int64
	Limit      int
	Offset     int
}

// Input is a restock submission.
type Input struct {
	ProductID  int64
	BranchID   int64
	SupplierID int64
	Quantity   int
	UnitCost   types.Money
}

// Service records restocks.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   *catalog.Service
	txManager tx.Manager
	retry     tx.RetryPolicy
	now       func() time.Time
}

// NewService creates a new restock service.
func NewService(repo Repository, ledgerService *ledger.Service, catalogService *catalog.Service, txManager tx.Manager, retry tx.RetryPolicy) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerService,
		catalog:   catalogService,
		txManager: txManager,
		retry:     retry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Restock records a purchase and increases stock at the branch. Once the
// input is valid it cannot fail for lack of stock.
func (s *Service) Restock(ctx context.Context, actor entity.Actor, in Input) (entity.StockChange, error) {
	if in.Quantity <= 0 {
		return entity.StockChange{}, apperror.NewInvalidQuantity("quantity", in.Quantity)
	}
	if in.UnitCost.IsNegative() {
		return entity.StockChange{}, apperror.NewValidation("unit cost must not be negative").
			WithDetail("field", "unitCost").
			WithDetail("value", in.UnitCost.String())
	}
	if _, err := s.catalog.ActiveSupplier(ctx, in.SupplierID); err != nil {
		return entity.StockChange{}, err
	}
	if err := s.catalog.RequireBranches(ctx, in.BranchID); err != nil {
		return entity.StockChange{}, err
	}
	if _, err := s.catalog.Product(ctx, in.ProductID); err != nil {
		return entity.StockChange{}, err
	}

	var change entity.StockChange
	var purchase *Purchase
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		purchase = &Purchase{
			ID:            id.New(),
			SupplierID:    in.SupplierID,
			ProductID:     in.ProductID,
			BranchID:      in.BranchID,
			Quantity:      in.Quantity,
			UnitCost:      in.UnitCost,
			TotalCost:     types.LineAmount(in.UnitCost, in.Quantity),
			PaymentStatus: PaymentPending,
			ActorID:       actor.ID(),
			PurchasedAt:   s.now(),
		}
		if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}

		var err error
		change, err = s.ledger.Adjust(ctx, actor, ledger.Adjustment{
			ProductID: in.ProductID,
			BranchID:  in.BranchID,
			Delta:     in.Quantity,
			Reason:    entity.ReasonRestock,
			Reference: purchase.ID.String(),
		})
		return err
	})
	if err != nil {
		return entity.StockChange{}, err
	}

	logger.Info(ctx, "restock recorded",
		"purchase_id", purchase.ID,
		"supplier_id", in.SupplierID,
		"product_id", in.ProductID,
		"branch_id", in.BranchID,
		"quantity", in.Quantity,
		"total_cost", purchase.TotalCost.String(),
	)
	return change, nil
}

// ListPurchases returns purchases newest first.
func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListPurchases(ctx, filter)
}
