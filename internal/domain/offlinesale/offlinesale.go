// Package offlinesale records in-store sales that bypass online checkout.
package offlinesale

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

// Sale is a recorded in-store sale priced at the catalog price of the moment.
type Sale struct {
	ID        id.ID       `db:"id" json:"id"`
	BranchID  int64       `db:"branch_id" json:"branchId"`
	ProductID int64       `db:"product_id" json:"productId"`
	Quantity  int         `db:"quantity" json:"quantity"`
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Amount    types.Money `db:"amount" json:"amount"`
	ActorID   string      `db:"actor_id" json:"actorId"`
	SoldAt    time.Time   `db:"sold_at" json:"soldAt"`
}

// Repository persists sales.
type Repository interface {
	CreateSale(ctx context.Context, sale *Sale) error
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// ListFilter for listing sales.
type ListFilter struct {
	BranchID  *int64
	ProductID *int64
	Limit     int
	Offset    int
}

// Input is an offline sale submission.
type Input struct {
	BranchID  int64
	ProductID int64
	Quantity  int
}

// Service records offline sales.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   *catalog.Service
	txManager tx.Manager
	retry     tx.RetryPolicy
	now       func() time.Time
}

// NewService creates a new offline sale service.
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

// RecordSale takes the sold units out of the branch's stock. No order is
// created. A shortfall fails with OutOfStock and changes nothing.
func (s *Service) RecordSale(ctx context.Context, actor entity.Actor, in Input) (entity.StockChange, error) {
	if in.Quantity <= 0 {
		return entity.StockChange{}, apperror.NewInvalidQuantity("quantity", in.Quantity)
	}
	if err := s.catalog.RequireBranches(ctx, in.BranchID); err != nil {
		return entity.StockChange{}, err
	}
	product, err := s.catalog.Product(ctx, in.ProductID)
	if err != nil {
		return entity.StockChange{}, err
	}

	var change entity.StockChange
	var sale *Sale
	err = tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		sale = &Sale{
			ID:        id.New(),
			BranchID:  in.BranchID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: product.Price,
			Amount:    types.LineAmount(product.Price, in.Quantity),
			ActorID:   actor.ID(),
			SoldAt:    s.now(),
		}

		var err error
		change, err = s.ledger.Adjust(ctx, actor, ledger.Adjustment{
			ProductID: in.ProductID,
			BranchID:  in.BranchID,
			Delta:     -in.Quantity,
			Reason:    entity.ReasonOfflineSale,
			Reference: sale.ID.String(),
		})
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeInsufficientStock {
				avail, _ := appErr.Details["available"].(int)
				return apperror.NewOutOfStock(in.ProductID, in.Quantity, avail).
					WithDetail("branch_id", in.BranchID).
					WithCause(err)
			}
			return err
		}

		if err := s.repo.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return entity.StockChange{}, err
	}

	logger.Info(ctx, "offline sale recorded",
		"sale_id", sale.ID,
		"branch_id", in.BranchID,
		"product_id", in.ProductID,
		"quantity", in.Quantity,
		"amount", sale.Amount.String(),
	)
	return change, nil
}

// ListSales returns sales newest first.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListSales(ctx, filter)
}
