// Package transfer moves stock between branches.
package transfer

import (
	"context"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/ledger"
	"gamestore/pkg/logger"
)

// Input is a transfer submission.
type Input struct {
	ProductID    int64
	FromBranchID int64
	ToBranchID   int64
	Quantity     int
}

// Result reports the quantities after the transfer.
type Result struct {
	TransferID   id.ID `json:"transferId"`
	FromQuantity int   `json:"fromQuantity"`
	ToQuantity   int   `json:"toQuantity"`
}

// Service moves stock between branches.
type Service struct {
	ledger  *ledger.Service
	catalog *catalog.Service
}

// NewService creates a new transfer service.
func NewService(ledgerService *ledger.Service, catalogService *catalog.Service) *Service {
	return &Service{ledger: ledgerService, catalog: catalogService}
}

// Transfer takes quantity from one branch and adds it to another. Both legs
// are one ledger batch, so they commit together or not at all.
func (s *Service) Transfer(ctx context.Context, actor entity.Actor, in Input) (Result, error) {
	if in.FromBranchID == in.ToBranchID {
		return Result{}, apperror.NewValidation("source and destination branch must differ").
			WithDetail("branch_id", in.FromBranchID)
	}
	if in.Quantity <= 0 {
		return Result{}, apperror.NewInvalidQuantity("quantity", in.Quantity)
	}
	if err := s.catalog.RequireBranches(ctx, in.FromBranchID, in.ToBranchID); err != nil {
		return Result{}, err
	}
	if _, err := s.catalog.Product(ctx, in.ProductID); err != nil {
		return Result{}, err
	}

	transferID := id.New()
	changes, err := s.ledger.Apply(ctx, actor, []ledger.Adjustment{
		{
			ProductID: in.ProductID,
			BranchID:  in.FromBranchID,
			Delta:     -in.Quantity,
			Reason:    entity.ReasonTransferOut,
			Reference: transferID.String(),
		},
		{
			ProductID: in.ProductID,
			BranchID:  in.ToBranchID,
			Delta:     in.Quantity,
			Reason:    entity.ReasonTransferIn,
			Reference: transferID.String(),
		},
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TransferID:   transferID,
		FromQuantity: changes[0].NewQuantity,
		ToQuantity:   changes[1].NewQuantity,
	}
	logger.Info(ctx, "stock transferred",
		"transfer_id", transferID,
		"product_id", in.ProductID,
		"from_branch_id", in.FromBranchID,
		"to_branch_id", in.ToBranchID,
		"quantity", in.Quantity,
	)
	return res, nil
}
