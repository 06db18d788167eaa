package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"gamestore/internal/core/id"
	"gamestore/internal/domain/returns"
	"gamestore/internal/infrastructure/storage/postgres"
)

const returnRequestsTable = "return_requests"

var _ returns.Repository = (*ReturnRepo)(nil)

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	*BaseDocumentRepo[returns.ReturnRequest]
}

// NewReturnRepo creates a new return request repository.
func NewReturnRepo(txManager *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[returns.ReturnRequest](txManager, returnRequestsTable, "return"),
	}
}

func (r *ReturnRepo) Create(ctx context.Context, req *returns.ReturnRequest) error {
	return r.Insert(ctx, req)
}

func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.ReturnRequest, error) {
	return r.Get(ctx, returnID, false)
}

func (r *ReturnRepo) GetForUpdate(ctx context.Context, returnID id.ID) (*returns.ReturnRequest, error) {
	return r.Get(ctx, returnID, true)
}

func (r *ReturnRepo) UpdateStatus(ctx context.Context, req *returns.ReturnRequest) error {
	return r.Exec(ctx, r.Builder().Update(returnRequestsTable).
		Set("status", req.Status).
		Set("refund_date", req.RefundDate).
		Set("updated_at", req.UpdatedAt).
		Where(squirrel.Eq{"id": req.ID}), req.ID)
}

func (r *ReturnRepo) List(ctx context.Context, filter returns.ListFilter) ([]*returns.ReturnRequest, error) {
	q := r.baseSelect()
	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	rows, err := r.Select(ctx, paginate(q.OrderBy("id DESC"), filter.Limit, filter.Offset))
	if err != nil {
		return nil, err
	}

	out := make([]*returns.ReturnRequest, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
