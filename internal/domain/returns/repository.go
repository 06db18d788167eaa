package returns

import (
	"context"

	"gamestore/internal/core/id"
)

// Repository defines persistence of return requests.
type Repository interface {
	Create(ctx context.Context, req *ReturnRequest) error

	// GetByID returns apperror NotFound for unknown ids.
	GetByID(ctx context.Context, returnID id.ID) (*ReturnRequest, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, returnID id.ID) (*ReturnRequest, error)

	// UpdateStatus persists status, refund_date and updated_at.
	UpdateStatus(ctx context.Context, req *ReturnRequest) error

	// List returns requests newest first.
	List(ctx context.Context, filter ListFilter) ([]*ReturnRequest, error)
}

// ListFilter for listing return requests.
type ListFilter struct {
	OrderID    *id.ID
	CustomerID *int64
	Status     *Status
	Limit      int
	Offset     int
}
