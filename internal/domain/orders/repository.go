package orders

import (
	"context"

	"gamestore/internal/core/id"
)

// Repository defines persistence of orders and their lines.
type Repository interface {
	// Create inserts the order and all its items.
	Create(ctx context.Context, order *Order) error

	// GetByID returns the order with items or apperror NotFound.
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	// UpdateStatus persists status, tracking number, delivered_at and updated_at.
	UpdateStatus(ctx context.Context, order *Order) error

	// SetItemReturnStatus sets return_status of the given lines.
	SetItemReturnStatus(ctx context.Context, orderID id.ID, lineNos []int, status string) error

	// List returns orders newest first, without items.
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
}

// ListFilter for listing orders.
type ListFilter struct {
	CustomerID *int64
	Status     *Status
	Limit      int
	Offset     int
}
