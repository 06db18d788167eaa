package cart

import "context"

// Repository defines persistence of cart items.
type Repository interface {
	// List returns the customer's items oldest first.
	List(ctx context.Context, customerID int64) ([]Item, error)

	// ListForUpdate is List with the customer's cart locked until the
	// transaction ends.
	ListForUpdate(ctx context.Context, customerID int64) ([]Item, error)

	// Save inserts the item or replaces its quantity, keeping AddedAt of an
	// existing row.
	Save(ctx context.Context, item Item) error

	Delete(ctx context.Context, customerID, productID int64) error

	// Clear removes every item of the customer.
	Clear(ctx context.Context, customerID int64) error
}
