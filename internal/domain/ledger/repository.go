// Package ledger provides the inventory ledger: the authoritative quantity of
// every product at every branch and the append-only log of its changes.
package ledger

import (
	"context"

	"gamestore/internal/core/entity"
)

// Repository defines storage operations for inventory records and the stock
// change log. Lock methods must run inside a transaction; the locks are held
// until it ends.
type Repository interface {
	// Locking

	// LockRecords locks the rows of keys in ascending key order and returns
	// them. Keys without a row get a zero-quantity row first.
	LockRecords(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]entity.InventoryRecord, error)

	// LockProducts locks every existing row of the products in ascending key
	// order.
	LockProducts(ctx context.Context, productIDs []int64) ([]entity.InventoryRecord, error)

	// Writes

	// SaveRecord persists quantity, alert level and last update of a locked row.
	SaveRecord(ctx context.Context, rec entity.InventoryRecord) error

	// AppendChange inserts a stock change and assigns its sequence number
	// no later than commit. Sequence numbers follow commit order.
	AppendChange(ctx context.Context, change *entity.StockChange) error

	// Reads (never lock)

	// GetRecord returns apperror NotFound when the key never had a stock event.
	GetRecord(ctx context.Context, key entity.StockKey) (entity.InventoryRecord, error)

	// ListRecords returns records ordered by key.
	ListRecords(ctx context.Context, filter RecordFilter) ([]entity.InventoryRecord, error)

	// ListChanges returns changes newest first.
	ListChanges(ctx context.Context, filter ChangeFilter) ([]entity.StockChange, error)

	// SumChanges returns the total delta logged for a key.
	SumChanges(ctx context.Context, key entity.StockKey) (int, error)
}

// RecordFilter for listing inventory records.
type RecordFilter struct {
	BranchID     *int64
	ProductID    *int64
	LowStockOnly bool
	Limit        int
	Offset       int
}

// ChangeFilter for listing stock changes.
type ChangeFilter struct {
	ProductID *int64
	BranchID  *int64
	Reason    *entity.ChangeReason
	Reference string
	Limit     int
	Offset    int
}
