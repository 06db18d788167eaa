// Package entity provides core domain entities shared by the domain services.
package entity

import (
	"cmp"
	"slices"
	"time"

	"gamestore/internal/core/id"
)

// DefaultStockAlertLevel is applied to records created by their first stock event.
const DefaultStockAlertLevel = 10

// StockKey identifies one inventory row. Keys order by product, then branch;
// every multi-row lock is acquired in that order.
type StockKey struct {
	ProductID int64 `json:"productId"`
	BranchID  int64 `json:"branchId"`
}

// Compare orders keys ascending by (ProductID, BranchID).
func (k StockKey) Compare(other StockKey) int {
	if c := cmp.Compare(k.ProductID, other.ProductID); c != 0 {
		return c
	}
	return cmp.Compare(k.BranchID, other.BranchID)
}

// SortedKeys returns the distinct keys in lock order.
func SortedKeys(keys []StockKey) []StockKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, StockKey.Compare)
	return slices.Compact(out)
}

// InventoryRecord is the stock level of a product at a branch.
type InventoryRecord struct {
	ProductID       int64     `db:"product_id" json:"productId"`
	BranchID        int64     `db:"branch_id" json:"branchId"`
	Quantity        int       `db:"quantity" json:"quantity"`
	StockAlertLevel int       `db:"stock_alert_level" json:"stockAlertLevel"`
	LastUpdate      time.Time `db:"last_update" json:"lastUpdate"`
}

// NewInventoryRecord returns the empty record a key starts from.
func NewInventoryRecord(key StockKey) InventoryRecord {
	return InventoryRecord{
		ProductID:       key.ProductID,
		BranchID:        key.BranchID,
		StockAlertLevel: DefaultStockAlertLevel,
	}
}

// Key returns the record key.
func (r InventoryRecord) Key() StockKey {
	return StockKey{ProductID: r.ProductID, BranchID: r.BranchID}
}

// LowStock is derived, never stored.
func (r InventoryRecord) LowStock() bool {
	return r.Quantity <= r.StockAlertLevel
}

// ChangeReason names the operation behind a stock change.
type ChangeReason string

const (
	ReasonRestock        ChangeReason = "restock"
	ReasonOrder          ChangeReason = "order"
	ReasonOrderCancel    ChangeReason = "order_cancel"
	ReasonTransferOut    ChangeReason = "transfer_out"
	ReasonTransferIn     ChangeReason = "transfer_in"
	ReasonOfflineSale    ChangeReason = "offline_sale"
	ReasonReturn         ChangeReason = "return"
	ReasonCorrection     ChangeReason = "correction"
	ReasonOpeningBalance ChangeReason = "opening_balance"
)

// Valid reports whether the reason is one of the known values.
func (r ChangeReason) Valid() bool {
	switch r {
	case ReasonRestock, ReasonOrder, ReasonOrderCancel, ReasonTransferOut, ReasonTransferIn,
		ReasonOfflineSale, ReasonReturn, ReasonCorrection, ReasonOpeningBalance:
		return true
	}
	return false
}

// StockChange is one append-only entry of the stock change log.
type StockChange struct {
	ID          id.ID        `db:"id" json:"id"`
	Seq         int64        `db:"seq" json:"seq"`
	ProductID   int64        `db:"product_id" json:"productId"`
	BranchID    int64        `db:"branch_id" json:"branchId"`
	OldQuantity int          `db:"old_quantity" json:"oldQuantity"`
	NewQuantity int          `db:"new_quantity" json:"newQuantity"`
	Reason      ChangeReason `db:"reason" json:"reason"`
	Reference   string       `db:"reference" json:"reference,omitempty"`
	ActorID     string       `db:"actor_id" json:"actorId"`
	ChangedAt   time.Time    `db:"changed_at" json:"changedAt"`
}

// Delta returns the signed quantity change.
func (c StockChange) Delta() int {
	return c.NewQuantity - c.OldQuantity
}

// Key returns the inventory key the change applies to.
func (c StockChange) Key() StockKey {
	return StockKey{ProductID: c.ProductID, BranchID: c.BranchID}
}
