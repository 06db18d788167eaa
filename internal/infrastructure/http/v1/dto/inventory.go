package dto

import (
	"gamestore/internal/core/types"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/restock"
	"gamestore/internal/domain/transfer"
)

// RestockRequest records a supplier delivery.
type RestockRequest struct {
	ProductID  int64       `json:"productId" binding:"required"`
	BranchID   int64       `json:"branchId" binding:"required"`
	SupplierID int64       `json:"supplierId" binding:"required"`
	Quantity   int         `json:"quantity"`
	UnitCost   types.Money `json:"unitCost"`
}

// ToInput converts the request.
func (r RestockRequest) ToInput() restock.Input {
	return restock.Input{
		ProductID:  r.ProductID,
		BranchID:   r.BranchID,
		SupplierID: r.SupplierID,
		Quantity:   r.Quantity,
		UnitCost:   r.UnitCost,
	}
}

// TransferRequest moves stock between branches.
type TransferRequest struct {
	ProductID    int64 `json:"productId" binding:"required"`
	FromBranchID int64 `json:"fromBranchId" binding:"required"`
	ToBranchID   int64 `json:"toBranchId" binding:"required"`
	Quantity     int   `json:"quantity"`
}

// ToInput converts the request.
func (r TransferRequest) ToInput() transfer.Input {
	return transfer.Input{
		ProductID:    r.ProductID,
		FromBranchID: r.FromBranchID,
		ToBranchID:   r.ToBranchID,
		Quantity:     r.Quantity,
	}
}

// OfflineSaleRequest records an in-store sale.
type OfflineSaleRequest struct {
	BranchID  int64 `json:"branchId" binding:"required"`
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// ToInput converts the request.
func (r OfflineSaleRequest) ToInput() offlinesale.Input {
	return offlinesale.Input{BranchID: r.BranchID, ProductID: r.ProductID, Quantity: r.Quantity}
}

// SetQuantityRequest overwrites the quantity of one record.
type SetQuantityRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	BranchID  int64 `json:"branchId" binding:"required"`
	Quantity  *int  `json:"quantity" binding:"required"`
}

// SetAlertLevelRequest changes the low-stock threshold of one record.
type SetAlertLevelRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	BranchID  int64 `json:"branchId" binding:"required"`
	Level     *int  `json:"stockAlertLevel" binding:"required"`
}

// InventoryQuery filters the inventory listing.
type InventoryQuery struct {
	PaginationRequest
	BranchID  *int64 `form:"branchId"`
	ProductID *int64 `form:"productId"`
	LowStock  bool   `form:"lowStock"`
}

// StockChangeQuery filters the stock change listing.
type StockChangeQuery struct {
	PaginationRequest
	BranchID  *int64 `form:"branchId"`
	ProductID *int64 `form:"productId"`
	Reason    string `form:"reason"`
	Reference string `form:"reference"`
}

// ReconcileQuery names one inventory record.
type ReconcileQuery struct {
	ProductID int64 `form:"productId" binding:"required"`
	BranchID  int64 `form:"branchId" binding:"required"`
}

// RecordQuery filters purchase and sale listings.
type RecordQuery struct {
	PaginationRequest
	BranchID   *int64 `form:"branchId"`
	ProductID  *int64 `form:"productId"`
	SupplierID *int64 `form:"supplierId"`
}
