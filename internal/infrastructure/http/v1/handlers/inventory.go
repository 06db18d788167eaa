package handlers

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/restock"
	"gamestore/internal/domain/transfer"
	"gamestore/internal/infrastructure/http/v1/dto"
)

// InventoryHandler exposes the ledger and the stock-moving operations to
// store staff.
type InventoryHandler struct {
	*BaseHandler
	ledger      *ledger.Service
	restock     *restock.Service
	transfer    *transfer.Service
	offlineSale *offlinesale.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(
	base *BaseHandler,
	ledgerService *ledger.Service,
	restockService *restock.Service,
	transferService *transfer.Service,
	offlineSaleService *offlinesale.Service,
) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		ledger:      ledgerService,
		restock:     restockService,
		transfer:    transferService,
		offlineSale: offlineSaleService,
	}
}

// RegisterRoutes mounts the admin inventory endpoints.
func (h *InventoryHandler) RegisterRoutes(admin *gin.RouterGroup) {
	inv := admin.Group("/inventory")
	inv.GET("", h.List)
	inv.GET("/changes", h.ListChanges)
	inv.GET("/reconcile", h.Reconcile)
	inv.POST("/restock", h.Restock)
	inv.POST("/transfer", h.Transfer)
	inv.POST("/offline-sales", h.RecordSale)
	inv.PUT("/quantity", h.SetQuantity)
	inv.PUT("/alert-level", h.SetAlertLevel)
}

// List handles GET /admin/inventory
func (h *InventoryHandler) List(c *gin.Context) {
	var q dto.InventoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	records, err := h.ledger.ListRecords(c.Request.Context(), ledger.RecordFilter{
		BranchID:     q.BranchID,
		ProductID:    q.ProductID,
		LowStockOnly: q.LowStock,
		Limit:        q.PageSize,
		Offset:       q.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, records, q.PaginationRequest)
}

// ListChanges handles GET /admin/inventory/changes
func (h *InventoryHandler) ListChanges(c *gin.Context) {
	var q dto.StockChangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(ledger.DefaultChangeLimit)

	filter := ledger.ChangeFilter{
		ProductID: q.ProductID,
		BranchID:  q.BranchID,
		Reference: q.Reference,
		Limit:     q.PageSize,
		Offset:    q.Offset(),
	}
	if q.Reason != "" {
		reason := entity.ChangeReason(q.Reason)
		if !reason.Valid() {
			h.Error(c, apperror.NewValidation("unknown change reason").WithDetail("reason", q.Reason))
			return
		}
		filter.Reason = &reason
	}

	changes, err := h.ledger.ListChanges(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, changes, q.PaginationRequest)
}

// Reconcile handles GET /admin/inventory/reconcile
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	var q dto.ReconcileQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), q.ProductID, q.BranchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Restock handles POST /admin/inventory/restock
func (h *InventoryHandler) Restock(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.RestockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.restock.Restock(c.Request.Context(), actor, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, change)
}

// Transfer handles POST /admin/inventory/transfer
func (h *InventoryHandler) Transfer(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.transfer.Transfer(c.Request.Context(), actor, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// RecordSale handles POST /admin/inventory/offline-sales
func (h *InventoryHandler) RecordSale(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.OfflineSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.offlineSale.RecordSale(c.Request.Context(), actor, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, change)
}

// SetQuantity handles PUT /admin/inventory/quantity
func (h *InventoryHandler) SetQuantity(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.SetQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	change, err := h.ledger.SetQuantity(c.Request.Context(), actor, req.ProductID, req.BranchID, *req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// SetAlertLevel handles PUT /admin/inventory/alert-level
func (h *InventoryHandler) SetAlertLevel(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.SetAlertLevelRequest
	if !h.BindJSON(c, &req) {
		return
	}

	record, err := h.ledger.SetAlertLevel(c.Request.Context(), actor, req.ProductID, req.BranchID, *req.Level)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, record)
}
