package handlers

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/restock"
	"gamestore/internal/infrastructure/http/v1/dto"
)

// ReferenceHandler serves branches, suppliers and the purchase and sale
// records.
type ReferenceHandler struct {
	*BaseHandler
	catalog     *catalog.Service
	restock     *restock.Service
	offlineSale *offlinesale.Service
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(base *BaseHandler, catalogService *catalog.Service, restockService *restock.Service, offlineSaleService *offlinesale.Service) *ReferenceHandler {
	return &ReferenceHandler{
		BaseHandler: base,
		catalog:     catalogService,
		restock:     restockService,
		offlineSale: offlineSaleService,
	}
}

// RegisterRoutes mounts the admin endpoints.
func (h *ReferenceHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/branches", h.Branches)
	admin.GET("/suppliers", h.Suppliers)
	admin.GET("/purchases", h.Purchases)
	admin.GET("/sales", h.Sales)
}

// Branches handles GET /admin/branches
func (h *ReferenceHandler) Branches(c *gin.Context) {
	branches, err := h.catalog.Branches(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": branches})
}

// Suppliers handles GET /admin/suppliers
func (h *ReferenceHandler) Suppliers(c *gin.Context) {
	suppliers, err := h.catalog.Suppliers(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": suppliers})
}

// Purchases handles GET /admin/purchases
func (h *ReferenceHandler) Purchases(c *gin.Context) {
	var q dto.RecordQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	purchases, err := h.restock.ListPurchases(c.Request.Context(), restock.ListFilter{
		SupplierID: q.SupplierID,
		ProductID:  q.ProductID,
		BranchID:   q.BranchID,
		Limit:      q.PageSize,
		Offset:     q.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, purchases, q.PaginationRequest)
}

// Sales handles GET /admin/sales
func (h *ReferenceHandler) Sales(c *gin.Context) {
	var q dto.RecordQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	sales, err := h.offlineSale.ListSales(c.Request.Context(), offlinesale.ListFilter{
		BranchID:  q.BranchID,
		ProductID: q.ProductID,
		Limit:     q.PageSize,
		Offset:    q.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, sales, q.PaginationRequest)
}
