package handlers

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	"gamestore/internal/domain/orders"
	"gamestore/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles checkout and the order lifecycle.
type OrderHandler struct {
	*BaseHandler
	service *orders.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, service *orders.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts customer and admin endpoints.
func (h *OrderHandler) RegisterRoutes(customer, admin *gin.RouterGroup) {
	customer.POST("/orders", h.Create)
	customer.GET("/orders", h.ListMine)
	customer.GET("/orders/:id", h.Get)
	customer.POST("/orders/:id/received", h.ConfirmReceived)

	admin.GET("/orders", h.List)
	admin.PUT("/orders/:id/status", h.SetStatus)
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	if actor.CustomerID == 0 {
		h.Error(c, apperror.NewForbidden("checkout requires a customer account"))
		return
	}

	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), actor, req.ToInput(actor.CustomerID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// ListMine handles GET /orders
func (h *OrderHandler) ListMine(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.PaginationRequest
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	customerID := actor.CustomerID
	list, err := h.service.List(c.Request.Context(), orders.ListFilter{
		CustomerID: &customerID,
		Limit:      q.PageSize,
		Offset:     q.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, list, q)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetForActor(c.Request.Context(), actor, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// ConfirmReceived handles POST /orders/:id/received
func (h *OrderHandler) ConfirmReceived(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.ConfirmReceived(c.Request.Context(), actor, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// List handles GET /admin/orders
func (h *OrderHandler) List(c *gin.Context) {
	var q dto.OrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	filter := orders.ListFilter{
		CustomerID: q.CustomerID,
		Limit:      q.PageSize,
		Offset:     q.Offset(),
	}
	if q.Status != "" {
		status, err := orders.ParseStatus(q.Status)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Status = &status
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, list, q.PaginationRequest)
}

// SetStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) SetStatus(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	next, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.service.SetStatus(c.Request.Context(), actor, orderID, next)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}
