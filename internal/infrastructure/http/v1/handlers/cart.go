package handlers

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/cart"
	"gamestore/internal/infrastructure/http/v1/dto"
)

// CartHandler handles the caller's own cart.
type CartHandler struct {
	*BaseHandler
	service *cart.Service
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(base *BaseHandler, service *cart.Service) *CartHandler {
	return &CartHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts customer endpoints.
func (h *CartHandler) RegisterRoutes(customer *gin.RouterGroup) {
	customer.GET("/cart", h.Get)
	customer.DELETE("/cart", h.Clear)
	customer.POST("/cart/items", h.Add)
	customer.PUT("/cart/items/:productId", h.SetQuantity)
	customer.DELETE("/cart/items/:productId", h.Remove)
	customer.POST("/cart/checkout", h.Checkout)
}

func (h *CartHandler) customer(c *gin.Context) (entity.Actor, bool) {
	actor, ok := h.Actor(c)
	if !ok {
		return actor, false
	}
	if actor.CustomerID == 0 {
		h.Error(c, apperror.NewForbidden("cart requires a customer account"))
		return actor, false
	}
	return actor, true
}

// respond sends the cart as it is after a change.
func (h *CartHandler) respond(c *gin.Context, actor entity.Actor) {
	current, err := h.service.Get(c.Request.Context(), actor, actor.CustomerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, current)
}

// Get handles GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	h.respond(c, actor)
}

// Add handles POST /cart/items
func (h *CartHandler) Add(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	var req dto.AddCartItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if _, err := h.service.Add(c.Request.Context(), actor, actor.CustomerID, req.ProductID, req.Units()); err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, actor)
}

// SetQuantity handles PUT /cart/items/:productId
func (h *CartHandler) SetQuantity(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	productID, ok := h.ParseInt64(c, "productId")
	if !ok {
		return
	}
	var req dto.SetCartItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if _, err := h.service.SetQuantity(c.Request.Context(), actor, actor.CustomerID, productID, *req.Quantity); err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, actor)
}

// Remove handles DELETE /cart/items/:productId
func (h *CartHandler) Remove(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	productID, ok := h.ParseInt64(c, "productId")
	if !ok {
		return
	}

	if err := h.service.Remove(c.Request.Context(), actor, actor.CustomerID, productID); err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, actor)
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	if err := h.service.Clear(c.Request.Context(), actor, actor.CustomerID); err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, actor)
}

// Checkout handles POST /cart/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	actor, ok := h.customer(c)
	if !ok {
		return
	}
	var req dto.CheckoutCartRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.Checkout(c.Request.Context(), actor, req.ToInput(actor.CustomerID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}
