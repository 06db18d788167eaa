package handlers

import (
	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/id"
	"gamestore/internal/domain/returns"
	"gamestore/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles return requests.
type ReturnHandler struct {
	*BaseHandler
	service *returns.Service
}

// NewReturnHandler creates a new return handler.
func NewReturnHandler(base *BaseHandler, service *returns.Service) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts customer and admin endpoints.
func (h *ReturnHandler) RegisterRoutes(customer, admin *gin.RouterGroup) {
	customer.POST("/returns", h.Create)
	customer.GET("/returns/:id", h.Get)

	admin.GET("/returns", h.List)
	admin.PUT("/returns/:id/status", h.SetStatus)
}

// Create handles POST /returns
func (h *ReturnHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.RequestReturn(c.Request.Context(), actor, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ret)
}

// Get handles GET /returns/:id
func (h *ReturnHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.GetForActor(c.Request.Context(), actor, returnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// List handles GET /admin/returns
func (h *ReturnHandler) List(c *gin.Context) {
	var q dto.ReturnListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults(20)

	filter := returns.ListFilter{
		CustomerID: q.CustomerID,
		Limit:      q.PageSize,
		Offset:     q.Offset(),
	}
	if q.OrderID != "" {
		orderID, err := id.Parse(q.OrderID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid orderId format"))
			return
		}
		filter.OrderID = &orderID
	}
	if q.Status != "" {
		status, err := returns.ParseStatus(q.Status)
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

// SetStatus handles PUT /admin/returns/:id/status
func (h *ReturnHandler) SetStatus(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	next, err := returns.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.SetStatus(c.Request.Context(), actor, returnID, next)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}
