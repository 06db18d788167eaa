package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	appctx "gamestore/internal/core/context"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/infrastructure/http/v1/dto"
	"gamestore/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Actor returns the authenticated caller as passed to the core.
func (h *BaseHandler) Actor(c *gin.Context) (entity.Actor, bool) {
	user := appctx.GetUser(c.Request.Context())
	if user == nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return entity.Actor{}, false
	}
	return user.Actor(), true
}

// ParseID parses a UUID path parameter.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param+" format").WithDetail(param, c.Param(param)))
		return id.ID{}, false
	}
	return parsed, true
}

// ParseInt64 parses an integer path parameter.
func (h *BaseHandler) ParseInt64(c *gin.Context, param string) (int64, bool) {
	parsed, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param+" format").WithDetail(param, c.Param(param)))
		return 0, false
	}
	return parsed, true
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	middleware.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	middleware.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}

// List sends one page of results.
func List[T any](h *BaseHandler, c *gin.Context, items []T, p dto.PaginationRequest) {
	h.OK(c, dto.NewListResponse(items, p))
}
