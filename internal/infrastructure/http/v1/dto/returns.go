package dto

import (
	"gamestore/internal/core/apperror"
	"gamestore/internal/core/id"
	"gamestore/internal/domain/returns"
)

// CreateReturnRequest asks to return a whole order or one of its lines.
type CreateReturnRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	LineNo  *int   `json:"lineNo"`
	Reason  string `json:"reason"`
}

// ToInput converts the request.
func (r CreateReturnRequest) ToInput() (returns.RequestInput, error) {
	orderID, err := id.Parse(r.OrderID)
	if err != nil {
		return returns.RequestInput{}, apperror.NewValidation("invalid orderId format").WithDetail("orderId", r.OrderID)
	}
	return returns.RequestInput{OrderID: orderID, LineNo: r.LineNo, Reason: r.Reason}, nil
}

// ReturnListQuery filters the admin return listing.
type ReturnListQuery struct {
	PaginationRequest
	OrderID    string `form:"orderId"`
	CustomerID *int64 `form:"customerId"`
	Status     string `form:"status"`
}
