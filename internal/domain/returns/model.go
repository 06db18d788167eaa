// Package returns provides the return and refund workflow for delivered
// orders.
package returns

import (
	"slices"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/id"
	"gamestore/internal/core/types"
)

// Status of a return request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return st, nil
	}
	return "", apperror.NewValidation("unknown return status").WithDetail("status", s)
}

// CanTransitionTo reports whether next is reachable in one step.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// blocksNewReturn reports whether an item whose return_status is s may not be
// returned again. Rejected items can be requested again.
func blocksNewReturn(s string) bool {
	return s != "" && Status(s) != StatusRejected
}

// ReturnRequest is a request to return a whole order (LineNo nil) or one line.
type ReturnRequest struct {
	ID           id.ID       `db:"id" json:"id"`
	OrderID      id.ID       `db:"order_id" json:"orderId"`
	LineNo       *int        `db:"line_no" json:"lineNo,omitempty"`
	CustomerID   int64       `db:"customer_id" json:"customerId"`
	Reason       string      `db:"reason" json:"reason"`
	Status       Status      `db:"status" json:"status"`
	RefundAmount types.Money `db:"refund_amount" json:"refundAmount"`
	RefundDate   *time.Time  `db:"refund_date" json:"refundDate,omitempty"`
	RequestedAt  time.Time   `db:"requested_at" json:"requestedAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsWholeOrder reports whether the request covers every line of the order.
func (r *ReturnRequest) IsWholeOrder() bool {
	return r.LineNo == nil
}

// Clone returns a deep copy.
func (r *ReturnRequest) Clone() *ReturnRequest {
	c := *r
	if r.LineNo != nil {
		n := *r.LineNo
		c.LineNo = &n
	}
	if r.RefundDate != nil {
		d := *r.RefundDate
		c.RefundDate = &d
	}
	return &c
}

// StatusChangedPayload is the payload of events.TypeReturnStatusChanged.
type StatusChangedPayload struct {
	ReturnID     id.ID       `json:"returnId"`
	OrderID      id.ID       `json:"orderId"`
	From         Status      `json:"from"`
	To           Status      `json:"to"`
	RefundAmount types.Money `json:"refundAmount"`
}
