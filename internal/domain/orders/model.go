// Package orders provides the order fulfillment engine: checkout against the
// inventory ledger and the order status state machine.
package orders

import (
	"encoding/json"
	"slices"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/id"
	"gamestore/internal/core/types"
)

// Status of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperror.NewValidation("unknown order status").WithDetail("status", s)
}

// CanTransitionTo reports whether next is reachable in one step.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// HoldsStock reports whether the order's goods are still at the fulfilling
// branches, so a cancellation returns them to the pool.
func (s Status) HoldsStock() bool {
	return s == StatusPending || s == StatusProcessing
}

// PaymentStatus is a label; the core never charges.
type PaymentStatus string

const PaymentUnpaid PaymentStatus = "unpaid"

// DefaultPaymentMethod is used when checkout does not name one.
const DefaultPaymentMethod = "credit_card"

// Address is a snapshot copied at checkout.
type Address struct {
	FullAddress string `json:"fullAddress"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode,omitempty"`
}

// Order is a customer order with its lines.
type Order struct {
	ID              id.ID         `db:"id" json:"id"`
	CustomerID      int64         `db:"customer_id" json:"customerId"`
	OrderDate       time.Time     `db:"order_date" json:"orderDate"`
	Status          Status        `db:"status" json:"status"`
	TotalAmount     types.Money   `db:"total_amount" json:"totalAmount"`
	ShippingFee     types.Money   `db:"shipping_fee" json:"shippingFee"`
	PaymentMethod   string        `db:"payment_method" json:"paymentMethod"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"paymentStatus"`
	DeliveryAddress Address       `db:"delivery_address" json:"deliveryAddress"`
	BillingAddress  Address       `db:"billing_address" json:"billingAddress"`
	TrackingNumber  *string       `db:"tracking_number" json:"trackingNumber,omitempty"`
	DeliveredAt     *time.Time    `db:"delivered_at" json:"deliveredAt,omitempty"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
	Items           []OrderItem   `db:"-" json:"items"`
}

// OrderItem is one order line. BranchID is the branch whose stock fulfilled it.
type OrderItem struct {
	OrderID      id.ID       `db:"order_id" json:"orderId"`
	LineNo       int         `db:"line_no" json:"lineNo"`
	ProductID    int64       `db:"product_id" json:"productId"`
	BranchID     int64       `db:"branch_id" json:"branchId"`
	Quantity     int         `db:"quantity" json:"quantity"`
	UnitPrice    types.Money `db:"unit_price" json:"unitPrice"`
	ReturnStatus string      `db:"return_status" json:"returnStatus,omitempty"`
}

// ItemReturnCompleted is the return_status of a line whose return was
// refunded and restocked.
const ItemReturnCompleted = "completed"

// Amount returns unit price × quantity.
func (i OrderItem) Amount() types.Money {
	return types.LineAmount(i.UnitPrice, i.Quantity)
}

// Item returns the line with the given number.
func (o *Order) Item(lineNo int) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.LineNo == lineNo {
			return it, true
		}
	}
	return OrderItem{}, false
}

// FullyReturned reports whether every line has a completed return. The
// status stays delivered; this is derived from the lines.
func (o *Order) FullyReturned() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.ReturnStatus != ItemReturnCompleted {
			return false
		}
	}
	return true
}

// MarshalJSON adds the derived fullyReturned flag.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		FullyReturned bool `json:"fullyReturned"`
	}{plain(o), o.FullyReturned()})
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.TrackingNumber != nil {
		tn := *o.TrackingNumber
		c.TrackingNumber = &tn
	}
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		c.DeliveredAt = &at
	}
	return &c
}

// StatusChangedPayload is the payload of events.TypeOrderStatusChanged.
type StatusChangedPayload struct {
	OrderID    id.ID  `json:"orderId"`
	CustomerID int64  `json:"customerId"`
	From       Status `json:"from"`
	To         Status `json:"to"`
}

// PlacedPayload is the payload of events.TypeOrderPlaced.
type PlacedPayload struct {
	OrderID     id.ID       `json:"orderId"`
	CustomerID  int64       `json:"customerId"`
	TotalAmount types.Money `json:"totalAmount"`
	Lines       int         `json:"lines"`
}
