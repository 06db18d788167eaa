package dto

import (
	"gamestore/internal/domain/orders"
)

// AddressRequest is a delivery or billing address.
type AddressRequest struct {
	FullAddress string `json:"fullAddress" binding:"required"`
	City        string `json:"city" binding:"required"`
	PostalCode  string `json:"postalCode"`
}

func (a AddressRequest) toDomain() orders.Address {
	return orders.Address{FullAddress: a.FullAddress, City: a.City, PostalCode: a.PostalCode}
}

// OrderLineRequest is one checkout line.
type OrderLineRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest is a checkout submission. Line quantities and the
// empty-cart case are validated by the order engine so their error codes
// reach the client unchanged.
type CreateOrderRequest struct {
	Items           []OrderLineRequest `json:"items" binding:"dive"`
	DeliveryAddress AddressRequest     `json:"deliveryAddress" binding:"required"`
	BillingAddress  *AddressRequest    `json:"billingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
}

// ToInput converts the request for the given customer. Without a billing
// address the delivery address is used.
func (r CreateOrderRequest) ToInput(customerID int64) orders.CreateOrderInput {
	in := orders.CreateOrderInput{
		CustomerID:      customerID,
		Items:           make([]orders.LineInput, len(r.Items)),
		DeliveryAddress: r.DeliveryAddress.toDomain(),
		BillingAddress:  r.DeliveryAddress.toDomain(),
		PaymentMethod:   r.PaymentMethod,
	}
	if r.BillingAddress != nil {
		in.BillingAddress = r.BillingAddress.toDomain()
	}
	for i, l := range r.Items {
		in.Items[i] = orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return in
}

// SetStatusRequest moves an order or a return to a new status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderListQuery filters the admin order listing.
type OrderListQuery struct {
	PaginationRequest
	CustomerID *int64 `form:"customerId"`
	Status     string `form:"status"`
}
