package dto

import (
	"gamestore/internal/domain/cart"
)

// AddCartItemRequest puts units of a product into the cart. Quantity
// defaults to 1.
type AddCartItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  *int  `json:"quantity"`
}

// Units returns the requested quantity or 1.
func (r AddCartItemRequest) Units() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// SetCartItemRequest replaces the quantity of a cart line. Zero removes it.
type SetCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// CheckoutCartRequest places an order for the whole cart.
type CheckoutCartRequest struct {
	DeliveryAddress AddressRequest  `json:"deliveryAddress" binding:"required"`
	BillingAddress  *AddressRequest `json:"billingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
}

// ToInput converts the request for the given customer. Without a billing
// address the delivery address is used.
func (r CheckoutCartRequest) ToInput(customerID int64) cart.CheckoutInput {
	in := cart.CheckoutInput{
		CustomerID:      customerID,
		DeliveryAddress: r.DeliveryAddress.toDomain(),
		BillingAddress:  r.DeliveryAddress.toDomain(),
		PaymentMethod:   r.PaymentMethod,
	}
	if r.BillingAddress != nil {
		in.BillingAddress = r.BillingAddress.toDomain()
	}
	return in
}
