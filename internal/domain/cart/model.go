// Package cart keeps each customer's shopping cart and turns it into an
// order. The cart holds no stock: quantities are checked only at checkout.
package cart

import (
	"time"

	"gamestore/internal/core/types"
)

// Item is one product in a customer's cart.
type Item struct {
	CustomerID int64     `db:"customer_id" json:"customerId"`
	ProductID  int64     `db:"product_id" json:"productId"`
	Quantity   int       `db:"quantity" json:"quantity"`
	AddedAt    time.Time `db:"added_at" json:"addedAt"`
}

// Line is an item priced at the current catalog price.
type Line struct {
	ProductID int64       `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unitPrice"`
	Amount    types.Money `json:"amount"`
	AddedAt   time.Time   `json:"addedAt"`
}

// Cart is the priced view of a customer's items, oldest first.
type Cart struct {
	CustomerID int64       `json:"customerId"`
	Lines      []Line      `json:"lines"`
	Subtotal   types.Money `json:"subtotal"`
}
