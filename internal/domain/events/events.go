// Package events defines the domain events the core emits and the publisher
// boundary that stores them (transactional outbox in production).
package events

import "context"

// Event types
const (
	TypeOrderPlaced         = "OrderPlaced"
	TypeOrderStatusChanged  = "OrderStatusChanged"
	TypeReturnStatusChanged = "ReturnStatusChanged"
	TypeStockLow            = "StockLow"
)

// Aggregate types
const (
	AggregateOrder     = "order"
	AggregateReturn    = "return"
	AggregateInventory = "inventory"
)

// Event is published inside the transaction that caused it, so it is stored
// if and only if that transaction commits.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// Publisher stores events for later delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
