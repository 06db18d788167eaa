// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the implementations live in
// infrastructure/storage (postgres and memory).
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Snapshotter is implemented by managers that can run several reads against
// one consistent view of committed data.
type Snapshotter interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadSnapshot runs fn against a consistent view when m supports it and in a
// plain transaction otherwise.
func ReadSnapshot(ctx context.Context, m Manager, fn func(ctx context.Context) error) error {
	if s, ok := m.(Snapshotter); ok {
		return s.ReadSnapshot(ctx, fn)
	}
	return m.RunInTransaction(ctx, fn)
}
