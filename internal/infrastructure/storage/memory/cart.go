package memory

import (
	"cmp"
	"context"
	"slices"

	"gamestore/internal/domain/cart"
)

type cartLock struct{ customerID int64 }

// CartRepo implements cart.Repository.
type CartRepo struct {
	s *Store
}

var _ cart.Repository = (*CartRepo)(nil)

func (r *CartRepo) List(_ context.Context, customerID int64) ([]cart.Item, error) {
	r.s.mu.RLock()
	out := make([]cart.Item, 0, len(r.s.carts[customerID]))
	for _, it := range r.s.carts[customerID] {
		out = append(out, it)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b cart.Item) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out, nil
}

func (r *CartRepo) ListForUpdate(ctx context.Context, customerID int64) ([]cart.Item, error) {
	if err := r.s.lock(ctx, cartLock{customerID}, "cart"); err != nil {
		return nil, err
	}
	return r.List(ctx, customerID)
}

func (r *CartRepo) Save(ctx context.Context, item cart.Item) error {
	r.s.write(ctx, func() {
		items, ok := r.s.carts[item.CustomerID]
		if !ok {
			items = make(map[int64]cart.Item)
			r.s.carts[item.CustomerID] = items
		}
		if existing, ok := items[item.ProductID]; ok {
			item.AddedAt = existing.AddedAt
		}
		items[item.ProductID] = item
	})
	return nil
}

func (r *CartRepo) Delete(ctx context.Context, customerID, productID int64) error {
	r.s.write(ctx, func() {
		delete(r.s.carts[customerID], productID)
	})
	return nil
}

func (r *CartRepo) Clear(ctx context.Context, customerID int64) error {
	r.s.write(ctx, func() {
		delete(r.s.carts, customerID)
	})
	return nil
}
