package memory

import (
	"context"
	"slices"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/id"
	"gamestore/internal/domain/orders"
	"gamestore/internal/domain/returns"
)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	s *Store
}

var _ orders.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, order *orders.Order) error {
	stored := order.Clone()
	r.s.write(ctx, func() {
		r.s.orders[stored.ID] = stored
	})
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, orderID id.ID) (*orders.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID)
	}
	return o.Clone(), nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	if err := r.s.lock(ctx, orderLock{orderID}, "order"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, orderID)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, order *orders.Order) error {
	updated := order.Clone()
	r.s.write(ctx, func() {
		stored, ok := r.s.orders[updated.ID]
		if !ok {
			return
		}
		stored.Status = updated.Status
		stored.TrackingNumber = updated.TrackingNumber
		stored.DeliveredAt = updated.DeliveredAt
		stored.UpdatedAt = updated.UpdatedAt
	})
	return nil
}

func (r *OrderRepo) SetItemReturnStatus(ctx context.Context, orderID id.ID, lineNos []int, status string) error {
	lines := slices.Clone(lineNos)
	r.s.write(ctx, func() {
		stored, ok := r.s.orders[orderID]
		if !ok {
			return
		}
		for i := range stored.Items {
			if slices.Contains(lines, stored.Items[i].LineNo) {
				stored.Items[i].ReturnStatus = status
			}
		}
	})
	return nil
}

func (r *OrderRepo) List(_ context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	r.s.mu.RLock()
	out := make([]*orders.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		c := o.Clone()
		c.Items = nil
		out = append(out, c)
	}
	r.s.mu.RUnlock()

	// UUIDv7 ids sort by creation time.
	slices.SortFunc(out, func(a, b *orders.Order) int { return -compareIDs(a.ID, b.ID) })
	return page(out, filter.Limit, filter.Offset), nil
}

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	s *Store
}

var _ returns.Repository = (*ReturnRepo)(nil)

func (r *ReturnRepo) Create(ctx context.Context, req *returns.ReturnRequest) error {
	stored := req.Clone()
	r.s.write(ctx, func() {
		r.s.returns[stored.ID] = stored
	})
	return nil
}

func (r *ReturnRepo) GetByID(_ context.Context, returnID id.ID) (*returns.ReturnRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.returns[returnID]
	if !ok {
		return nil, apperror.NewNotFound("return", returnID)
	}
	return req.Clone(), nil
}

func (r *ReturnRepo) GetForUpdate(ctx context.Context, returnID id.ID) (*returns.ReturnRequest, error) {
	if err := r.s.lock(ctx, returnLock{returnID}, "return"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, returnID)
}

func (r *ReturnRepo) UpdateStatus(ctx context.Context, req *returns.ReturnRequest) error {
	updated := req.Clone()
	r.s.write(ctx, func() {
		stored, ok := r.s.returns[updated.ID]
		if !ok {
			return
		}
		stored.Status = updated.Status
		stored.RefundDate = updated.RefundDate
		stored.UpdatedAt = updated.UpdatedAt
	})
	return nil
}

func (r *ReturnRepo) List(_ context.Context, filter returns.ListFilter) ([]*returns.ReturnRequest, error) {
	r.s.mu.RLock()
	out := make([]*returns.ReturnRequest, 0, len(r.s.returns))
	for _, req := range r.s.returns {
		if filter.OrderID != nil && req.OrderID != *filter.OrderID {
			continue
		}
		if filter.CustomerID != nil && req.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, req.Clone())
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *returns.ReturnRequest) int { return -compareIDs(a.ID, b.ID) })
	return page(out, filter.Limit, filter.Offset), nil
}

func compareIDs(a, b id.ID) int {
	return slices.Compare(a[:], b[:])
}
