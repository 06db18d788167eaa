package memory

import (
	"context"
	"slices"

	"gamestore/internal/domain/audit"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/restock"
)

// PurchaseRepo implements restock.Repository.
type PurchaseRepo struct {
	s *Store
}

var _ restock.Repository = (*PurchaseRepo)(nil)

func (r *PurchaseRepo) CreatePurchase(ctx context.Context, p *restock.Purchase) error {
	stored := *p
	r.s.write(ctx, func() {
		r.s.purchases = append(r.s.purchases, stored)
	})
	return nil
}

func (r *PurchaseRepo) ListPurchases(_ context.Context, filter restock.ListFilter) ([]restock.Purchase, error) {
	r.s.mu.RLock()
	var out []restock.Purchase
	for _, p := range slices.Backward(r.s.purchases) {
		if filter.SupplierID != nil && p.SupplierID != *filter.SupplierID {
			continue
		}
		if filter.ProductID != nil && p.ProductID != *filter.ProductID {
			continue
		}
		if filter.BranchID != nil && p.BranchID != *filter.BranchID {
			continue
		}
		out = append(out, p)
	}
	r.s.mu.RUnlock()
	return page(out, filter.Limit, filter.Offset), nil
}

// SaleRepo implements offlinesale.Repository.
type SaleRepo struct {
	s *Store
}

var _ offlinesale.Repository = (*SaleRepo)(nil)

func (r *SaleRepo) CreateSale(ctx context.Context, sale *offlinesale.Sale) error {
	stored := *sale
	r.s.write(ctx, func() {
		r.s.sales = append(r.s.sales, stored)
	})
	return nil
}

func (r *SaleRepo) ListSales(_ context.Context, filter offlinesale.ListFilter) ([]offlinesale.Sale, error) {
	r.s.mu.RLock()
	var out []offlinesale.Sale
	for _, sale := range slices.Backward(r.s.sales) {
		if filter.BranchID != nil && sale.BranchID != *filter.BranchID {
			continue
		}
		if filter.ProductID != nil && sale.ProductID != *filter.ProductID {
			continue
		}
		out = append(out, sale)
	}
	r.s.mu.RUnlock()
	return page(out, filter.Limit, filter.Offset), nil
}

// EventLog implements events.Publisher by keeping committed events.
type EventLog struct {
	s *Store
}

var _ events.Publisher = (*EventLog)(nil)

func (l *EventLog) Publish(ctx context.Context, event events.Event) error {
	l.s.write(ctx, func() {
		l.s.events = append(l.s.events, event)
	})
	return nil
}

// All returns the committed events in publish order.
func (l *EventLog) All() []events.Event {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return slices.Clone(l.s.events)
}

// AuditLog implements audit.Recorder.
type AuditLog struct {
	s *Store
}

var _ audit.Recorder = (*AuditLog)(nil)

func (l *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	l.s.write(ctx, func() {
		l.s.audit = append(l.s.audit, entry)
	})
	return nil
}

// All returns the committed entries in order.
func (l *AuditLog) All() []audit.Entry {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return slices.Clone(l.s.audit)
}
