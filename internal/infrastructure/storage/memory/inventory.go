package memory

import (
	"context"
	"slices"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/ledger"
)

// InventoryRepo implements ledger.Repository.
type InventoryRepo struct {
	s *Store
}

var _ ledger.Repository = (*InventoryRepo)(nil)

func (r *InventoryRepo) LockRecords(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]entity.InventoryRecord, error) {
	st := txFrom(ctx)
	out := make(map[entity.StockKey]entity.InventoryRecord, len(keys))
	for _, key := range entity.SortedKeys(keys) {
		if err := r.s.lock(ctx, key, "inventory"); err != nil {
			return nil, err
		}
		out[key] = r.current(st, key)
	}
	return out, nil
}

func (r *InventoryRepo) LockProducts(ctx context.Context, productIDs []int64) ([]entity.InventoryRecord, error) {
	st := txFrom(ctx)
	wanted := make(map[int64]struct{}, len(productIDs))
	for _, pid := range productIDs {
		wanted[pid] = struct{}{}
	}

	var keys []entity.StockKey
	r.s.mu.RLock()
	for key := range r.s.records {
		if _, ok := wanted[key.ProductID]; ok {
			keys = append(keys, key)
		}
	}
	r.s.mu.RUnlock()
	if st != nil {
		for key := range st.records {
			if _, ok := wanted[key.ProductID]; ok {
				keys = append(keys, key)
			}
		}
	}

	keys = entity.SortedKeys(keys)
	out := make([]entity.InventoryRecord, 0, len(keys))
	for _, key := range keys {
		if err := r.s.lock(ctx, key, "inventory"); err != nil {
			return nil, err
		}
		out = append(out, r.current(st, key))
	}
	return out, nil
}

// current returns the staged or committed record, or a fresh one.
func (r *InventoryRepo) current(st *txState, key entity.StockKey) entity.InventoryRecord {
	if st != nil {
		if rec, ok := st.records[key]; ok {
			return rec
		}
	}
	r.s.mu.RLock()
	rec, ok := r.s.records[key]
	r.s.mu.RUnlock()
	if !ok {
		return entity.NewInventoryRecord(key)
	}
	return rec
}

func (r *InventoryRepo) SaveRecord(ctx context.Context, rec entity.InventoryRecord) error {
	if rec.Quantity < 0 {
		return apperror.NewInsufficientStock(rec.ProductID, rec.BranchID, -rec.Quantity, 0)
	}
	if st := txFrom(ctx); st != nil {
		st.records[rec.Key()] = rec
	}
	r.s.write(ctx, func() {
		r.s.records[rec.Key()] = rec
	})
	return nil
}

func (r *InventoryRepo) AppendChange(ctx context.Context, change *entity.StockChange) error {
	// Numbered at commit, so the log order is the commit order.
	r.s.write(ctx, func() {
		change.Seq = r.s.seq.Add(1)
		r.s.changes = append(r.s.changes, *change)
	})
	return nil
}

func (r *InventoryRepo) GetRecord(ctx context.Context, key entity.StockKey) (entity.InventoryRecord, error) {
	defer r.s.rlock(ctx)()
	rec, ok := r.s.records[key]
	if !ok {
		return entity.InventoryRecord{}, apperror.NewNotFound("inventory record", key)
	}
	return rec, nil
}

func (r *InventoryRepo) ListRecords(ctx context.Context, filter ledger.RecordFilter) ([]entity.InventoryRecord, error) {
	unlock := r.s.rlock(ctx)
	out := make([]entity.InventoryRecord, 0, len(r.s.records))
	for _, rec := range r.s.records {
		if filter.BranchID != nil && rec.BranchID != *filter.BranchID {
			continue
		}
		if filter.ProductID != nil && rec.ProductID != *filter.ProductID {
			continue
		}
		if filter.LowStockOnly && !rec.LowStock() {
			continue
		}
		out = append(out, rec)
	}
	unlock()

	slices.SortFunc(out, func(a, b entity.InventoryRecord) int { return a.Key().Compare(b.Key()) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *InventoryRepo) ListChanges(ctx context.Context, filter ledger.ChangeFilter) ([]entity.StockChange, error) {
	unlock := r.s.rlock(ctx)
	var out []entity.StockChange
	for i := len(r.s.changes) - 1; i >= 0; i-- {
		c := r.s.changes[i]
		if filter.ProductID != nil && c.ProductID != *filter.ProductID {
			continue
		}
		if filter.BranchID != nil && c.BranchID != *filter.BranchID {
			continue
		}
		if filter.Reason != nil && c.Reason != *filter.Reason {
			continue
		}
		if filter.Reference != "" && c.Reference != filter.Reference {
			continue
		}
		out = append(out, c)
	}
	unlock()

	slices.SortStableFunc(out, func(a, b entity.StockChange) int {
		switch {
		case a.Seq > b.Seq:
			return -1
		case a.Seq < b.Seq:
			return 1
		}
		return 0
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *InventoryRepo) SumChanges(ctx context.Context, key entity.StockKey) (int, error) {
	defer r.s.rlock(ctx)()
	total := 0
	for _, c := range r.s.changes {
		if c.Key() == key {
			total += c.Delta()
		}
	}
	return total, nil
}
