package memory

import (
	"cmp"
	"context"
	"slices"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/catalog"
)

// CatalogRepo implements catalog.Catalog, catalog.Directory and catalog.Writer.
type CatalogRepo struct {
	s *Store
}

var (
	_ catalog.Catalog   = (*CatalogRepo)(nil)
	_ catalog.Directory = (*CatalogRepo)(nil)
	_ catalog.Writer    = (*CatalogRepo)(nil)
)

func (r *CatalogRepo) GetProduct(_ context.Context, productID int64) (entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[productID]
	if !ok {
		return entity.Product{}, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

func (r *CatalogRepo) GetProducts(_ context.Context, productIDs []int64) (map[int64]entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]entity.Product, len(productIDs))
	for _, pid := range productIDs {
		if p, ok := r.s.products[pid]; ok {
			out[pid] = p
		}
	}
	return out, nil
}

func (r *CatalogRepo) GetBranch(_ context.Context, branchID int64) (entity.Branch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.branches[branchID]
	if !ok {
		return entity.Branch{}, apperror.NewNotFound("branch", branchID)
	}
	return b, nil
}

func (r *CatalogRepo) ListBranches(context.Context) ([]entity.Branch, error) {
	r.s.mu.RLock()
	out := make([]entity.Branch, 0, len(r.s.branches))
	for _, b := range r.s.branches {
		out = append(out, b)
	}
	r.s.mu.RUnlock()
	slices.SortFunc(out, func(a, b entity.Branch) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *CatalogRepo) GetSupplier(_ context.Context, supplierID int64) (entity.Supplier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sup, ok := r.s.suppliers[supplierID]
	if !ok {
		return entity.Supplier{}, apperror.NewNotFound("supplier", supplierID)
	}
	return sup, nil
}

func (r *CatalogRepo) ListSuppliers(context.Context) ([]entity.Supplier, error) {
	r.s.mu.RLock()
	out := make([]entity.Supplier, 0, len(r.s.suppliers))
	for _, sup := range r.s.suppliers {
		out = append(out, sup)
	}
	r.s.mu.RUnlock()
	slices.SortFunc(out, func(a, b entity.Supplier) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *CatalogRepo) SaveProduct(_ context.Context, p entity.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	r.s.products[p.ID] = p
	r.s.mu.Unlock()
	return nil
}

func (r *CatalogRepo) SaveBranch(_ context.Context, b entity.Branch) error {
	r.s.mu.Lock()
	r.s.branches[b.ID] = b
	r.s.mu.Unlock()
	return nil
}

func (r *CatalogRepo) SaveSupplier(_ context.Context, sup entity.Supplier) error {
	r.s.mu.Lock()
	r.s.suppliers[sup.ID] = sup
	r.s.mu.Unlock()
	return nil
}
