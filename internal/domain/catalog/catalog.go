// Package catalog is the boundary to reference data owned outside the core:
// products with their current price and kind, branches and suppliers.
package catalog

import (
	"context"
	"fmt"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
)

// Catalog supplies products. The core reads price and identity only.
type Catalog interface {
	// GetProduct returns apperror NotFound for unknown ids.
	GetProduct(ctx context.Context, productID int64) (entity.Product, error)
	// GetProducts returns the products that exist; missing ids are absent from the map.
	GetProducts(ctx context.Context, productIDs []int64) (map[int64]entity.Product, error)
}

// Directory supplies branches and suppliers.
type Directory interface {
	GetBranch(ctx context.Context, branchID int64) (entity.Branch, error)
	ListBranches(ctx context.Context) ([]entity.Branch, error)
	GetSupplier(ctx context.Context, supplierID int64) (entity.Supplier, error)
	ListSuppliers(ctx context.Context) ([]entity.Supplier, error)
}

// Writer stores reference data. Used by seeders and the in-memory store.
type Writer interface {
	SaveProduct(ctx context.Context, p entity.Product) error
	SaveBranch(ctx context.Context, b entity.Branch) error
	SaveSupplier(ctx context.Context, s entity.Supplier) error
}

// Service answers reference-data questions shared by the inventory services.
type Service struct {
	catalog   Catalog
	directory Directory
}

// NewService creates a new reference data service.
func NewService(c Catalog, d Directory) *Service {
	return &Service{catalog: c, directory: d}
}

// Product returns a product or NotFound.
func (s *Service) Product(ctx context.Context, productID int64) (entity.Product, error) {
	return s.catalog.GetProduct(ctx, productID)
}

// Products resolves every id or fails with NotFound naming the first unknown one.
func (s *Service) Products(ctx context.Context, productIDs []int64) (map[int64]entity.Product, error) {
	found, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	for _, pid := range productIDs {
		if _, ok := found[pid]; !ok {
			return nil, apperror.NewNotFound("product", pid)
		}
	}
	return found, nil
}

// Branch returns a branch or NotFound.
func (s *Service) Branch(ctx context.Context, branchID int64) (entity.Branch, error) {
	return s.directory.GetBranch(ctx, branchID)
}

// Branches lists all branches.
func (s *Service) Branches(ctx context.Context) ([]entity.Branch, error) {
	return s.directory.ListBranches(ctx)
}

// ActiveSupplier returns a supplier that may receive purchases.
func (s *Service) ActiveSupplier(ctx context.Context, supplierID int64) (entity.Supplier, error) {
	sup, err := s.directory.GetSupplier(ctx, supplierID)
	if err != nil {
		return entity.Supplier{}, err
	}
	if !sup.Active {
		return entity.Supplier{}, apperror.NewNotFound("supplier", supplierID).
			WithDetail("reason", "inactive")
	}
	return sup, nil
}

// Suppliers lists all suppliers.
func (s *Service) Suppliers(ctx context.Context) ([]entity.Supplier, error) {
	return s.directory.ListSuppliers(ctx)
}

// RequireBranches checks that every branch exists.
func (s *Service) RequireBranches(ctx context.Context, branchIDs ...int64) error {
	for _, bid := range branchIDs {
		if _, err := s.directory.GetBranch(ctx, bid); err != nil {
			return err
		}
	}
	return nil
}
