package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/restock"
	"gamestore/internal/infrastructure/storage/postgres"
)

var (
	_ restock.Repository     = (*PurchaseRepo)(nil)
	_ offlinesale.Repository = (*SaleRepo)(nil)
)

// PurchaseRepo implements restock.Repository.
type PurchaseRepo struct {
	*BaseDocumentRepo[restock.Purchase]
}

// NewPurchaseRepo creates a new purchase repository.
func NewPurchaseRepo(txManager *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{NewBaseDocumentRepo[restock.Purchase](txManager, "purchases", "purchase")}
}

func (r *PurchaseRepo) CreatePurchase(ctx context.Context, p *restock.Purchase) error {
	return r.Insert(ctx, p)
}

func (r *PurchaseRepo) ListPurchases(ctx context.Context, filter restock.ListFilter) ([]restock.Purchase, error) {
	q := r.baseSelect()
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	return r.Select(ctx, paginate(q.OrderBy("id DESC"), filter.Limit, filter.Offset))
}

// SaleRepo implements offlinesale.Repository.
type SaleRepo struct {
	*BaseDocumentRepo[offlinesale.Sale]
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{NewBaseDocumentRepo[offlinesale.Sale](txManager, "sales", "sale")}
}

func (r *SaleRepo) CreateSale(ctx context.Context, sale *offlinesale.Sale) error {
	return r.Insert(ctx, sale)
}

func (r *SaleRepo) ListSales(ctx context.Context, filter offlinesale.ListFilter) ([]offlinesale.Sale, error) {
	q := r.baseSelect()
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	return r.Select(ctx, paginate(q.OrderBy("id DESC"), filter.Limit, filter.Offset))
}
