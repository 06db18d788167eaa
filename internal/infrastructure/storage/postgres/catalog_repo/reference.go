// Package catalog_repo provides the PostgreSQL implementation of the
// reference data boundary: products, branches and suppliers.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/infrastructure/storage/postgres"
)

const (
	productsTable  = "products"
	branchesTable  = "branches"
	suppliersTable = "suppliers"
)

var (
	_ catalog.Catalog   = (*Repo)(nil)
	_ catalog.Directory = (*Repo)(nil)
	_ catalog.Writer    = (*Repo)(nil)
)

// Repo implements catalog.Catalog, catalog.Directory and catalog.Writer.
type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewRepo creates a new reference data repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// productRow is the stored shape of a product: the variant tag plus its
// attributes as JSON.
type productRow struct {
	ID         int64              `db:"id"`
	Name       string             `db:"name"`
	Price      types.Money        `db:"price"`
	Kind       entity.ProductKind `db:"kind"`
	Attributes []byte             `db:"attributes"`
}

func (row productRow) toEntity() (entity.Product, error) {
	attrs, err := entity.UnmarshalAttributes(row.Kind, row.Attributes)
	if err != nil {
		return entity.Product{}, fmt.Errorf("product %d: %w", row.ID, err)
	}
	return entity.Product{ID: row.ID, Name: row.Name, Price: row.Price, Attributes: attrs}, nil
}

func (r *Repo) selectProducts() squirrel.SelectBuilder {
	return r.builder.Select("id", "name", "price", "kind", "attributes").From(productsTable)
}

func (r *Repo) GetProduct(ctx context.Context, productID int64) (entity.Product, error) {
	sql, args, err := r.selectProducts().Where(squirrel.Eq{"id": productID}).ToSql()
	if err != nil {
		return entity.Product{}, fmt.Errorf("build query: %w", err)
	}

	var row productRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.Product{}, apperror.NewNotFound("product", productID)
		}
		return entity.Product{}, fmt.Errorf("get product: %w", err)
	}
	return row.toEntity()
}

func (r *Repo) GetProducts(ctx context.Context, productIDs []int64) (map[int64]entity.Product, error) {
	out := make(map[int64]entity.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.selectProducts().Where(squirrel.Eq{"id": productIDs}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []productRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	for _, row := range rows {
		p, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repo) GetBranch(ctx context.Context, branchID int64) (entity.Branch, error) {
	var b entity.Branch
	err := r.getOne(ctx, &b, r.builder.Select("id", "name", "address").From(branchesTable).Where(squirrel.Eq{"id": branchID}))
	if pgxscan.NotFound(err) {
		return b, apperror.NewNotFound("branch", branchID)
	}
	return b, err
}

func (r *Repo) ListBranches(ctx context.Context) ([]entity.Branch, error) {
	var out []entity.Branch
	err := r.getAll(ctx, &out, r.builder.Select("id", "name", "address").From(branchesTable).OrderBy("id"))
	return out, err
}

func (r *Repo) GetSupplier(ctx context.Context, supplierID int64) (entity.Supplier, error) {
	var s entity.Supplier
	err := r.getOne(ctx, &s, r.builder.Select("id", "name", "active").From(suppliersTable).Where(squirrel.Eq{"id": supplierID}))
	if pgxscan.NotFound(err) {
		return s, apperror.NewNotFound("supplier", supplierID)
	}
	return s, err
}

func (r *Repo) ListSuppliers(ctx context.Context) ([]entity.Supplier, error) {
	var out []entity.Supplier
	err := r.getAll(ctx, &out, r.builder.Select("id", "name", "active").From(suppliersTable).OrderBy("id"))
	return out, err
}

func (r *Repo) getOne(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), dst, sql, args...)
}

func (r *Repo) getAll(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}

// SaveProduct inserts or replaces a product.
func (r *Repo) SaveProduct(ctx context.Context, p entity.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	kind, attrs, err := entity.MarshalAttributes(p.Attributes)
	if err != nil {
		return err
	}
	q := r.builder.Insert(productsTable).
		Columns("id", "name", "price", "kind", "attributes").
		Values(p.ID, p.Name, p.Price, kind, string(attrs)).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, kind = EXCLUDED.kind, attributes = EXCLUDED.attributes")
	return r.exec(ctx, q, "save product")
}

// SaveBranch inserts or replaces a branch.
func (r *Repo) SaveBranch(ctx context.Context, b entity.Branch) error {
	q := r.builder.Insert(branchesTable).
		Columns("id", "name", "address").
		Values(b.ID, b.Name, b.Address).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address")
	return r.exec(ctx, q, "save branch")
}

// SaveSupplier inserts or replaces a supplier.
func (r *Repo) SaveSupplier(ctx context.Context, s entity.Supplier) error {
	q := r.builder.Insert(suppliersTable).
		Columns("id", "name", "active").
		Values(s.ID, s.Name, s.Active).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active")
	return r.exec(ctx, q, "save supplier")
}

func (r *Repo) exec(ctx context.Context, q squirrel.InsertBuilder, op string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", op, postgres.MapError(err))
	}
	return nil
}
