package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"gamestore/internal/domain/cart"
	"gamestore/internal/infrastructure/storage/postgres"
)

const cartItemsTable = "cart_items"

var _ cart.Repository = (*CartRepo)(nil)

// CartRepo implements cart.Repository.
type CartRepo struct {
	*BaseDocumentRepo[cart.Item]
}

// NewCartRepo creates a new cart repository.
func NewCartRepo(txManager *postgres.TxManager) *CartRepo {
	return &CartRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[cart.Item](txManager, cartItemsTable, "cart item"),
	}
}

func (r *CartRepo) List(ctx context.Context, customerID int64) ([]cart.Item, error) {
	return r.Select(ctx, r.baseSelect().
		Where(squirrel.Eq{"customer_id": customerID}).
		OrderBy("added_at", "product_id"))
}

// ListForUpdate takes a transaction-scoped advisory lock on the customer's
// cart first, so an empty cart is locked as well.
func (r *CartRepo) ListForUpdate(ctx context.Context, customerID int64) ([]cart.Item, error) {
	t, err := r.txManager.MustGetTx(ctx, "ListForUpdate")
	if err != nil {
		return nil, err
	}
	if _, err := t.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended('cart:' || $1::text, 0))", customerID); err != nil {
		return nil, fmt.Errorf("lock cart: %w", postgres.MapError(err))
	}
	return r.List(ctx, customerID)
}

func (r *CartRepo) Save(ctx context.Context, item cart.Item) error {
	sql, args, err := r.Builder().Insert(cartItemsTable).
		Columns("customer_id", "product_id", "quantity", "added_at").
		Values(item.CustomerID, item.ProductID, item.Quantity, item.AddedAt).
		Suffix("ON CONFLICT (customer_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save cart item: %w", postgres.MapError(err))
	}
	return nil
}

func (r *CartRepo) Delete(ctx context.Context, customerID, productID int64) error {
	return r.delete(ctx, squirrel.Eq{"customer_id": customerID, "product_id": productID})
}

func (r *CartRepo) Clear(ctx context.Context, customerID int64) error {
	return r.delete(ctx, squirrel.Eq{"customer_id": customerID})
}

func (r *CartRepo) delete(ctx context.Context, where squirrel.Eq) error {
	sql, args, err := r.Builder().Delete(cartItemsTable).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete cart items: %w", postgres.MapError(err))
	}
	return nil
}
