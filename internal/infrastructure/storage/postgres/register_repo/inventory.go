// Package register_repo provides the PostgreSQL implementation of the
// inventory ledger: the inventory table and its stock change log.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/infrastructure/storage/postgres"
)

const (
	inventoryTable    = "inventory"
	stockChangesTable = "stock_changes"
)

var inventoryColumns = []string{"product_id", "branch_id", "quantity", "stock_alert_level", "last_update"}

var stockChangeColumns = []string{
	"seq", "id", "product_id", "branch_id", "old_quantity", "new_quantity",
	"reason", "reference", "actor_id", "changed_at",
}

var _ ledger.Repository = (*InventoryRepo)(nil)

// InventoryRepo implements ledger.Repository.
type InventoryRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewInventoryRepo creates a new inventory repository.
func NewInventoryRepo(txManager *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func splitKeys(keys []entity.StockKey) (productIDs, branchIDs []int64) {
	productIDs = make([]int64, len(keys))
	branchIDs = make([]int64, len(keys))
	for i, k := range keys {
		productIDs[i] = k.ProductID
		branchIDs[i] = k.BranchID
	}
	return productIDs, branchIDs
}

// LockRecords creates missing rows, then locks all rows with one
// SELECT ... ORDER BY product_id, branch_id FOR UPDATE.
func (r *InventoryRepo) LockRecords(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]entity.InventoryRecord, error) {
	t, err := r.txManager.MustGetTx(ctx, "LockRecords")
	if err != nil {
		return nil, err
	}
	keys = entity.SortedKeys(keys)
	productIDs, branchIDs := splitKeys(keys)

	if _, err := t.Exec(ctx, `
		INSERT INTO inventory (product_id, branch_id, quantity, stock_alert_level, last_update)
		SELECT k.product_id, k.branch_id, 0, $3, NOW()
		FROM unnest($1::bigint[], $2::bigint[]) AS k(product_id, branch_id)
		ON CONFLICT (product_id, branch_id) DO NOTHING
	`, productIDs, branchIDs, entity.DefaultStockAlertLevel); err != nil {
		return nil, fmt.Errorf("create inventory rows: %w", postgres.MapError(err))
	}

	var rows []entity.InventoryRecord
	if err := pgxscan.Select(ctx, t, &rows, `
		SELECT i.product_id, i.branch_id, i.quantity, i.stock_alert_level, i.last_update
		FROM inventory i
		JOIN unnest($1::bigint[], $2::bigint[]) AS k(product_id, branch_id)
		  ON i.product_id = k.product_id AND i.branch_id = k.branch_id
		ORDER BY i.product_id, i.branch_id
		FOR UPDATE OF i
	`, productIDs, branchIDs); err != nil {
		return nil, fmt.Errorf("lock inventory rows: %w", postgres.MapError(err))
	}

	out := make(map[entity.StockKey]entity.InventoryRecord, len(rows))
	for _, rec := range rows {
		out[rec.Key()] = rec
	}
	return out, nil
}

func (r *InventoryRepo) LockProducts(ctx context.Context, productIDs []int64) ([]entity.InventoryRecord, error) {
	t, err := r.txManager.MustGetTx(ctx, "LockProducts")
	if err != nil {
		return nil, err
	}

	var rows []entity.InventoryRecord
	if err := pgxscan.Select(ctx, t, &rows, `
		SELECT product_id, branch_id, quantity, stock_alert_level, last_update
		FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY product_id, branch_id
		FOR UPDATE
	`, productIDs); err != nil {
		return nil, fmt.Errorf("lock product rows: %w", postgres.MapError(err))
	}
	return rows, nil
}

func (r *InventoryRepo) SaveRecord(ctx context.Context, rec entity.InventoryRecord) error {
	sql, args, err := r.builder.Update(inventoryTable).
		Set("quantity", rec.Quantity).
		Set("stock_alert_level", rec.StockAlertLevel).
		Set("last_update", rec.LastUpdate).
		Where(squirrel.Eq{"product_id": rec.ProductID, "branch_id": rec.BranchID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update inventory: %w", postgres.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory record", rec.Key())
	}
	return nil
}

func (r *InventoryRepo) AppendChange(ctx context.Context, change *entity.StockChange) error {
	sql, args, err := r.builder.Insert(stockChangesTable).
		Columns(stockChangeColumns[1:]...).
		Values(
			change.ID, change.ProductID, change.BranchID, change.OldQuantity, change.NewQuantity,
			change.Reason, change.Reference, change.ActorID, change.ChangedAt,
		).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&change.Seq); err != nil {
		return fmt.Errorf("insert stock change: %w", postgres.MapError(err))
	}
	return nil
}

func (r *InventoryRepo) GetRecord(ctx context.Context, key entity.StockKey) (entity.InventoryRecord, error) {
	sql, args, err := r.builder.Select(inventoryColumns...).
		From(inventoryTable).
		Where(squirrel.Eq{"product_id": key.ProductID, "branch_id": key.BranchID}).
		ToSql()
	if err != nil {
		return entity.InventoryRecord{}, fmt.Errorf("build query: %w", err)
	}

	var rec entity.InventoryRecord
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.InventoryRecord{}, apperror.NewNotFound("inventory record", key)
		}
		return entity.InventoryRecord{}, fmt.Errorf("get inventory record: %w", err)
	}
	return rec, nil
}

func (r *InventoryRepo) ListRecords(ctx context.Context, filter ledger.RecordFilter) ([]entity.InventoryRecord, error) {
	q := r.builder.Select(inventoryColumns...).From(inventoryTable)
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LowStockOnly {
		q = q.Where("quantity <= stock_alert_level")
	}
	q = q.OrderBy("product_id", "branch_id")
	q = paginate(q, filter.Limit, filter.Offset)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []entity.InventoryRecord
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	return out, nil
}

func (r *InventoryRepo) ListChanges(ctx context.Context, filter ledger.ChangeFilter) ([]entity.StockChange, error) {
	q := r.builder.Select(stockChangeColumns...).From(stockChangesTable)
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.Reason != nil {
		q = q.Where(squirrel.Eq{"reason": *filter.Reason})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	q = paginate(q.OrderBy("seq DESC"), filter.Limit, filter.Offset)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []entity.StockChange
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock changes: %w", err)
	}
	return out, nil
}

func (r *InventoryRepo) SumChanges(ctx context.Context, key entity.StockKey) (int, error) {
	var total int
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(new_quantity - old_quantity), 0)
		FROM stock_changes
		WHERE product_id = $1 AND branch_id = $2
	`, key.ProductID, key.BranchID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum stock changes: %w", err)
	}
	return total, nil
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}
