package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"gamestore/internal/core/id"
	"gamestore/internal/domain/orders"
	"gamestore/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
)

var _ orders.Repository = (*OrderRepo)(nil)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	*BaseDocumentRepo[orders.Order]
	items *BaseDocumentRepo[orders.OrderItem]
	batch *postgres.BatchInserter
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[orders.Order](txManager, ordersTable, "order"),
		items:            NewBaseDocumentRepo[orders.OrderItem](txManager, orderItemsTable, "order item"),
		batch:            postgres.NewBatchInserter(txManager),
	}
}

// Create inserts the order header and its items in one batch.
func (r *OrderRepo) Create(ctx context.Context, order *orders.Order) error {
	if err := r.Insert(ctx, order); err != nil {
		return err
	}

	queries := make([]postgres.BatchQuery, 0, len(order.Items))
	for _, it := range order.Items {
		sql, args, err := r.Builder().Insert(orderItemsTable).
			Columns(r.items.selectCols...).
			Values(order.ID, it.LineNo, it.ProductID, it.BranchID, it.Quantity, it.UnitPrice, it.ReturnStatus).
			ToSql()
		if err != nil {
			return fmt.Errorf("build item insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.load(ctx, orderID, false)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.load(ctx, orderID, true)
}

func (r *OrderRepo) load(ctx context.Context, orderID id.ID, forUpdate bool) (*orders.Order, error) {
	order, err := r.Get(ctx, orderID, forUpdate)
	if err != nil {
		return nil, err
	}
	order.Items, err = r.items.Select(ctx, r.items.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no"))
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, order *orders.Order) error {
	return r.Exec(ctx, r.Builder().Update(ordersTable).
		Set("status", order.Status).
		Set("tracking_number", order.TrackingNumber).
		Set("delivered_at", order.DeliveredAt).
		Set("updated_at", order.UpdatedAt).
		Where(squirrel.Eq{"id": order.ID}), order.ID)
}

func (r *OrderRepo) SetItemReturnStatus(ctx context.Context, orderID id.ID, lineNos []int, status string) error {
	if len(lineNos) == 0 {
		return nil
	}
	return r.items.Exec(ctx, r.Builder().Update(orderItemsTable).
		Set("return_status", status).
		Where(squirrel.Eq{"order_id": orderID, "line_no": lineNos}), orderID)
}

// List returns orders newest first. UUIDv7 ids sort by creation time.
func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	q := r.baseSelect()
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	rows, err := r.Select(ctx, paginate(q.OrderBy("id DESC"), filter.Limit, filter.Offset))
	if err != nil {
		return nil, err
	}

	out := make([]*orders.Order, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
