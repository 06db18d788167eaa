package returns_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/orders"
	"gamestore/internal/domain/returns"
	"gamestore/internal/infrastructure/storage/memory"
)

var (
	admin    = entity.Actor{UserID: "admin-1", Admin: true}
	customer = entity.Actor{UserID: "user-5", CustomerID: 5}
)

type fixture struct {
	store   *memory.Store
	ledger  *ledger.Service
	orders  *orders.Service
	returns *returns.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Load(context.Background(), memory.DemoData{
		Branches: []entity.Branch{{ID: 1, Name: "Downtown"}, {ID: 2, Name: "Riverside"}},
		Products: []entity.Product{
			{ID: 42, Name: "Starfall Odyssey", Price: types.MustMoney("59.99"), Attributes: entity.GameAttributes{Platform: "PS5"}},
			{ID: 100, Name: "PlayStation 5", Price: types.MustMoney("499.00"), Attributes: entity.ConsoleAttributes{Manufacturer: "Sony"}},
		},
		Stock: map[entity.StockKey]int{
			{ProductID: 42, BranchID: 1}:  10,
			{ProductID: 100, BranchID: 2}: 4,
		},
	}))

	retry := tx.DefaultRetryPolicy()
	ledgerSvc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: retry})
	catalogSvc := catalog.NewService(store.Catalog(), store.Catalog())
	orderSvc := orders.NewService(store.Orders(), ledgerSvc, catalogSvc, store, store.Events(), store.Audit(), orders.Config{Retry: retry})
	returnSvc := returns.NewService(store.Returns(), store.Orders(), ledgerSvc, store, store.Events(), store.Audit(), returns.Config{Retry: retry})
	return &fixture{store: store, ledger: ledgerSvc, orders: orderSvc, returns: returnSvc}
}

func (f *fixture) qty(t *testing.T, productID, branchID int64) int {
	t.Helper()
	rec, err := f.ledger.Query(context.Background(), productID, branchID)
	require.NoError(t, err)
	return rec.Quantity
}

// deliveredOrder places an order for 2 x product 42 and 1 x product 100 and
// walks it to delivered.
func (f *fixture) deliveredOrder(t *testing.T) *orders.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.orders.CreateOrder(ctx, customer, orders.CreateOrderInput{
		CustomerID:      5,
		Items:           []orders.LineInput{{ProductID: 42, Quantity: 2}, {ProductID: 100, Quantity: 1}},
		DeliveryAddress: orders.Address{FullAddress: "1 Main St"},
	})
	require.NoError(t, err)
	for _, st := range []orders.Status{orders.StatusProcessing, orders.StatusShipped} {
		_, err = f.orders.SetStatus(ctx, admin, order.ID, st)
		require.NoError(t, err)
	}
	order, err = f.orders.ConfirmReceived(ctx, customer, order.ID)
	require.NoError(t, err)
	return order
}

func line(n int) *int { return &n }

func TestReturn_ItemRefundUsesSnapshotPriceAndRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	require.Equal(t, 8, f.qty(t, 42, 1))

	require.NoError(t, f.store.Catalog().SaveProduct(ctx, entity.Product{
		ID: 42, Name: "Starfall Odyssey", Price: types.MustMoney("19.99"), Attributes: entity.GameAttributes{Platform: "PS5"},
	}))

	req, err := f.returns.RequestReturn(ctx, customer, returns.RequestInput{
		OrderID: order.ID, LineNo: line(1), Reason: "wrong edition",
	})
	require.NoError(t, err)
	assert.Equal(t, returns.StatusPending, req.Status)
	assert.False(t, req.IsWholeOrder())
	assert.True(t, types.MustMoney("119.98").Equal(req.RefundAmount), "got %s", req.RefundAmount)

	_, err = f.returns.SetStatus(ctx, admin, req.ID, returns.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 8, f.qty(t, 42, 1), "approval does not move stock")

	done, err := f.returns.SetStatus(ctx, admin, req.ID, returns.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, returns.StatusCompleted, done.Status)
	assert.NotNil(t, done.RefundDate)
	assert.Equal(t, 10, f.qty(t, 42, 1))
	assert.Equal(t, 3, f.qty(t, 100, 2), "other lines stay sold")

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	it, ok := stored.Item(1)
	require.True(t, ok)
	assert.Equal(t, string(returns.StatusCompleted), it.ReturnStatus)
	assert.False(t, stored.FullyReturned(), "line 2 was not returned")
}

func TestReturn_WholeOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	req, err := f.returns.RequestReturn(ctx, customer, returns.RequestInput{OrderID: order.ID, Reason: "changed my mind"})
	require.NoError(t, err)
	assert.True(t, req.IsWholeOrder())
	assert.True(t, types.MustMoney("618.98").Equal(req.RefundAmount), "got %s", req.RefundAmount)

	for _, st := range []returns.Status{returns.StatusApproved, returns.StatusCompleted} {
		_, err = f.returns.SetStatus(ctx, admin, req.ID, st)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, f.qty(t, 42, 1))
	assert.Equal(t, 4, f.qty(t, 100, 2))

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.FullyReturned())
	assert.Equal(t, orders.StatusDelivered, stored.Status)
}

func TestReturn_StateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)

	req, err := f.returns.RequestReturn(ctx, customer, returns.RequestInput{OrderID: order.ID, LineNo: line(2), Reason: "damaged"})
	require.NoError(t, err)

	_, err = f.returns.SetStatus(ctx, admin, req.ID, returns.StatusCompleted)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "pending cannot complete")
	assert.Equal(t, 3, f.qty(t, 100, 2))

	_, err = f.returns.SetStatus(ctx, admin, req.ID, returns.StatusApproved)
	require.NoError(t, err)
	_, err = f.returns.SetStatus(ctx, admin, req.ID, returns.StatusPending)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = f.returns.SetStatus(ctx, admin, req.ID, "refunded")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestReturn_RejectedItemCanBeRequestedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.deliveredOrder(t)
	in := returns.RequestInput{OrderID: order.ID, LineNo: line(1), Reason: "scratched disc"}

	req, err := f.returns.RequestReturn(ctx, customer, in)
	require.NoError(t, err)

	_, err = f.returns.RequestReturn(ctx, customer, in)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
	_, err = f.returns.RequestReturn(ctx, customer, returns.RequestInput{OrderID: order.ID, Reason: "all of it"})
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict), "whole-order return overlaps the open line")

	_, err = f.returns.SetStatus(ctx, admin, req.ID, returns.StatusRejected)
	require.NoError(t, err)
	_, err = f.returns.RequestReturn(ctx, customer, in)
	assert.NoError(t, err)
}

func TestRequestReturn_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	delivered := f.deliveredOrder(t)

	pending, err := f.orders.CreateOrder(ctx, customer, orders.CreateOrderInput{
		CustomerID:      5,
		Items:           []orders.LineInput{{ProductID: 42, Quantity: 1}},
		DeliveryAddress: orders.Address{FullAddress: "1 Main St"},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor entity.Actor
		in    returns.RequestInput
		code  string
	}{
		{"missing reason", customer, returns.RequestInput{OrderID: delivered.ID, Reason: "  "}, apperror.CodeValidation},
		{"not delivered", customer, returns.RequestInput{OrderID: pending.ID, Reason: "late"}, apperror.CodeInvalidTransition},
		{"other customer", entity.Actor{CustomerID: 9}, returns.RequestInput{OrderID: delivered.ID, Reason: "x"}, apperror.CodeForbidden},
		{"unknown line", customer, returns.RequestInput{OrderID: delivered.ID, LineNo: line(7), Reason: "x"}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.returns.RequestReturn(ctx, tt.actor, tt.in)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}

	list, err := f.returns.List(ctx, returns.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
