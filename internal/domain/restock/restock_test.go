package restock_test

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
	"gamestore/internal/domain/restock"
	"gamestore/internal/infrastructure/storage/memory"
)

var admin = entity.Actor{UserID: "admin-1", Admin: true}

func newServices(t *testing.T) (*restock.Service, *ledger.Service) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Load(context.Background(), memory.DemoData{
		Branches:  []entity.Branch{{ID: 1, Name: "Downtown"}},
		Suppliers: []entity.Supplier{{ID: 7, Name: "Pixel Distribution", Active: true}, {ID: 9, Name: "Gone Ltd"}},
		Products: []entity.Product{
			{ID: 42, Name: "Starfall Odyssey", Price: types.MustMoney("59.99"), Attributes: entity.GameAttributes{Platform: "PS5"}},
		},
		Stock: map[entity.StockKey]int{{ProductID: 42, BranchID: 1}: 3},
	}))

	retry := tx.DefaultRetryPolicy()
	ledgerSvc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: retry})
	catalogSvc := catalog.NewService(store.Catalog(), store.Catalog())
	return restock.NewService(store.Purchases(), ledgerSvc, catalogSvc, store, retry), ledgerSvc
}

func TestRestock_AddsStockAndRecordsPurchase(t *testing.T) {
	svc, ledgerSvc := newServices(t)
	ctx := context.Background()

	change, err := svc.Restock(ctx, admin, restock.Input{
		ProductID: 42, BranchID: 1, SupplierID: 7, Quantity: 20, UnitCost: types.MustMoney("5.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, change.OldQuantity)
	assert.Equal(t, 23, change.NewQuantity)
	assert.Equal(t, entity.ReasonRestock, change.Reason)

	rec, err := ledgerSvc.Query(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 23, rec.Quantity)

	reason := entity.ReasonRestock
	changes, err := ledgerSvc.ListChanges(ctx, ledger.ChangeFilter{Reason: &reason})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, 3, changes[0].OldQuantity)
	assert.Equal(t, 23, changes[0].NewQuantity)

	purchases, err := svc.ListPurchases(ctx, restock.ListFilter{})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	p := purchases[0]
	assert.Equal(t, int64(7), p.SupplierID)
	assert.Equal(t, 20, p.Quantity)
	assert.True(t, types.MustMoney("100.00").Equal(p.TotalCost), "got %s", p.TotalCost)
	assert.Equal(t, restock.PaymentPending, p.PaymentStatus)
	assert.Equal(t, p.ID.String(), changes[0].Reference)
}

func TestRestock_Rejections(t *testing.T) {
	svc, ledgerSvc := newServices(t)
	ctx := context.Background()
	valid := restock.Input{ProductID: 42, BranchID: 1, SupplierID: 7, Quantity: 1, UnitCost: types.MustMoney("5.00")}

	tests := []struct {
		name   string
		modify func(in *restock.Input)
		code   string
	}{
		{"zero quantity", func(in *restock.Input) { in.Quantity = 0 }, apperror.CodeInvalidQuantity},
		{"negative quantity", func(in *restock.Input) { in.Quantity = -4 }, apperror.CodeInvalidQuantity},
		{"negative cost", func(in *restock.Input) { in.UnitCost = types.MustMoney("-1.00") }, apperror.CodeValidation},
		{"unknown supplier", func(in *restock.Input) { in.SupplierID = 99 }, apperror.CodeNotFound},
		{"inactive supplier", func(in *restock.Input) { in.SupplierID = 9 }, apperror.CodeNotFound},
		{"unknown branch", func(in *restock.Input) { in.BranchID = 5 }, apperror.CodeNotFound},
		{"unknown product", func(in *restock.Input) { in.ProductID = 1000 }, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)
			_, err := svc.Restock(ctx, admin, in)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}

	rec, err := ledgerSvc.Query(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Quantity)
	purchases, err := svc.ListPurchases(ctx, restock.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestRestock_ZeroCostIsAllowed(t *testing.T) {
	svc, _ := newServices(t)

	change, err := svc.Restock(context.Background(), admin, restock.Input{
		ProductID: 42, BranchID: 1, SupplierID: 7, Quantity: 2, UnitCost: types.Zero(),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, change.NewQuantity)
}
