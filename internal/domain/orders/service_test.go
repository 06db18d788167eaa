package orders_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/orders"
	"gamestore/internal/infrastructure/storage/memory"
)

var (
	admin    = entity.Actor{UserID: "admin-1", Admin: true}
	customer = entity.Actor{UserID: "user-5", CustomerID: 5}
)

type fixture struct {
	store  *memory.Store
	ledger *ledger.Service
	orders *orders.Service
}

func newFixture(t *testing.T, stock map[entity.StockKey]int, cfg orders.Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Load(context.Background(), memory.DemoData{
		Branches: []entity.Branch{{ID: 1, Name: "Downtown"}, {ID: 2, Name: "Riverside"}, {ID: 3, Name: "Airport"}},
		Products: []entity.Product{
			{ID: 1, Name: "A", Price: types.MustMoney("10.00"), Attributes: entity.GameAttributes{Platform: "PS5"}},
			{ID: 2, Name: "B", Price: types.MustMoney("25.50"), Attributes: entity.GameAttributes{Platform: "Switch"}},
			{ID: 3, Name: "C", Price: types.MustMoney("300.00"), Attributes: entity.ConsoleAttributes{Manufacturer: "Sony"}},
		},
		Stock: stock,
	}))

	retry := tx.DefaultRetryPolicy()
	cfg.Retry = retry
	ledgerSvc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: retry})
	catalogSvc := catalog.NewService(store.Catalog(), store.Catalog())
	orderSvc := orders.NewService(store.Orders(), ledgerSvc, catalogSvc, store, store.Events(), store.Audit(), cfg)
	return &fixture{store: store, ledger: ledgerSvc, orders: orderSvc}
}

func (f *fixture) qty(t *testing.T, productID, branchID int64) int {
	t.Helper()
	rec, err := f.ledger.Query(context.Background(), productID, branchID)
	if apperror.IsNotFound(err) {
		return 0
	}
	require.NoError(t, err)
	return rec.Quantity
}

func checkout(items ...orders.LineInput) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		CustomerID:      5,
		Items:           items,
		DeliveryAddress: orders.Address{FullAddress: "1 Main St", City: "Springfield"},
		PaymentMethod:   "paypal",
	}
}

func TestCreateOrder_DecrementsAndSnapshotsPrices(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 5,
		{ProductID: 2, BranchID: 2}: 4,
	}, orders.Config{ShippingFee: types.MustMoney("4.99")})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, customer, checkout(
		orders.LineInput{ProductID: 1, Quantity: 2},
		orders.LineInput{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, orders.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, "paypal", order.PaymentMethod)
	assert.Equal(t, order.DeliveryAddress, order.BillingAddress)
	assert.True(t, types.MustMoney("50.49").Equal(order.TotalAmount), "got %s", order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1, order.Items[0].LineNo)
	assert.Equal(t, int64(1), order.Items[0].BranchID)
	assert.Equal(t, int64(2), order.Items[1].BranchID)
	assert.True(t, types.MustMoney("25.50").Equal(order.Items[1].UnitPrice))

	assert.Equal(t, 3, f.qty(t, 1, 1))
	assert.Equal(t, 3, f.qty(t, 2, 2))

	// A later catalog price change does not touch the stored order.
	require.NoError(t, f.store.Catalog().SaveProduct(ctx, entity.Product{
		ID: 2, Name: "B", Price: types.MustMoney("99.00"), Attributes: entity.GameAttributes{Platform: "Switch"},
	}))
	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("25.50").Equal(stored.Items[1].UnitPrice))
	assert.True(t, order.TotalAmount.Equal(stored.TotalAmount))

	var placed int
	for _, e := range f.store.Events().All() {
		if e.EventType == events.TypeOrderPlaced {
			placed++
		}
	}
	assert.Equal(t, 1, placed)
}

func TestCreateOrder_OutOfStockLeavesEveryLineUntouched(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 3,
	}, orders.Config{})
	ctx := context.Background()

	_, err := f.orders.CreateOrder(ctx, customer, checkout(
		orders.LineInput{ProductID: 1, Quantity: 3},
		orders.LineInput{ProductID: 2, Quantity: 1},
	))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeOutOfStock, appErr.Code)
	assert.Equal(t, int64(2), appErr.Details["product_id"])

	assert.Equal(t, 3, f.qty(t, 1, 1))
	list, err := f.orders.List(ctx, orders.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrder_ValidationHappensBeforeTheLedger(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 1, BranchID: 1}: 3}, orders.Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   orders.CreateOrderInput
		code string
	}{
		{"empty", checkout(), apperror.CodeEmptyOrder},
		{"zero quantity", checkout(orders.LineInput{ProductID: 1, Quantity: 0}), apperror.CodeInvalidQuantity},
		{"negative quantity", checkout(
			orders.LineInput{ProductID: 1, Quantity: 1},
			orders.LineInput{ProductID: 2, Quantity: -2},
		), apperror.CodeInvalidQuantity},
		{"unknown product", checkout(orders.LineInput{ProductID: 77, Quantity: 1}), apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, customer, tt.in)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, 3, f.qty(t, 1, 1))
		})
	}
}

func TestCreateOrder_MergesLinesOfTheSameProduct(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 1, BranchID: 1}: 3}, orders.Config{})

	_, err := f.orders.CreateOrder(context.Background(), customer, checkout(
		orders.LineInput{ProductID: 1, Quantity: 2},
		orders.LineInput{ProductID: 1, Quantity: 2},
	))
	assert.True(t, apperror.IsCode(err, apperror.CodeOutOfStock))
	assert.Equal(t, 3, f.qty(t, 1, 1))
}

func TestCreateOrder_LastUnitRace(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 3, BranchID: 1}: 1}, orders.Config{})
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 3, Quantity: 1}))
		}()
	}
	close(start)
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.IsCode(err, apperror.CodeOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, f.qty(t, 3, 1))
}

func TestCreateOrder_HighestStockBranchWins(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 2,
		{ProductID: 1, BranchID: 2}: 6,
		{ProductID: 1, BranchID: 3}: 6,
	}, orders.Config{})

	order, err := f.orders.CreateOrder(context.Background(), customer, checkout(orders.LineInput{ProductID: 1, Quantity: 4}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), order.Items[0].BranchID, "ties go to the lowest branch id")
	assert.Equal(t, 2, f.qty(t, 1, 2))
	assert.Equal(t, 6, f.qty(t, 1, 3))
}

func TestCreateOrder_FixedBranchPolicy(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 2,
		{ProductID: 1, BranchID: 2}: 6,
	}, orders.Config{Selector: orders.FixedBranch{BranchID: 1}})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.Items[0].BranchID)

	_, err = f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 1}))
	assert.True(t, apperror.IsCode(err, apperror.CodeOutOfStock), "branch 2 stock is not used")
}

func TestSetStatus_StateMachine(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 1, BranchID: 1}: 5}, orders.Config{
		TrackingNumber: func(context.Context) (string, error) { return "TR000000001", nil },
	})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.orders.SetStatus(ctx, admin, order.ID, orders.StatusShipped)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition), "pending cannot skip to shipped")

	_, err = f.orders.SetStatus(ctx, admin, order.ID, orders.StatusProcessing)
	require.NoError(t, err)

	shipped, err := f.orders.SetStatus(ctx, admin, order.ID, orders.StatusShipped)
	require.NoError(t, err)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "TR000000001", *shipped.TrackingNumber)

	_, err = f.orders.ConfirmReceived(ctx, entity.Actor{CustomerID: 6}, order.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	delivered, err := f.orders.ConfirmReceived(ctx, customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.True(t, delivered.Status.IsTerminal())

	_, err = f.orders.SetStatus(ctx, admin, order.ID, orders.StatusCancelled)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = f.orders.SetStatus(ctx, admin, order.ID, "lost")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSetStatus_CancelReleasesStockBeforeShipping(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 5,
		{ProductID: 2, BranchID: 2}: 5,
	}, orders.Config{})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, customer, checkout(
		orders.LineInput{ProductID: 1, Quantity: 2},
		orders.LineInput{ProductID: 2, Quantity: 3},
	))
	require.NoError(t, err)
	_, err = f.orders.SetStatus(ctx, admin, order.ID, orders.StatusProcessing)
	require.NoError(t, err)

	cancelled, err := f.orders.SetStatus(ctx, admin, order.ID, orders.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.qty(t, 1, 1))
	assert.Equal(t, 5, f.qty(t, 2, 2))

	reason := entity.ReasonOrderCancel
	changes, err := f.ledger.ListChanges(ctx, ledger.ChangeFilter{Reason: &reason})
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, order.ID.String(), c.Reference)
	}
}

func TestSetStatus_CancelAfterShippingKeepsStock(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 1, BranchID: 1}: 5}, orders.Config{})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	for _, st := range []orders.Status{orders.StatusProcessing, orders.StatusShipped, orders.StatusCancelled} {
		_, err = f.orders.SetStatus(ctx, admin, order.ID, st)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.qty(t, 1, 1))
}

func TestList_FiltersByCustomer(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{{ProductID: 1, BranchID: 1}: 5}, orders.Config{})
	ctx := context.Background()

	first, err := f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	other := checkout(orders.LineInput{ProductID: 1, Quantity: 1})
	other.CustomerID = 6
	_, err = f.orders.CreateOrder(ctx, entity.Actor{CustomerID: 6}, other)
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, customer, checkout(orders.LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	cid := int64(5)
	list, err := f.orders.List(ctx, orders.ListFilter{CustomerID: &cid})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = f.orders.GetForActor(ctx, entity.Actor{CustomerID: 6}, first.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateOrder_ReversedLineOrderNeverContends(t *testing.T) {
	f := newFixture(t, map[entity.StockKey]int{
		{ProductID: 1, BranchID: 1}: 100,
		{ProductID: 2, BranchID: 1}: 100,
	}, orders.Config{})
	once := tx.RetryPolicy{Attempts: 1}
	ledgerSvc := ledger.NewService(f.store.Inventory(), f.store, f.store.Events(), ledger.Config{Retry: once})
	svc := orders.NewService(f.store.Orders(), ledgerSvc, catalog.NewService(f.store.Catalog(), f.store.Catalog()),
		f.store, f.store.Events(), f.store.Audit(), orders.Config{Retry: once})
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines := []orders.LineInput{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}}
			if i%2 == 1 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			if _, err := svc.CreateOrder(ctx, customer, checkout(lines...)); err != nil {
				t.Errorf("order %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100-n, f.qty(t, 1, 1))
	assert.Equal(t, 100-n, f.qty(t, 2, 1))
	list, err := svc.List(ctx, orders.ListFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, n)
}
