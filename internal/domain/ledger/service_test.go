package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/tx"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/infrastructure/storage/memory"
)

var admin = entity.Actor{UserID: "admin-1", Admin: true}

func newLedger(t *testing.T, opts ...memory.Option) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(opts...)
	svc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: tx.DefaultRetryPolicy()})
	return svc, store
}

func restock(t *testing.T, svc *ledger.Service, productID, branchID int64, qty int) {
	t.Helper()
	_, err := svc.Adjust(context.Background(), admin, ledger.Adjustment{
		ProductID: productID, BranchID: branchID, Delta: qty, Reason: entity.ReasonRestock,
	})
	require.NoError(t, err)
}

func TestAdjust_CreatesRecordOnFirstEvent(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	_, err := svc.Query(ctx, 42, 1)
	require.True(t, apperror.IsNotFound(err))

	change, err := svc.Adjust(ctx, admin, ledger.Adjustment{
		ProductID: 42, BranchID: 1, Delta: 5, Reason: entity.ReasonRestock, Reference: "p-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, change.OldQuantity)
	assert.Equal(t, 5, change.NewQuantity)
	assert.Equal(t, "admin-1", change.ActorID)
	assert.Equal(t, "p-1", change.Reference)
	assert.NotZero(t, change.Seq)

	rec, err := svc.Query(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Quantity)
	assert.Equal(t, entity.DefaultStockAlertLevel, rec.StockAlertLevel)
	assert.True(t, rec.LowStock())
}

func TestAdjust_InsufficientStockLeavesRecordUnchanged(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 42, 1, 3)

	_, err := svc.Adjust(ctx, admin, ledger.Adjustment{
		ProductID: 42, BranchID: 1, Delta: -5, Reason: entity.ReasonOfflineSale,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 5, appErr.Details["requested"])
	assert.Equal(t, 3, appErr.Details["available"])

	rec, err := svc.Query(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Quantity)

	changes, err := svc.ListChanges(ctx, ledger.ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestAdjust_RejectsInvalidInput(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name string
		adj  ledger.Adjustment
		code string
	}{
		{"zero delta", ledger.Adjustment{ProductID: 1, BranchID: 1, Delta: 0, Reason: entity.ReasonRestock}, apperror.CodeInvalidQuantity},
		{"unknown reason", ledger.Adjustment{ProductID: 1, BranchID: 1, Delta: 1, Reason: "gift"}, apperror.CodeValidation},
		{"missing branch", ledger.Adjustment{ProductID: 1, Delta: 1, Reason: entity.ReasonRestock}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Adjust(ctx, admin, tt.adj)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestApply_IsAllOrNothing(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 1, 1, 3)

	_, err := svc.Apply(ctx, admin, []ledger.Adjustment{
		{ProductID: 1, BranchID: 1, Delta: -3, Reason: entity.ReasonOrder},
		{ProductID: 2, BranchID: 1, Delta: -1, Reason: entity.ReasonOrder},
	})
	require.True(t, apperror.IsInsufficientStock(err))

	rec, err := svc.Query(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Quantity)

	changes, err := svc.ListChanges(ctx, ledger.ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, changes, 1, "failed batch must not log anything")
}

func TestApply_SameKeyTwiceIsAppliedInOrder(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 1, 1, 2)

	changes, err := svc.Apply(ctx, admin, []ledger.Adjustment{
		{ProductID: 1, BranchID: 1, Delta: 3, Reason: entity.ReasonRestock},
		{ProductID: 1, BranchID: 1, Delta: -5, Reason: entity.ReasonOfflineSale},
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, 5, changes[0].NewQuantity)
	assert.Equal(t, 5, changes[1].OldQuantity)
	assert.Equal(t, 0, changes[1].NewQuantity)
}

func TestConcurrentDecrements_NeverGoNegative(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 42, 1, 50)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Adjust(ctx, admin, ledger.Adjustment{
				ProductID: 42, BranchID: 1, Delta: -1, Reason: entity.ReasonOfflineSale,
			})
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.IsInsufficientStock(err):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, ok.Load())
	assert.EqualValues(t, 50, short.Load())

	rec, err := svc.Query(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Quantity)
}

func TestChangeLog_ReconstructsQuantity(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	deltas := []int{10, -3, 7, -14, 5, -1}
	for _, d := range deltas {
		reason := entity.ReasonRestock
		if d < 0 {
			reason = entity.ReasonOfflineSale
		}
		_, err := svc.Adjust(ctx, admin, ledger.Adjustment{ProductID: 9, BranchID: 2, Delta: d, Reason: reason})
		require.NoError(t, err)
	}

	changes, err := svc.ListChanges(ctx, ledger.ChangeFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, changes, len(deltas))

	sum := 0
	for i, c := range changes {
		sum += c.Delta()
		if i > 0 {
			assert.Greater(t, changes[i-1].Seq, c.Seq, "changes are listed newest first")
		}
	}

	rec, err := svc.Query(ctx, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, rec.Quantity, sum)

	rc, err := svc.Reconcile(ctx, 9, 2)
	require.NoError(t, err)
	assert.True(t, rc.Consistent)
	assert.Equal(t, 4, rc.LoggedQuantity)
}

func TestQuery_IsIdempotent(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 5, 1, 7)

	first, err := svc.Query(ctx, 5, 1)
	require.NoError(t, err)
	second, err := svc.Query(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSetQuantity(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 5, 1, 3)

	change, err := svc.SetQuantity(ctx, admin, 5, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, change.OldQuantity)
	assert.Equal(t, 7, change.NewQuantity)
	assert.Equal(t, entity.ReasonCorrection, change.Reason)

	_, err = svc.SetQuantity(ctx, admin, 5, 1, 7)
	require.NoError(t, err)

	changes, err := svc.ListChanges(ctx, ledger.ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, changes, 2, "setting the current quantity is not logged")

	_, err = svc.SetQuantity(ctx, admin, 5, 1, -1)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestStockLowEvent_PublishedWhenThresholdCrossed(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 5, 1, 12)

	_, err := svc.Adjust(ctx, admin, ledger.Adjustment{ProductID: 5, BranchID: 1, Delta: -3, Reason: entity.ReasonOfflineSale})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, admin, ledger.Adjustment{ProductID: 5, BranchID: 1, Delta: -1, Reason: entity.ReasonOfflineSale})
	require.NoError(t, err)

	var low []events.Event
	for _, e := range store.Events().All() {
		if e.EventType == events.TypeStockLow {
			low = append(low, e)
		}
	}
	require.Len(t, low, 1)
	payload, ok := low[0].Payload.(ledger.StockLowPayload)
	require.True(t, ok)
	assert.Equal(t, 9, payload.Quantity)
	assert.Equal(t, "5:1", low[0].AggregateID)
}

func TestSetAlertLevel(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 5, 1, 12)

	rec, err := svc.SetAlertLevel(ctx, admin, 5, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Quantity)
	assert.False(t, rec.LowStock())

	_, err = svc.SetAlertLevel(ctx, admin, 5, 1, -1)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestListRecords_Filters(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 1, 1, 50)
	restock(t, svc, 2, 1, 4)
	restock(t, svc, 1, 2, 3)

	branch := int64(1)
	recs, err := svc.ListRecords(ctx, ledger.RecordFilter{BranchID: &branch})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0].ProductID)
	assert.Equal(t, int64(2), recs[1].ProductID)

	low, err := svc.ListRecords(ctx, ledger.RecordFilter{LowStockOnly: true})
	require.NoError(t, err)
	assert.Len(t, low, 2)
}

func TestAdjust_LockTimeoutIsContention(t *testing.T) {
	store := memory.NewStore(memory.WithLockTimeout(30 * time.Millisecond))
	svc := ledger.NewService(store.Inventory(), store, nil, ledger.Config{
		Retry: tx.RetryPolicy{Attempts: 2, Backoff: time.Millisecond},
	})
	ctx := context.Background()
	restock(t, svc, 1, 1, 5)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.RunInTransaction(ctx, func(ctx context.Context) error {
			if _, err := store.Inventory().LockRecords(ctx, []entity.StockKey{{ProductID: 1, BranchID: 1}}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := svc.Adjust(ctx, admin, ledger.Adjustment{ProductID: 1, BranchID: 1, Delta: -1, Reason: entity.ReasonOfflineSale})
	assert.True(t, apperror.IsContention(err), "got %v", err)

	// Other keys are not blocked.
	_, err = svc.Adjust(ctx, admin, ledger.Adjustment{ProductID: 1, BranchID: 2, Delta: 1, Reason: entity.ReasonRestock})
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	rec, err := svc.Query(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Quantity)
}

func TestApply_OppositeKeyOrderNeverContends(t *testing.T) {
	store := memory.NewStore()
	svc := ledger.NewService(store.Inventory(), store, nil, ledger.Config{
		Retry: tx.RetryPolicy{Attempts: 1},
	})
	ctx := context.Background()
	restock(t, svc, 1, 1, 1000)
	restock(t, svc, 2, 1, 1000)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adjs := []ledger.Adjustment{
				{ProductID: 1, BranchID: 1, Delta: -1, Reason: entity.ReasonCorrection},
				{ProductID: 2, BranchID: 1, Delta: 1, Reason: entity.ReasonCorrection},
			}
			if i%2 == 1 {
				adjs = []ledger.Adjustment{
					{ProductID: 2, BranchID: 1, Delta: -1, Reason: entity.ReasonCorrection},
					{ProductID: 1, BranchID: 1, Delta: 1, Reason: entity.ReasonCorrection},
				}
			}
			if _, err := svc.Apply(ctx, admin, adjs); err != nil {
				t.Errorf("apply %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	a, err := svc.Query(ctx, 1, 1)
	require.NoError(t, err)
	b, err := svc.Query(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000, a.Quantity)
	assert.Equal(t, 1000, b.Quantity)

	for _, pid := range []int64{1, 2} {
		rc, err := svc.Reconcile(ctx, pid, 1)
		require.NoError(t, err)
		assert.True(t, rc.Consistent)
	}
}

func TestReconcile_ConsistentWhileKeyIsWritten(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	restock(t, svc, 3, 1, 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 300 {
			delta := 1
			if i%2 == 1 {
				delta = -1
			}
			if _, err := svc.Adjust(ctx, admin, ledger.Adjustment{
				ProductID: 3, BranchID: 1, Delta: delta, Reason: entity.ReasonCorrection,
			}); err != nil {
				t.Errorf("adjust: %v", err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			rc, err := svc.Reconcile(ctx, 3, 1)
			require.NoError(t, err)
			assert.True(t, rc.Consistent)
			assert.Equal(t, 10, rc.Quantity)
			return
		default:
		}
		rc, err := svc.Reconcile(ctx, 3, 1)
		require.NoError(t, err)
		require.True(t, rc.Consistent, "quantity %d, logged %d", rc.Quantity, rc.LoggedQuantity)
	}
}
