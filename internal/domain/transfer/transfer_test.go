package transfer_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/tx"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/transfer"
	"gamestore/internal/infrastructure/storage/memory"
)

var admin = entity.Actor{UserID: "admin-1", Admin: true}

func newServices(t *testing.T) (*transfer.Service, *ledger.Service) {
	t.Helper()
	store := memory.NewSeeded()
	ledgerSvc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: tx.DefaultRetryPolicy()})
	catalogSvc := catalog.NewService(store.Catalog(), store.Catalog())
	return transfer.NewService(ledgerSvc, catalogSvc), ledgerSvc
}

func quantity(t *testing.T, svc *ledger.Service, productID, branchID int64) int {
	t.Helper()
	rec, err := svc.Query(context.Background(), productID, branchID)
	require.NoError(t, err)
	return rec.Quantity
}

func TestTransfer_ConservesTotal(t *testing.T) {
	svc, ledgerSvc := newServices(t)
	ctx := context.Background()
	before := quantity(t, ledgerSvc, 42, 1) + quantity(t, ledgerSvc, 42, 2)

	res, err := svc.Transfer(ctx, admin, transfer.Input{ProductID: 42, FromBranchID: 1, ToBranchID: 2, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, res.FromQuantity)
	assert.Equal(t, 13, res.ToQuantity)
	assert.Equal(t, before, quantity(t, ledgerSvc, 42, 1)+quantity(t, ledgerSvc, 42, 2))

	changes, err := ledgerSvc.ListChanges(ctx, ledger.ChangeFilter{Reference: res.TransferID.String()})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	reasons := []entity.ChangeReason{changes[0].Reason, changes[1].Reason}
	assert.ElementsMatch(t, []entity.ChangeReason{entity.ReasonTransferOut, entity.ReasonTransferIn}, reasons)
}

func TestTransfer_CreatesDestinationRecord(t *testing.T) {
	svc, ledgerSvc := newServices(t)

	res, err := svc.Transfer(context.Background(), admin, transfer.Input{ProductID: 43, FromBranchID: 1, ToBranchID: 2, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 8, res.FromQuantity)
	assert.Equal(t, 4, res.ToQuantity)
	assert.Equal(t, 4, quantity(t, ledgerSvc, 43, 2))
}

func TestTransfer_Rejections(t *testing.T) {
	svc, ledgerSvc := newServices(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   transfer.Input
		code string
	}{
		{"same branch", transfer.Input{ProductID: 42, FromBranchID: 1, ToBranchID: 1, Quantity: 1}, apperror.CodeValidation},
		{"zero quantity", transfer.Input{ProductID: 42, FromBranchID: 1, ToBranchID: 2}, apperror.CodeInvalidQuantity},
		{"unknown branch", transfer.Input{ProductID: 42, FromBranchID: 1, ToBranchID: 9, Quantity: 1}, apperror.CodeNotFound},
		{"insufficient source", transfer.Input{ProductID: 100, FromBranchID: 2, ToBranchID: 1, Quantity: 4}, apperror.CodeInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, admin, tt.in)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}

	assert.Equal(t, 5, quantity(t, ledgerSvc, 100, 1))
	assert.Equal(t, 3, quantity(t, ledgerSvc, 100, 2))
}

func TestTransfer_OppositeDirectionsConcurrently(t *testing.T) {
	store := memory.NewSeeded()
	// One attempt: a lock cycle would surface as Contention instead of
	// being retried away.
	ledgerSvc := ledger.NewService(store.Inventory(), store, store.Events(), ledger.Config{Retry: tx.RetryPolicy{Attempts: 1}})
	svc := transfer.NewService(ledgerSvc, catalog.NewService(store.Catalog(), store.Catalog()))
	ctx := context.Background()
	before := quantity(t, ledgerSvc, 42, 1) + quantity(t, ledgerSvc, 42, 2)

	var wg sync.WaitGroup
	for i := range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := transfer.Input{ProductID: 42, FromBranchID: 1, ToBranchID: 2, Quantity: 1}
			if i%2 == 1 {
				in.FromBranchID, in.ToBranchID = 2, 1
			}
			if _, err := svc.Transfer(ctx, admin, in); err != nil {
				t.Errorf("transfer %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, quantity(t, ledgerSvc, 42, 1))
	assert.Equal(t, 8, quantity(t, ledgerSvc, 42, 2))
	assert.Equal(t, before, quantity(t, ledgerSvc, 42, 1)+quantity(t, ledgerSvc, 42, 2))
	for _, branch := range []int64{1, 2} {
		rc, err := ledgerSvc.Reconcile(ctx, 42, branch)
		require.NoError(t, err)
		assert.True(t, rc.Consistent, "branch %d", branch)
	}
}
