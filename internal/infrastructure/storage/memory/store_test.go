package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/domain/ledger"
)

var key = entity.StockKey{ProductID: 42, BranchID: 1}

func TestRunInTransaction_RollbackDiscardsStagedWrites(t *testing.T) {
	s := NewSeeded()
	inv := s.Inventory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		recs, err := inv.LockRecords(ctx, []entity.StockKey{key})
		require.NoError(t, err)
		rec := recs[key]
		rec.Quantity = 1
		require.NoError(t, inv.SaveRecord(ctx, rec))

		// The transaction sees its own write, other readers do not.
		again, err := inv.LockRecords(ctx, []entity.StockKey{key})
		require.NoError(t, err)
		assert.Equal(t, 1, again[key].Quantity)
		stored, err := inv.GetRecord(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, 25, stored.Quantity)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := inv.GetRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Quantity)
}

func TestRunInTransaction_CommitAppliesWrites(t *testing.T) {
	s := NewSeeded()
	inv := s.Inventory()
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		recs, err := inv.LockRecords(ctx, []entity.StockKey{key})
		if err != nil {
			return err
		}
		rec := recs[key]
		rec.Quantity = 30
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return inv.SaveRecord(ctx, rec)
		})
	})
	require.NoError(t, err)

	stored, err := inv.GetRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.Quantity)
}

func TestLock_TimesOutWithContention(t *testing.T) {
	s := NewSeeded(WithLockTimeout(20 * time.Millisecond))
	inv := s.Inventory()
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := inv.LockRecords(ctx, []entity.StockKey{key})
			close(held)
			<-done
			return err
		})
	}()
	<-held

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := inv.LockRecords(ctx, []entity.StockKey{key})
		return err
	})
	assert.True(t, apperror.IsContention(err), "got %v", err)
	close(done)

	assert.Eventually(t, func() bool {
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := inv.LockRecords(ctx, []entity.StockKey{key})
			return err
		}) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestLock_RequiresTransaction(t *testing.T) {
	s := NewSeeded()
	_, err := s.Inventory().LockRecords(context.Background(), []entity.StockKey{key})
	assert.Error(t, err)
}

func TestSaveRecord_RejectsNegativeQuantity(t *testing.T) {
	s := NewSeeded()
	err := s.Inventory().SaveRecord(context.Background(), entity.InventoryRecord{ProductID: 42, BranchID: 1, Quantity: -1})
	assert.Error(t, err)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, page(items, 2, 2))
	assert.Equal(t, []int{5}, page(items, 10, 4))
	assert.Empty(t, page(items, 2, 9))
	assert.Equal(t, items, page(items, 0, 0))
}

func TestNewSeeded_OpeningBalancesAreLogged(t *testing.T) {
	s := NewSeeded()
	inv := s.Inventory()
	ctx := context.Background()

	for k, qty := range Demo().Stock {
		rec, err := inv.GetRecord(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, qty, rec.Quantity)

		logged, err := inv.SumChanges(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, qty, logged, "opening balance of %v is in the log", k)
	}

	branches, err := s.Catalog().ListBranches(ctx)
	require.NoError(t, err)
	assert.Len(t, branches, 2)
}

func TestAppendChange_SeqFollowsCommitOrder(t *testing.T) {
	s := NewStore()
	inv := s.Inventory()
	ctx := context.Background()

	first := &entity.StockChange{ProductID: 1, BranchID: 1, NewQuantity: 1, Reason: entity.ReasonRestock}
	second := &entity.StockChange{ProductID: 2, BranchID: 1, NewQuantity: 1, Reason: entity.ReasonRestock}

	staged := make(chan struct{})
	commit := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := inv.AppendChange(ctx, first); err != nil {
				return err
			}
			close(staged)
			<-commit
			return nil
		})
	}()
	<-staged

	// Staged first, committed second.
	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error {
		return inv.AppendChange(ctx, second)
	}))
	close(commit)
	require.NoError(t, <-done)

	assert.Greater(t, first.Seq, second.Seq)
	changes, err := inv.ListChanges(ctx, ledger.ChangeFilter{})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, int64(1), changes[0].ProductID, "newest commit is listed first")
	assert.Equal(t, first.Seq, changes[0].Seq)
}

func TestReadSnapshot_HoldsOffCommits(t *testing.T) {
	s := NewSeeded()
	inv := s.Inventory()
	ctx := context.Background()

	inside := make(chan struct{})
	leave := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.ReadSnapshot(ctx, func(ctx context.Context) error {
			before, err := inv.GetRecord(ctx, key)
			if err != nil {
				return err
			}
			close(inside)
			<-leave
			logged, err := inv.SumChanges(ctx, key)
			if err != nil {
				return err
			}
			if before.Quantity != logged {
				return errors.New("record and change log read from different states")
			}
			return nil
		})
	}()
	<-inside

	committed := make(chan error, 1)
	go func() {
		committed <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			recs, err := inv.LockRecords(ctx, []entity.StockKey{key})
			if err != nil {
				return err
			}
			rec := recs[key]
			old := rec.Quantity
			rec.Quantity--
			if err := inv.SaveRecord(ctx, rec); err != nil {
				return err
			}
			return inv.AppendChange(ctx, &entity.StockChange{
				ProductID: key.ProductID, BranchID: key.BranchID,
				OldQuantity: old, NewQuantity: rec.Quantity, Reason: entity.ReasonOfflineSale,
			})
		})
	}()

	select {
	case <-committed:
		t.Fatal("commit finished while a snapshot was open")
	case <-time.After(20 * time.Millisecond):
	}
	close(leave)
	require.NoError(t, <-done)
	require.NoError(t, <-committed)

	rec, err := inv.GetRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 24, rec.Quantity)
}
