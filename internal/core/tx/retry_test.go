package tx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/tx"
)

// countingManager runs fn directly and counts transactions.
type countingManager struct {
	calls int
}

func (m *countingManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

var fastRetry = tx.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

func TestRunWithRetry_RetriesContention(t *testing.T) {
	m := &countingManager{}
	runs := 0
	err := tx.RunWithRetry(context.Background(), m, fastRetry, func(context.Context) error {
		runs++
		if runs < 3 {
			return apperror.NewContention("inventory", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, m.calls)
}

func TestRunWithRetry_GivesUpAfterAttempts(t *testing.T) {
	m := &countingManager{}
	err := tx.RunWithRetry(context.Background(), m, fastRetry, func(context.Context) error {
		return apperror.NewContention("inventory", nil)
	})
	assert.True(t, apperror.IsContention(err))
	assert.Equal(t, 3, m.calls)
}

func TestRunWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	m := &countingManager{}
	boom := errors.New("boom")
	err := tx.RunWithRetry(context.Background(), m, fastRetry, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.calls)
}

func TestRunWithRetry_NestedCallDoesNotRetry(t *testing.T) {
	m := &countingManager{}
	inner := 0
	err := tx.RunWithRetry(context.Background(), m, fastRetry, func(ctx context.Context) error {
		return tx.RunWithRetry(ctx, m, fastRetry, func(context.Context) error {
			inner++
			return apperror.NewContention("order", nil)
		})
	})
	assert.True(t, apperror.IsContention(err))
	// Three outer attempts, each running the nested call once.
	assert.Equal(t, 3, inner)
	assert.Equal(t, 6, m.calls)
}

type snapshotManager struct {
	countingManager
	snapshots int
}

func (m *snapshotManager) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	m.snapshots++
	return fn(ctx)
}

func TestReadSnapshot_PrefersSnapshotter(t *testing.T) {
	plain := &countingManager{}
	assert.NoError(t, tx.ReadSnapshot(context.Background(), plain, func(context.Context) error { return nil }))
	assert.Equal(t, 1, plain.calls)

	snap := &snapshotManager{}
	assert.NoError(t, tx.ReadSnapshot(context.Background(), snap, func(context.Context) error { return nil }))
	assert.Equal(t, 1, snap.snapshots)
	assert.Zero(t, snap.calls)
}
