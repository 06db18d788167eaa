package tx

import (
	"context"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/pkg/logger"
)

// RetryPolicy bounds automatic retries of transactions that failed on lock
// contention.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 20ms linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 20 * time.Millisecond}
}

type retryScopeKey struct{}

// RunWithRetry runs fn in a transaction and repeats the whole transaction when
// it fails with a retryable Contention error.
//
// Only the outermost call retries: a nested call joins the enclosing
// transaction and returns its error as is, because a failed transaction cannot
// be resumed half way.
func RunWithRetry(ctx context.Context, m Manager, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if ctx.Value(retryScopeKey{}) != nil {
		return m.RunInTransaction(ctx, fn)
	}
	ctx = context.WithValue(ctx, retryScopeKey{}, true)

	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = m.RunInTransaction(ctx, fn)
		if err == nil || !apperror.IsContention(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn(ctx, "transaction hit lock contention, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(policy.Backoff * time.Duration(attempt)):
		}
	}
	return err
}
