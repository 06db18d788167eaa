package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/idempotency"
)

const idempotencyKeyPrefix = "idem:"

// pendingLease bounds how long a crashed request can hold a key.
const pendingLease = time.Minute

type idempotencyRecord struct {
	UserID      string             `json:"user_id"`
	Operation   string             `json:"operation"`
	RequestHash string             `json:"request_hash"`
	Status      idempotency.Status `json:"status"`
	StatusCode  int                `json:"status_code,omitempty"`
	ContentType string             `json:"content_type,omitempty"`
	Response    json.RawMessage    `json:"response,omitempty"`
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency keys in Redis. A pending key lives for
// pendingLease; a finished one for the configured TTL.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new Redis idempotency store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// AcquireKey implements idempotency.Store.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	pending, err := json.Marshal(idempotencyRecord{
		UserID:      userID,
		Operation:   operation,
		RequestHash: requestHash,
		Status:      idempotency.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, pending, pendingLease).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Lease expired between SETNX and GET.
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}

	if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	if record.Status == idempotency.StatusPending {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return &idempotency.Replay{
		StatusCode:  idempotency.NormalizeStatus(record.StatusCode),
		ContentType: idempotency.NormalizeContentType(record.ContentType),
		Body:        record.Response,
	}, nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey implements idempotency.Store.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

// ReleaseKey implements idempotency.Store.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read idempotency key: %w", err)
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("decode idempotency key: %w", err)
	}

	record.Status = status
	record.StatusCode = statusCode
	record.ContentType = contentType
	record.Response = nil
	if response != nil {
		body, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		record.Response = body
	}

	updated, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKeyPrefix+key, updated, s.ttl).Err()
}
