// Package idempotency defines the contract shared by the idempotency key
// stores and the HTTP middleware that replays completed requests.
package idempotency

import (
	"context"
	"net/http"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is the cached HTTP response of a finished request.
type Replay struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store manages idempotency keys.
//
// AcquireKey returns:
//   - (nil, nil) if the key was acquired
//   - (replay, nil) if the operation already finished
//   - (nil, error) if the key is held by another request or was used for a
//     different request
//
// ReleaseKey forgets an acquired key without storing a response, so a retry
// with the same key runs the operation again.
type Store interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	ReleaseKey(ctx context.Context, key string) error
}

// NormalizeStatus defaults a missing status code to 200.
func NormalizeStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// NormalizeContentType defaults a missing content type to JSON.
func NormalizeContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
