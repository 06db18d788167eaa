// Package audit defines the status-change audit trail written by the order
// and return workflows. Quantity changes are audited by the ledger's own
// stock change log.
package audit

import (
	"context"

	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate       Action = "create"
	ActionStatusChange Action = "status_change"
)

// Entry is one audited change.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	Actor      entity.Actor
	Changes    map[string]any
}

// Recorder persists audit entries within the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// StatusChange builds the changes map for a status transition.
func StatusChange(from, to string) map[string]any {
	return map[string]any{"status": map[string]any{"old": from, "new": to}}
}

// NopRecorder drops entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
