package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gamestore/internal/infrastructure/storage/postgres"
)

var _ postgres.OutboxHandler = (*StreamSink)(nil)

// StreamSink delivers outbox messages to a Redis stream.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamSink creates a sink that appends to stream, trimming it to roughly
// maxLen entries. maxLen <= 0 disables trimming.
func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Handle implements postgres.OutboxHandler.
func (s *StreamSink) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"message_id":     msg.ID.String(),
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID,
			"event_type":     msg.EventType,
			"payload":        string(msg.Payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
