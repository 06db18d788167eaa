package numerator

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps sequences in sys_sequences. The querier is resolved per
// call so reservations join the caller's transaction.
type PostgresStore struct {
	querier func(ctx context.Context) Querier
}

// NewPostgresStore creates a store resolving its querier from ctx.
func NewPostgresStore(querier func(ctx context.Context) Querier) *PostgresStore {
	return &PostgresStore{querier: querier}
}

func (p *PostgresStore) Reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := p.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve sequence: %w", err)
	}
	return last, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value int64) error {
	var last int64
	err := p.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&last)
	if err != nil {
		return fmt.Errorf("set sequence: %w", err)
	}
	return nil
}

// MemoryStore keeps sequences in process.
type MemoryStore struct {
	mu   sync.Mutex
	vals map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: make(map[string]int64)}
}

func (m *MemoryStore) Reserve(_ context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] += n
	return m.vals[key], nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}
