// Package memory provides an in-process implementation of every repository
// and of tx.Manager. It backs the server when no database is configured and
// is the test double of the domain packages.
//
// Transactions stage their writes and apply them at commit while still
// holding their row locks, so a reader never sees a half-applied operation.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/tx"
	"gamestore/internal/domain/audit"
	"gamestore/internal/domain/cart"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/offlinesale"
	"gamestore/internal/domain/orders"
	"gamestore/internal/domain/restock"
	"gamestore/internal/domain/returns"
)

var (
	_ tx.Manager     = (*Store)(nil)
	_ tx.Snapshotter = (*Store)(nil)
)

// DefaultLockTimeout bounds every row lock wait.
const DefaultLockTimeout = 2 * time.Second

// Store keeps all state in maps guarded by mu. Row locks live in a separate
// table so waiting for a row never blocks readers.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]entity.Product
	branches  map[int64]entity.Branch
	suppliers map[int64]entity.Supplier
	records   map[entity.StockKey]entity.InventoryRecord
	changes   []entity.StockChange
	orders    map[id.ID]*orders.Order
	returns   map[id.ID]*returns.ReturnRequest
	purchases []restock.Purchase
	sales     []offlinesale.Sale
	events    []events.Event
	audit     []audit.Entry
	carts     map[int64]map[int64]cart.Item

	seq atomic.Int64

	lockMu      sync.Mutex
	locks       map[any]chan struct{}
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long a transaction waits for a row lock before it
// fails with Contention.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		products:    make(map[int64]entity.Product),
		branches:    make(map[int64]entity.Branch),
		suppliers:   make(map[int64]entity.Supplier),
		records:     make(map[entity.StockKey]entity.InventoryRecord),
		orders:      make(map[id.ID]*orders.Order),
		returns:     make(map[id.ID]*returns.ReturnRequest),
		carts:       make(map[int64]map[int64]cart.Item),
		locks:       make(map[any]chan struct{}),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Transactions ---

type txKey struct{}

type txState struct {
	held    map[any]struct{}
	chans   []chan struct{}
	records map[entity.StockKey]entity.InventoryRecord
	ops     []func()
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	st := &txState{
		held:    make(map[any]struct{}),
		records: make(map[entity.StockKey]entity.InventoryRecord),
	}
	defer s.release(st)

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}

	s.mu.Lock()
	for _, op := range st.ops {
		op()
	}
	s.mu.Unlock()
	return nil
}

type snapshotKey struct{}

// ReadSnapshot runs fn while commits are held off, so every read in fn sees
// the same committed state. fn must not write.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil || ctx.Value(snapshotKey{}) != nil {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, snapshotKey{}, true))
}

// rlock read-locks mu unless ctx already runs under ReadSnapshot.
func (s *Store) rlock(ctx context.Context) func() {
	if ctx.Value(snapshotKey{}) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// write stages op in the current transaction or applies it immediately.
// op runs with mu held.
func (s *Store) write(ctx context.Context, op func()) {
	if st := txFrom(ctx); st != nil {
		st.ops = append(st.ops, op)
		return
	}
	s.mu.Lock()
	op()
	s.mu.Unlock()
}

// --- Row locks ---

type orderLock struct{ id id.ID }
type returnLock struct{ id id.ID }

func (s *Store) lock(ctx context.Context, key any, resource string) error {
	st := txFrom(ctx)
	if st == nil {
		return fmt.Errorf("lock %s requires transaction context", resource)
	}
	if _, ok := st.held[key]; ok {
		return nil
	}

	s.lockMu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.lockMu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		st.held[key] = struct{}{}
		st.chans = append(st.chans, ch)
		return nil
	case <-timer.C:
		return apperror.NewContention(resource, fmt.Errorf("lock wait exceeded %s", s.lockTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release(st *txState) {
	for i := len(st.chans) - 1; i >= 0; i-- {
		<-st.chans[i]
	}
}

// --- Accessors ---

// Inventory returns the ledger repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

// Returns returns the return request repository.
func (s *Store) Returns() *ReturnRepo { return &ReturnRepo{s: s} }

// Carts returns the cart repository.
func (s *Store) Carts() *CartRepo { return &CartRepo{s: s} }

// Catalog returns the reference data repository.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

// Purchases returns the purchase repository.
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s: s} }

// Sales returns the sale repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Events returns the event publisher.
func (s *Store) Events() *EventLog { return &EventLog{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

// Ping reports readiness. The memory store is always ready.
func (s *Store) Ping(context.Context) error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
