package ledger

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/tx"
	"gamestore/internal/domain/events"
	"gamestore/pkg/logger"
)

// DefaultChangeLimit is the page size of stock change listings.
const DefaultChangeLimit = 50

// Adjustment is a signed quantity change for one key.
type Adjustment struct {
	ProductID int64
	BranchID  int64
	Delta     int
	Reason    entity.ChangeReason
	// Reference identifies the operation that caused the change.
	Reference string
}

// Key returns the inventory key of the adjustment.
func (a Adjustment) Key() entity.StockKey {
	return entity.StockKey{ProductID: a.ProductID, BranchID: a.BranchID}
}

// StockLowPayload is the payload of events.TypeStockLow.
type StockLowPayload struct {
	ProductID       int64 `json:"productId"`
	BranchID        int64 `json:"branchId"`
	Quantity        int   `json:"quantity"`
	StockAlertLevel int   `json:"stockAlertLevel"`
}

// Reconciliation compares a record with the replayed change log.
type Reconciliation struct {
	ProductID      int64 `json:"productId"`
	BranchID       int64 `json:"branchId"`
	Quantity       int   `json:"quantity"`
	LoggedQuantity int   `json:"loggedQuantity"`
	Consistent     bool  `json:"consistent"`
}

// Config holds ledger settings.
type Config struct {
	Retry tx.RetryPolicy
}

// Service is the only writer of inventory quantities.
type Service struct {
	repo      Repository
	txManager tx.Manager
	events    events.Publisher
	retry     tx.RetryPolicy
	now       func() time.Time
}

// NewService creates a new ledger service.
func NewService(repo Repository, txManager tx.Manager, publisher events.Publisher, cfg Config) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		events:    publisher,
		retry:     cfg.Retry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Adjust applies one signed delta and returns the logged change; the new
// quantity is change.NewQuantity.
func (s *Service) Adjust(ctx context.Context, actor entity.Actor, adj Adjustment) (entity.StockChange, error) {
	changes, err := s.Apply(ctx, actor, []Adjustment{adj})
	if err != nil {
		return entity.StockChange{}, err
	}
	return changes[0], nil
}

// Apply applies a batch of adjustments as one unit. Rows are locked in
// ascending key order, the whole batch is validated against the locked
// quantities, and only then written. Any failure leaves every row unchanged.
//
// Called inside an enclosing transaction, Apply joins it.
func (s *Service) Apply(ctx context.Context, actor entity.Actor, adjs []Adjustment) ([]entity.StockChange, error) {
	if len(adjs) == 0 {
		return nil, nil
	}
	for _, a := range adjs {
		if err := validateAdjustment(a); err != nil {
			s.logRejected(ctx, actor, adjs, err)
			return nil, err
		}
	}

	var staged []*entity.StockChange
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		staged = staged[:0]

		keys := make([]entity.StockKey, 0, len(adjs))
		for _, a := range adjs {
			keys = append(keys, a.Key())
		}

		records, err := s.repo.LockRecords(ctx, entity.SortedKeys(keys))
		if err != nil {
			return fmt.Errorf("lock inventory records: %w", err)
		}

		if err := checkFloor(records, adjs); err != nil {
			return err
		}

		now := s.now()
		for _, a := range adjs {
			rec, ok := records[a.Key()]
			if !ok {
				rec = entity.NewInventoryRecord(a.Key())
			}
			wasLow := rec.LowStock()

			change := entity.StockChange{
				ID:          id.New(),
				ProductID:   a.ProductID,
				BranchID:    a.BranchID,
				OldQuantity: rec.Quantity,
				NewQuantity: rec.Quantity + a.Delta,
				Reason:      a.Reason,
				Reference:   a.Reference,
				ActorID:     actor.ID(),
				ChangedAt:   now,
			}

			rec.Quantity = change.NewQuantity
			rec.LastUpdate = now
			if err := s.repo.SaveRecord(ctx, rec); err != nil {
				return fmt.Errorf("save inventory record: %w", err)
			}
			if err := s.repo.AppendChange(ctx, &change); err != nil {
				return fmt.Errorf("append stock change: %w", err)
			}
			records[a.Key()] = rec
			staged = append(staged, &change)

			if !wasLow && rec.LowStock() {
				if err := s.publishStockLow(ctx, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logRejected(ctx, actor, adjs, err)
		return nil, err
	}

	// Read back after commit: a store may number the changes only then.
	changes := make([]entity.StockChange, 0, len(staged))
	for _, c := range staged {
		changes = append(changes, *c)
	}
	for _, c := range changes {
		logger.Info(ctx, "stock adjusted",
			"product_id", c.ProductID,
			"branch_id", c.BranchID,
			"old_quantity", c.OldQuantity,
			"new_quantity", c.NewQuantity,
			"reason", c.Reason,
			"reference", c.Reference,
			"actor", actor.ID(),
		)
	}
	return changes, nil
}

// SetQuantity sets the quantity of a key to an absolute value. The difference
// is logged as a correction; setting the current value changes nothing and
// returns a change with equal old and new quantity that is not logged.
func (s *Service) SetQuantity(ctx context.Context, actor entity.Actor, productID, branchID int64, quantity int) (entity.StockChange, error) {
	if quantity < 0 {
		return entity.StockChange{}, apperror.NewValidation("quantity must not be negative").
			WithDetail("field", "quantity").
			WithDetail("value", quantity)
	}

	var change entity.StockChange
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		key := entity.StockKey{ProductID: productID, BranchID: branchID}
		records, err := s.repo.LockRecords(ctx, []entity.StockKey{key})
		if err != nil {
			return fmt.Errorf("lock inventory record: %w", err)
		}
		current := records[key].Quantity
		if current == quantity {
			change = entity.StockChange{
				ProductID:   productID,
				BranchID:    branchID,
				OldQuantity: current,
				NewQuantity: current,
				Reason:      entity.ReasonCorrection,
			}
			return nil
		}
		change, err = s.Adjust(ctx, actor, Adjustment{
			ProductID: productID,
			BranchID:  branchID,
			Delta:     quantity - current,
			Reason:    entity.ReasonCorrection,
		})
		return err
	})
	if err != nil {
		return entity.StockChange{}, err
	}
	return change, nil
}

// SetAlertLevel changes the low-stock threshold of a key. It does not touch
// the quantity and is not part of the stock change log.
func (s *Service) SetAlertLevel(ctx context.Context, actor entity.Actor, productID, branchID int64, level int) (entity.InventoryRecord, error) {
	if level < 0 {
		return entity.InventoryRecord{}, apperror.NewValidation("stock alert level must not be negative").
			WithDetail("field", "stockAlertLevel")
	}

	var rec entity.InventoryRecord
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		key := entity.StockKey{ProductID: productID, BranchID: branchID}
		records, err := s.repo.LockRecords(ctx, []entity.StockKey{key})
		if err != nil {
			return fmt.Errorf("lock inventory record: %w", err)
		}
		rec = records[key]
		wasLow := rec.LowStock()
		rec.StockAlertLevel = level
		if err := s.repo.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save inventory record: %w", err)
		}
		if !wasLow && rec.LowStock() {
			return s.publishStockLow(ctx, rec)
		}
		return nil
	})
	if err != nil {
		return entity.InventoryRecord{}, err
	}

	logger.Info(ctx, "stock alert level changed",
		"product_id", productID,
		"branch_id", branchID,
		"level", level,
		"actor", actor.ID(),
	)
	return rec, nil
}

// LockCandidates locks every inventory row of the products and returns them
// in key order. It must be called inside a transaction opened by the caller;
// the caller then chooses rows and passes adjustments to Apply.
func (s *Service) LockCandidates(ctx context.Context, productIDs []int64) ([]entity.InventoryRecord, error) {
	recs, err := s.repo.LockProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("lock product stock: %w", err)
	}
	return recs, nil
}

// Query returns the current record of a key without locking.
func (s *Service) Query(ctx context.Context, productID, branchID int64) (entity.InventoryRecord, error) {
	return s.repo.GetRecord(ctx, entity.StockKey{ProductID: productID, BranchID: branchID})
}

// ListRecords lists inventory records.
func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) ([]entity.InventoryRecord, error) {
	return s.repo.ListRecords(ctx, filter)
}

// ListChanges lists stock changes newest first.
func (s *Service) ListChanges(ctx context.Context, filter ChangeFilter) ([]entity.StockChange, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultChangeLimit
	}
	return s.repo.ListChanges(ctx, filter)
}

// Reconcile replays the change log of a key and compares the result with the
// stored quantity. Both are read from one snapshot.
func (s *Service) Reconcile(ctx context.Context, productID, branchID int64) (Reconciliation, error) {
	key := entity.StockKey{ProductID: productID, BranchID: branchID}
	var (
		rec    entity.InventoryRecord
		logged int
	)
	err := tx.ReadSnapshot(ctx, s.txManager, func(ctx context.Context) error {
		var err error
		if rec, err = s.repo.GetRecord(ctx, key); err != nil {
			return err
		}
		if logged, err = s.repo.SumChanges(ctx, key); err != nil {
			return fmt.Errorf("sum stock changes: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}

	r := Reconciliation{
		ProductID:      productID,
		BranchID:       branchID,
		Quantity:       rec.Quantity,
		LoggedQuantity: logged,
		Consistent:     rec.Quantity == logged,
	}
	if !r.Consistent {
		logger.Error(ctx, "inventory record diverges from stock change log",
			"product_id", productID,
			"branch_id", branchID,
			"quantity", rec.Quantity,
			"logged_quantity", logged,
		)
	}
	return r, nil
}

func (s *Service) publishStockLow(ctx context.Context, rec entity.InventoryRecord) error {
	err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateInventory,
		AggregateID:   strconv.FormatInt(rec.ProductID, 10) + ":" + strconv.FormatInt(rec.BranchID, 10),
		EventType:     events.TypeStockLow,
		Payload: StockLowPayload{
			ProductID:       rec.ProductID,
			BranchID:        rec.BranchID,
			Quantity:        rec.Quantity,
			StockAlertLevel: rec.StockAlertLevel,
		},
	})
	if err != nil {
		return fmt.Errorf("publish stock low: %w", err)
	}
	return nil
}

func (s *Service) logRejected(ctx context.Context, actor entity.Actor, adjs []Adjustment, err error) {
	for _, a := range adjs {
		logger.Warn(ctx, "stock adjustment rejected",
			"product_id", a.ProductID,
			"branch_id", a.BranchID,
			"delta", a.Delta,
			"reason", a.Reason,
			"reference", a.Reference,
			"actor", actor.ID(),
			"error", err,
		)
	}
}

func validateAdjustment(a Adjustment) error {
	if a.Delta == 0 {
		return apperror.NewInvalidQuantity("delta", a.Delta).
			WithDetail("product_id", a.ProductID).
			WithDetail("branch_id", a.BranchID)
	}
	if !a.Reason.Valid() {
		return apperror.NewValidation("unknown stock change reason").
			WithDetail("reason", string(a.Reason))
	}
	if a.ProductID <= 0 || a.BranchID <= 0 {
		return apperror.NewValidation("product and branch are required").
			WithDetail("product_id", a.ProductID).
			WithDetail("branch_id", a.BranchID)
	}
	return nil
}

// checkFloor simulates the batch in order and fails on the first adjustment
// that would take a key below zero.
func checkFloor(records map[entity.StockKey]entity.InventoryRecord, adjs []Adjustment) error {
	working := maps.Clone(records)
	for _, a := range adjs {
		rec := working[a.Key()]
		next := rec.Quantity + a.Delta
		if next < 0 {
			return apperror.NewInsufficientStock(a.ProductID, a.BranchID, -a.Delta, rec.Quantity)
		}
		rec.Quantity = next
		working[a.Key()] = rec
	}
	return nil
}
