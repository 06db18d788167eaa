package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/audit"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/ledger"
	"gamestore/pkg/logger"
)

// LineInput is one requested checkout line.
type LineInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput is a checkout submission.
type CreateOrderInput struct {
	CustomerID      int64
	Items           []LineInput
	DeliveryAddress Address
	BillingAddress  Address
	PaymentMethod   string
}

// Config holds order engine settings.
type Config struct {
	ShippingFee types.Money
	Selector    BranchSelector
	Retry       tx.RetryPolicy
	// TrackingNumber generates the number assigned when an order ships.
	TrackingNumber func(ctx context.Context) (string, error)
}

// Service drives checkout and the order lifecycle.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   *catalog.Service
	txManager tx.Manager
	events    events.Publisher
	audit     audit.Recorder
	cfg       Config
	now       func() time.Time
}

// NewService creates a new order service.
func NewService(
	repo Repository,
	ledgerService *ledger.Service,
	catalogService *catalog.Service,
	txManager tx.Manager,
	publisher events.Publisher,
	recorder audit.Recorder,
	cfg Config,
) *Service {
	if cfg.Selector == nil {
		cfg.Selector = HighestStock{}
	}
	if cfg.TrackingNumber == nil {
		cfg.TrackingNumber = NewTrackingNumber
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		ledger:    ledgerService,
		catalog:   catalogService,
		txManager: txManager,
		events:    publisher,
		audit:     recorder,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewTrackingNumber returns "TR" followed by nine random digits. Deployments
// with a sequence store use a numerator instead.
func NewTrackingNumber(context.Context) (string, error) {
	return fmt.Sprintf("TR%09d", rand.IntN(1_000_000_000)), nil
}

// CreateOrder validates the order against the ledger and, if every line can
// be served, decrements stock for all lines and stores the order as one unit.
// If any line cannot be served the order fails with OutOfStock naming that
// product and no stock moves.
func (s *Service) CreateOrder(ctx context.Context, actor entity.Actor, in CreateOrderInput) (*Order, error) {
	lines, err := validateOrderInput(in)
	if err != nil {
		return nil, err
	}

	productIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
	}
	products, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	paymentMethod := strings.TrimSpace(in.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}
	if strings.TrimSpace(in.BillingAddress.FullAddress) == "" {
		in.BillingAddress = in.DeliveryAddress
	}

	var order *Order
	err = tx.RunWithRetry(ctx, s.txManager, s.cfg.Retry, func(ctx context.Context) error {
		now := s.now()
		order = &Order{
			ID:              id.New(),
			CustomerID:      in.CustomerID,
			OrderDate:       now,
			Status:          StatusPending,
			ShippingFee:     s.cfg.ShippingFee,
			PaymentMethod:   paymentMethod,
			PaymentStatus:   PaymentUnpaid,
			DeliveryAddress: in.DeliveryAddress,
			BillingAddress:  in.BillingAddress,
			UpdatedAt:       now,
		}

		sortedIDs := slices.Clone(productIDs)
		slices.Sort(sortedIDs)
		locked, err := s.ledger.LockCandidates(ctx, sortedIDs)
		if err != nil {
			return err
		}
		candidates := make(map[int64][]entity.InventoryRecord, len(sortedIDs))
		for _, rec := range locked {
			candidates[rec.ProductID] = append(candidates[rec.ProductID], rec)
		}

		adjustments := make([]ledger.Adjustment, 0, len(lines))
		total := s.cfg.ShippingFee
		for i, l := range lines {
			branchID, ok := s.cfg.Selector.Select(l.ProductID, l.Quantity, candidates[l.ProductID])
			if !ok {
				return apperror.NewOutOfStock(l.ProductID, l.Quantity, available(candidates[l.ProductID]))
			}
			item := OrderItem{
				OrderID:   order.ID,
				LineNo:    i + 1,
				ProductID: l.ProductID,
				BranchID:  branchID,
				Quantity:  l.Quantity,
				UnitPrice: products[l.ProductID].Price,
			}
			order.Items = append(order.Items, item)
			total = total.Add(item.Amount())
			adjustments = append(adjustments, ledger.Adjustment{
				ProductID: l.ProductID,
				BranchID:  branchID,
				Delta:     -l.Quantity,
				Reason:    entity.ReasonOrder,
				Reference: order.ID.String(),
			})
		}
		order.TotalAmount = total

		if _, err := s.ledger.Apply(ctx, actor, adjustments); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeInsufficientStock {
				pid, _ := appErr.Details["product_id"].(int64)
				requested, _ := appErr.Details["requested"].(int)
				avail, _ := appErr.Details["available"].(int)
				return apperror.NewOutOfStock(pid, requested, avail).WithCause(err)
			}
			return err
		}

		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateOrder,
			AggregateID:   order.ID.String(),
			EventType:     events.TypeOrderPlaced,
			Payload: PlacedPayload{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				TotalAmount: order.TotalAmount,
				Lines:       len(order.Items),
			},
		}); err != nil {
			return fmt.Errorf("publish order placed: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: events.AggregateOrder,
			EntityID:   order.ID,
			Action:     audit.ActionCreate,
			Actor:      actor,
			Changes:    map[string]any{"status": StatusPending, "total_amount": order.TotalAmount.String()},
		})
	})
	if err != nil {
		logger.Warn(ctx, "checkout failed",
			"customer_id", in.CustomerID,
			"lines", len(lines),
			"error", err,
		)
		return nil, err
	}

	logger.Info(ctx, "order created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"total_amount", order.TotalAmount.String(),
		"lines", len(order.Items),
	)
	return order, nil
}

// SetStatus moves an order to the next status. Cancelling an order whose
// goods are still at the branches puts every line back into stock.
func (s *Service) SetStatus(ctx context.Context, actor entity.Actor, orderID id.ID, next Status) (*Order, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return nil, err
	}

	var order *Order
	var from Status
	err := tx.RunWithRetry(ctx, s.txManager, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		return s.transition(ctx, actor, order, next)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order status changed",
		"order_id", orderID,
		"from", from,
		"to", next,
		"actor", actor.ID(),
	)
	return order, nil
}

// ConfirmReceived is the customer's delivery confirmation of a shipped order.
func (s *Service) ConfirmReceived(ctx context.Context, actor entity.Actor, orderID id.ID) (*Order, error) {
	var order *Order
	err := tx.RunWithRetry(ctx, s.txManager, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.Owns(order.CustomerID) {
			return apperror.NewForbidden("order belongs to another customer")
		}
		return s.transition(ctx, actor, order, StatusDelivered)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order receipt confirmed", "order_id", orderID, "actor", actor.ID())
	return order, nil
}

// transition applies next to a locked order.
func (s *Service) transition(ctx context.Context, actor entity.Actor, order *Order, next Status) error {
	from := order.Status
	if !from.CanTransitionTo(next) {
		return apperror.NewInvalidTransition("order", string(from), string(next)).
			WithDetail("order_id", order.ID)
	}

	now := s.now()
	switch next {
	case StatusShipped:
		if order.TrackingNumber == nil {
			tn, err := s.cfg.TrackingNumber(ctx)
			if err != nil {
				return fmt.Errorf("tracking number: %w", err)
			}
			order.TrackingNumber = &tn
		}
	case StatusDelivered:
		order.DeliveredAt = &now
	case StatusCancelled:
		if from.HoldsStock() {
			if err := s.releaseStock(ctx, actor, order); err != nil {
				return err
			}
		}
	}
	order.Status = next
	order.UpdatedAt = now

	if err := s.repo.UpdateStatus(ctx, order); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateOrder,
		AggregateID:   order.ID.String(),
		EventType:     events.TypeOrderStatusChanged,
		Payload: StatusChangedPayload{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			From:       from,
			To:         next,
		},
	}); err != nil {
		return fmt.Errorf("publish order status changed: %w", err)
	}
	return s.audit.Record(ctx, audit.Entry{
		EntityType: events.AggregateOrder,
		EntityID:   order.ID,
		Action:     audit.ActionStatusChange,
		Actor:      actor,
		Changes:    audit.StatusChange(string(from), string(next)),
	})
}

func (s *Service) releaseStock(ctx context.Context, actor entity.Actor, order *Order) error {
	adjustments := make([]ledger.Adjustment, 0, len(order.Items))
	for _, it := range order.Items {
		adjustments = append(adjustments, ledger.Adjustment{
			ProductID: it.ProductID,
			BranchID:  it.BranchID,
			Delta:     it.Quantity,
			Reason:    entity.ReasonOrderCancel,
			Reference: order.ID.String(),
		})
	}
	if _, err := s.ledger.Apply(ctx, actor, adjustments); err != nil {
		return fmt.Errorf("release order stock: %w", err)
	}
	return nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// GetForActor returns an order the actor is allowed to see.
func (s *Service) GetForActor(ctx context.Context, actor entity.Actor, orderID id.ID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(order.CustomerID) {
		return nil, apperror.NewNotFound("order", orderID)
	}
	return order, nil
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// validateOrderInput checks the submission and merges lines of the same
// product, keeping first-seen order.
func validateOrderInput(in CreateOrderInput) ([]LineInput, error) {
	if len(in.Items) == 0 {
		return nil, apperror.NewEmptyOrder()
	}
	if in.CustomerID <= 0 {
		return nil, apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if strings.TrimSpace(in.DeliveryAddress.FullAddress) == "" {
		return nil, apperror.NewValidation("delivery address is required").WithDetail("field", "deliveryAddress")
	}

	merged := make([]LineInput, 0, len(in.Items))
	index := make(map[int64]int, len(in.Items))
	for i, l := range in.Items {
		if l.Quantity <= 0 {
			return nil, apperror.NewInvalidQuantity("quantity", l.Quantity).
				WithDetail("line", i+1).
				WithDetail("product_id", l.ProductID)
		}
		if l.ProductID <= 0 {
			return nil, apperror.NewValidation("product is required").WithDetail("line", i+1)
		}
		if at, ok := index[l.ProductID]; ok {
			merged[at].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}
