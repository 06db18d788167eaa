package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/id"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/audit"
	"gamestore/internal/domain/events"
	"gamestore/internal/domain/ledger"
	"gamestore/internal/domain/orders"
	"gamestore/pkg/logger"
)

// RequestInput asks to return a whole order or, with LineNo set, one line.
type RequestInput struct {
	OrderID id.ID
	LineNo  *int
	Reason  string
}

// Config holds return workflow settings.
type Config struct {
	Retry tx.RetryPolicy
}

// Service drives return requests.
type Service struct {
	repo      Repository
	orders    orders.Repository
	ledger    *ledger.Service
	txManager tx.Manager
	events    events.Publisher
	audit     audit.Recorder
	retry     tx.RetryPolicy
	now       func() time.Time
}

// NewService creates a new return service.
func NewService(
	repo Repository,
	orderRepo orders.Repository,
	ledgerService *ledger.Service,
	txManager tx.Manager,
	publisher events.Publisher,
	recorder audit.Recorder,
	cfg Config,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		orders:    orderRepo,
		ledger:    ledgerService,
		txManager: txManager,
		events:    publisher,
		audit:     recorder,
		retry:     cfg.Retry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestReturn opens a pending return for a delivered order. The refund is
// fixed now from the snapshotted unit prices of the affected lines.
func (s *Service) RequestReturn(ctx context.Context, actor entity.Actor, in RequestInput) (*ReturnRequest, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.NewValidation("return reason is required").WithDetail("field", "reason")
	}

	var req *ReturnRequest
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !actor.Owns(order.CustomerID) {
			return apperror.NewForbidden("order belongs to another customer")
		}
		if order.Status != orders.StatusDelivered {
			return apperror.NewInvalidTransition("order", string(order.Status), "return_requested").
				WithDetail("order_id", order.ID)
		}

		items, err := affectedItems(order, in.LineNo)
		if err != nil {
			return err
		}

		refund := types.Zero()
		lineNos := make([]int, 0, len(items))
		for _, it := range items {
			if blocksNewReturn(it.ReturnStatus) {
				return apperror.NewConflict("a return is already open for this item").
					WithDetail("order_id", order.ID).
					WithDetail("line_no", it.LineNo).
					WithDetail("return_status", it.ReturnStatus)
			}
			refund = refund.Add(it.Amount())
			lineNos = append(lineNos, it.LineNo)
		}

		now := s.now()
		req = &ReturnRequest{
			ID:           id.New(),
			OrderID:      order.ID,
			LineNo:       in.LineNo,
			CustomerID:   order.CustomerID,
			Reason:       reason,
			Status:       StatusPending,
			RefundAmount: refund,
			RequestedAt:  now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, req); err != nil {
			return fmt.Errorf("create return request: %w", err)
		}
		if err := s.orders.SetItemReturnStatus(ctx, order.ID, lineNos, string(StatusPending)); err != nil {
			return fmt.Errorf("mark items returned: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: events.AggregateReturn,
			EntityID:   req.ID,
			Action:     audit.ActionCreate,
			Actor:      actor,
			Changes: map[string]any{
				"order_id":      order.ID.String(),
				"lines":         lineNos,
				"refund_amount": refund.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return requested",
		"return_id", req.ID,
		"order_id", req.OrderID,
		"whole_order", req.IsWholeOrder(),
		"refund_amount", req.RefundAmount.String(),
	)
	return req, nil
}

// SetStatus moves a return to the next status. Completion restocks every
// returned line at the branch that fulfilled it and stamps the refund date.
func (s *Service) SetStatus(ctx context.Context, actor entity.Actor, returnID id.ID, next Status) (*ReturnRequest, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return nil, err
	}

	var req *ReturnRequest
	var from Status
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		from = req.Status
		if !from.CanTransitionTo(next) {
			return apperror.NewInvalidTransition("return", string(from), string(next)).
				WithDetail("return_id", req.ID)
		}

		order, err := s.orders.GetForUpdate(ctx, req.OrderID)
		if err != nil {
			return fmt.Errorf("load order of return: %w", err)
		}
		items, err := affectedItems(order, req.LineNo)
		if err != nil {
			return err
		}

		now := s.now()
		if next == StatusCompleted {
			adjustments := make([]ledger.Adjustment, 0, len(items))
			for _, it := range items {
				adjustments = append(adjustments, ledger.Adjustment{
					ProductID: it.ProductID,
					BranchID:  it.BranchID,
					Delta:     it.Quantity,
					Reason:    entity.ReasonReturn,
					Reference: req.ID.String(),
				})
			}
			if _, err := s.ledger.Apply(ctx, actor, adjustments); err != nil {
				return fmt.Errorf("restock returned items: %w", err)
			}
			req.RefundDate = &now
		}
		req.Status = next
		req.UpdatedAt = now

		if err := s.repo.UpdateStatus(ctx, req); err != nil {
			return fmt.Errorf("update return status: %w", err)
		}
		lineNos := make([]int, 0, len(items))
		for _, it := range items {
			lineNos = append(lineNos, it.LineNo)
		}
		if err := s.orders.SetItemReturnStatus(ctx, order.ID, lineNos, string(next)); err != nil {
			return fmt.Errorf("update item return status: %w", err)
		}
		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateReturn,
			AggregateID:   req.ID.String(),
			EventType:     events.TypeReturnStatusChanged,
			Payload: StatusChangedPayload{
				ReturnID:     req.ID,
				OrderID:      req.OrderID,
				From:         from,
				To:           next,
				RefundAmount: req.RefundAmount,
			},
		}); err != nil {
			return fmt.Errorf("publish return status changed: %w", err)
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: events.AggregateReturn,
			EntityID:   req.ID,
			Action:     audit.ActionStatusChange,
			Actor:      actor,
			Changes:    audit.StatusChange(string(from), string(next)),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return status changed",
		"return_id", returnID,
		"from", from,
		"to", next,
		"actor", actor.ID(),
	)
	return req, nil
}

// Get returns a return request.
func (s *Service) Get(ctx context.Context, returnID id.ID) (*ReturnRequest, error) {
	return s.repo.GetByID(ctx, returnID)
}

// GetForActor returns a request the actor is allowed to see.
func (s *Service) GetForActor(ctx context.Context, actor entity.Actor, returnID id.ID) (*ReturnRequest, error) {
	req, err := s.repo.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(req.CustomerID) {
		return nil, apperror.NewNotFound("return", returnID)
	}
	return req, nil
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*ReturnRequest, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func affectedItems(order *orders.Order, lineNo *int) ([]orders.OrderItem, error) {
	if lineNo == nil {
		return order.Items, nil
	}
	it, ok := order.Item(*lineNo)
	if !ok {
		return nil, apperror.NewNotFound("order item", *lineNo).WithDetail("order_id", order.ID)
	}
	return []orders.OrderItem{it}, nil
}
