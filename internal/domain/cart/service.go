package cart

import (
	"context"
	"fmt"
	"time"

	"gamestore/internal/core/apperror"
	"gamestore/internal/core/entity"
	"gamestore/internal/core/tx"
	"gamestore/internal/core/types"
	"gamestore/internal/domain/catalog"
	"gamestore/internal/domain/orders"
	"gamestore/pkg/logger"
)

// CheckoutInput places an order for everything in the customer's cart.
type CheckoutInput struct {
	CustomerID      int64
	DeliveryAddress orders.Address
	BillingAddress  orders.Address
	PaymentMethod   string
}

// Config holds cart settings.
type Config struct {
	Retry tx.RetryPolicy
}

// Service manages carts and their checkout.
type Service struct {
	repo      Repository
	catalog   *catalog.Service
	orders    *orders.Service
	txManager tx.Manager
	retry     tx.RetryPolicy
	now       func() time.Time
}

// NewService creates a new cart service.
func NewService(
	repo Repository,
	catalogService *catalog.Service,
	orderService *orders.Service,
	txManager tx.Manager,
	cfg Config,
) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalogService,
		orders:    orderService,
		txManager: txManager,
		retry:     cfg.Retry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cart priced at current catalog prices.
func (s *Service) Get(ctx context.Context, actor entity.Actor, customerID int64) (*Cart, error) {
	if err := authorize(actor, customerID); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	productIDs := make([]int64, len(items))
	for i, it := range items {
		productIDs[i] = it.ProductID
	}
	products, err := s.catalog.Products(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	c := &Cart{CustomerID: customerID, Lines: make([]Line, 0, len(items)), Subtotal: types.Zero()}
	for _, it := range items {
		p := products[it.ProductID]
		amount := types.LineAmount(p.Price, it.Quantity)
		c.Lines = append(c.Lines, Line{
			ProductID: it.ProductID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			Amount:    amount,
			AddedAt:   it.AddedAt,
		})
		c.Subtotal = c.Subtotal.Add(amount)
	}
	return c, nil
}

// Add puts quantity more units of a product into the cart.
func (s *Service) Add(ctx context.Context, actor entity.Actor, customerID, productID int64, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, apperror.NewInvalidQuantity("quantity", quantity)
	}
	return s.update(ctx, actor, customerID, productID, func(current int) int { return current + quantity })
}

// SetQuantity replaces the quantity of a product in the cart. Zero removes
// the product.
func (s *Service) SetQuantity(ctx context.Context, actor entity.Actor, customerID, productID int64, quantity int) (Item, error) {
	if quantity < 0 {
		return Item{}, apperror.NewValidation("quantity must not be negative").
			WithDetail("field", "quantity").
			WithDetail("value", quantity)
	}
	if quantity == 0 {
		if err := s.Remove(ctx, actor, customerID, productID); err != nil {
			return Item{}, err
		}
		return Item{CustomerID: customerID, ProductID: productID}, nil
	}
	return s.update(ctx, actor, customerID, productID, func(int) int { return quantity })
}

func (s *Service) update(ctx context.Context, actor entity.Actor, customerID, productID int64, next func(current int) int) (Item, error) {
	if err := authorize(actor, customerID); err != nil {
		return Item{}, err
	}
	if _, err := s.catalog.Product(ctx, productID); err != nil {
		return Item{}, err
	}

	var item Item
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		items, err := s.repo.ListForUpdate(ctx, customerID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		item = Item{CustomerID: customerID, ProductID: productID, AddedAt: s.now()}
		for _, it := range items {
			if it.ProductID == productID {
				item = it
				break
			}
		}
		item.Quantity = next(item.Quantity)
		return s.repo.Save(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}

	logger.Debug(ctx, "cart updated",
		"product_id", productID,
		"quantity", item.Quantity,
	)
	return item, nil
}

// Remove takes a product out of the cart. Removing an absent product is not
// an error.
func (s *Service) Remove(ctx context.Context, actor entity.Actor, customerID, productID int64) error {
	if err := authorize(actor, customerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, customerID, productID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, actor entity.Actor, customerID int64) error {
	if err := authorize(actor, customerID); err != nil {
		return err
	}
	if err := s.repo.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Checkout places an order for the cart contents and empties the cart in the
// same transaction. An empty cart fails with EmptyOrder; a failed checkout
// leaves the cart as it was.
func (s *Service) Checkout(ctx context.Context, actor entity.Actor, in CheckoutInput) (*orders.Order, error) {
	if err := authorize(actor, in.CustomerID); err != nil {
		return nil, err
	}

	var order *orders.Order
	err := tx.RunWithRetry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		items, err := s.repo.ListForUpdate(ctx, in.CustomerID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if len(items) == 0 {
			return apperror.NewEmptyOrder()
		}

		lines := make([]orders.LineInput, len(items))
		for i, it := range items {
			lines[i] = orders.LineInput{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		order, err = s.orders.CreateOrder(ctx, actor, orders.CreateOrderInput{
			CustomerID:      in.CustomerID,
			Items:           lines,
			DeliveryAddress: in.DeliveryAddress,
			BillingAddress:  in.BillingAddress,
			PaymentMethod:   in.PaymentMethod,
		})
		if err != nil {
			return err
		}
		if err := s.repo.Clear(ctx, in.CustomerID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cart checked out",
		"order_id", order.ID,
		"lines", len(order.Items),
	)
	return order, nil
}

func authorize(actor entity.Actor, customerID int64) error {
	if customerID <= 0 {
		return apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if !actor.Owns(customerID) {
		return apperror.NewForbidden("cart belongs to another customer")
	}
	return nil
}
