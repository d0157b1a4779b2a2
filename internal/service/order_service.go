package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// VIPMilestoneInterval is the counter period at which an approval marks
	// a reward milestone. Reward fulfillment itself is a manual staff
	// action, typically recorded in the approval note.
	VIPMilestoneInterval = 10

	// orderNumberAttempts bounds the retry loop on an order number
	// collision. The date prefix plus random suffix makes collisions rare;
	// the unique constraint on the orders table catches the rest.
	orderNumberAttempts = 3
)

var (
	ErrEmptyOrder       = errors.New("order must contain at least one item")
	ErrInvalidQuantity  = errors.New("item quantity must be positive")
	ErrStaffCannotOrder = errors.New("staff accounts cannot place orders")
)

// InsufficientStockError reports a checkout line that asked for more than
// the product currently has on hand.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// CheckoutLine is a requested (product, quantity) pair. The client never
// supplies prices; the engine re-resolves them from the catalog.
type CheckoutLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// ApprovalResult is what an approval hands back to the boundary layer.
type ApprovalResult struct {
	Order *domain.Order
	// VIPCredited is true when the owner's VIP counter advanced.
	VIPCredited bool
	// VIPApprovedOrders is the counter value after the approval.
	VIPApprovedOrders int
	// RewardMilestone is true on every VIPMilestoneInterval-th credited
	// approval. The engine only signals it; fulfillment is manual.
	RewardMilestone bool
}

// OrderService drives the order lifecycle: checkout creates a pending
// reservation with price snapshots, approval commits stock and loyalty
// effects, discard closes the order without touching stock.
type OrderService interface {
	Checkout(ctx context.Context, accountID uuid.UUID, lines []CheckoutLine) (*domain.Order, error)
	Get(ctx context.Context, id uuid.UUID, requester *domain.Account) (*domain.Order, error)
	ListFor(ctx context.Context, requester *domain.Account) ([]*domain.Order, error)
	Approve(ctx context.Context, id uuid.UUID, note *string) (*ApprovalResult, error)
	Discard(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MonthlySales(ctx context.Context) ([]*domain.MonthlySales, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	accountRepo repository.AccountRepository
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	accountRepo repository.AccountRepository,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		accountRepo: accountRepo,
	}
}

// Checkout validates the requested lines against current stock, snapshots
// names and prices into line items, and persists the order as pending. No
// stock is decremented here: inventory commitment is deferred until staff
// approve the order.
func (s *orderService) Checkout(ctx context.Context, accountID uuid.UUID, lines []CheckoutLine) (*domain.Order, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ordering account: %w", err)
	}
	if account.IsStaff() {
		return nil, ErrStaffCannotOrder
	}

	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	now := time.Now()
	total := decimal.Zero
	items := make([]*domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}

		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}

		// Checked against current stock only; the decrement happens at
		// approval time.
		if line.Quantity > product.Quantity {
			return nil, &InsufficientStockError{
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Quantity,
			}
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)

		items = append(items, &domain.OrderItem{
			ID:           uuid.New(),
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			Quantity:     line.Quantity,
			Subtotal:     subtotal,
			CreatedAt:    now,
		})
	}

	order := &domain.Order{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Status:      domain.OrderStatusPending,
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber(now)
		err = s.orderRepo.CreateWithItems(ctx, order, items)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrOrderNumberTaken) {
			return nil, fmt.Errorf("failed to persist order: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	for _, item := range items {
		item.OrderID = order.ID
	}
	order.Owner = account
	order.Items = items

	return order, nil
}

// Get retrieves one order. Customers can only see their own orders; a
// foreign order id answers not-found rather than revealing its existence.
func (s *orderService) Get(ctx context.Context, id uuid.UUID, requester *domain.Account) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !requester.IsStaff() && order.AccountID != requester.ID {
		return nil, repository.ErrOrderNotFound
	}

	return order, nil
}

// ListFor returns all orders for staff, or the requester's own orders for
// customers.
func (s *orderService) ListFor(ctx context.Context, requester *domain.Account) ([]*domain.Order, error) {
	if requester.IsStaff() {
		orders, err := s.orderRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}
		return orders, nil
	}

	orders, err := s.orderRepo.ListByAccount(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account orders: %w", err)
	}
	return orders, nil
}

// Approve transitions a pending order to approved and commits its side
// effects as one unit: per-line stock decrements (clamped at zero) and, for
// owners enrolled in the VIP Circle, a single counter increment. A second
// approval of the same order fails with ErrOrderAlreadyProcessed and
// applies no effects.
func (s *orderService) Approve(ctx context.Context, id uuid.UUID, note *string) (*ApprovalResult, error) {
	effects, err := s.orderRepo.Approve(ctx, id, note, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to approve order: %w", err)
	}

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload approved order: %w", err)
	}

	return &ApprovalResult{
		Order:             order,
		VIPCredited:       effects.VIPCredited,
		VIPApprovedOrders: effects.VIPApprovedOrders,
		RewardMilestone:   effects.VIPCredited && effects.VIPApprovedOrders%VIPMilestoneInterval == 0,
	}, nil
}

// Discard transitions a pending order to discarded. Stock is untouched:
// checkout never decremented it, so there is nothing to restore.
func (s *orderService) Discard(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if err := s.orderRepo.Discard(ctx, id, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to discard order: %w", err)
	}

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload discarded order: %w", err)
	}

	return order, nil
}

// MonthlySales returns the per-month sales aggregation for the last twelve
// months.
func (s *orderService) MonthlySales(ctx context.Context) ([]*domain.MonthlySales, error) {
	now := time.Now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -11, 0)

	sales, err := s.orderRepo.MonthlySales(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly sales: %w", err)
	}
	return sales, nil
}

// generateOrderNumber builds a human-readable order number from the order
// date plus a random suffix, e.g. ORD-20250901-4821.
func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), rand.IntN(10000))
}
