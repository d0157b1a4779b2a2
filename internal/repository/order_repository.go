package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopfront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyProcessed is returned when an approve or discard hits an
	// order that already left the pending state. The conditional UPDATE that
	// produces it is what serializes concurrent decisions on the same order.
	ErrOrderAlreadyProcessed = errors.New("order already processed")
	ErrOrderNumberTaken      = errors.New("order number already taken")
)

// ApprovalEffects reports the loyalty side effect of an approval.
type ApprovalEffects struct {
	// VIPCredited is true when the order owner held a VIP number and the
	// approval incremented their counter.
	VIPCredited bool
	// VIPApprovedOrders is the owner's counter value after the increment.
	// Zero when VIPCredited is false.
	VIPApprovedOrders int
}

// OrderRepository is the order ledger: orders and their line items, plus the
// transactional state transitions that touch stock and loyalty counters.
type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context) ([]*domain.Order, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error)
	Approve(ctx context.Context, id uuid.UUID, note *string, now time.Time) (*ApprovalEffects, error)
	Discard(ctx context.Context, id uuid.UUID, now time.Time) error
	AnyLineItemReferencesProduct(ctx context.Context, productID uuid.UUID) (bool, error)
	MonthlySales(ctx context.Context, since time.Time) ([]*domain.MonthlySales, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateWithItems persists an order and its line items in one transaction:
// either the order and every item exist, or nothing does.
func (r *orderRepository) CreateWithItems(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, account_id, order_number, status, total_amount, staff_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		order.ID,
		order.AccountID,
		order.OrderNumber,
		order.Status,
		order.TotalAmount,
		order.StaffNote,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return ErrOrderNumberTaken
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, product_price, quantity, subtotal, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			item.ID,
			order.ID,
			item.ProductID,
			item.ProductName,
			item.ProductPrice,
			item.Quantity,
			item.Subtotal,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

const orderColumns = `o.id, o.account_id, o.order_number, o.status, o.total_amount, o.staff_note,
	o.created_at, o.updated_at, o.approved_at, o.discarded_at,
	a.id, a.email, a.name, a.role, a.vip_number, a.vip_approved_orders, a.created_at, a.updated_at`

func scanOrderWithOwner(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{Owner: &domain.Account{}}
	err := row.Scan(
		&order.ID,
		&order.AccountID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&order.StaffNote,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ApprovedAt,
		&order.DiscardedAt,
		&order.Owner.ID,
		&order.Owner.Email,
		&order.Owner.Name,
		&order.Owner.Role,
		&order.Owner.VIPNumber,
		&order.Owner.VIPApprovedOrders,
		&order.Owner.CreatedAt,
		&order.Owner.UpdatedAt,
	)
	return order, err
}

// FindByID retrieves an order with its owner and line items joined
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN accounts a ON a.id = o.account_id
		WHERE o.id = $1
	`, orderColumns)

	order, err := scanOrderWithOwner(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	items, err := r.getItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// List retrieves all orders with owners and items, newest first
func (r *orderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN accounts a ON a.id = o.account_id
		ORDER BY o.created_at DESC
	`, orderColumns)

	return r.queryOrders(ctx, query)
}

// ListByAccount retrieves one account's orders with items, newest first
func (r *orderRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN accounts a ON a.id = o.account_id
		WHERE o.account_id = $1
		ORDER BY o.created_at DESC
	`, orderColumns)

	return r.queryOrders(ctx, query, accountID)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrderWithOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for _, order := range orders {
		items, err := r.getItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

func (r *orderRepository) getItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, product_price, quantity, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductPrice,
			&item.Quantity,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// Approve commits the full approval sequence as one transaction: the status
// flip, the stock decrement for every line item, and the VIP counter
// increment for enrolled owners. The conditional status UPDATE doubles as a
// compare-and-set, so a concurrent second approval sees zero rows and fails
// with ErrOrderAlreadyProcessed instead of decrementing stock twice.
func (r *orderRepository) Approve(ctx context.Context, id uuid.UUID, note *string, now time.Time) (*ApprovalEffects, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2, staff_note = $3, approved_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING account_id
	`, id, domain.OrderStatusApproved, note, now, domain.OrderStatusPending).Scan(&accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, r.classifyMissedTransition(ctx, tx, id)
		}
		return nil, fmt.Errorf("failed to approve order: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	type line struct {
		productID uuid.UUID
		quantity  int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	// Clamped at zero so stock can never go negative, even if staff edited
	// quantities between checkout and approval.
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = GREATEST(quantity - $2, 0), updated_at = $3
			WHERE id = $1
		`, l.productID, l.quantity, now); err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	effects := &ApprovalEffects{}
	err = tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET vip_approved_orders = vip_approved_orders + 1, updated_at = $2
		WHERE id = $1 AND vip_number IS NOT NULL
		RETURNING vip_approved_orders
	`, accountID, now).Scan(&effects.VIPApprovedOrders)
	if err == nil {
		effects.VIPCredited = true
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to credit vip counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	return effects, nil
}

// Discard flips a pending order to discarded. Stock is deliberately left
// untouched: nothing was decremented at checkout, so there is nothing to
// restore.
func (r *orderRepository) Discard(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, discarded_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.OrderStatusDiscarded, now, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to discard order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrOrderAlreadyProcessed
	}

	return nil
}

// classifyMissedTransition distinguishes a missing order from one that has
// already left the pending state.
func (r *orderRepository) classifyMissedTransition(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderAlreadyProcessed
}

// AnyLineItemReferencesProduct reports whether the product appears in any
// historical order. Referenced products must be deactivated, not deleted.
func (r *orderRepository) AnyLineItemReferencesProduct(ctx context.Context, productID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product references: %w", err)
	}

	return exists, nil
}

// MonthlySales aggregates approved and discarded order volume per calendar
// month since the given time.
func (r *orderRepository) MonthlySales(ctx context.Context, since time.Time) ([]*domain.MonthlySales, error) {
	query := `
		SELECT
			TO_CHAR(created_at, 'YYYY-MM') AS month,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN total_amount ELSE 0 END), 0) AS approved_amount,
			COALESCE(SUM(CASE WHEN status = 'discarded' THEN total_amount ELSE 0 END), 0) AS discarded_amount,
			COUNT(CASE WHEN status = 'approved' THEN 1 END) AS approved_count,
			COUNT(CASE WHEN status = 'discarded' THEN 1 END) AS discarded_count
		FROM orders
		WHERE created_at >= $1
		GROUP BY TO_CHAR(created_at, 'YYYY-MM')
		ORDER BY month ASC
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly sales: %w", err)
	}
	defer rows.Close()

	results := []*domain.MonthlySales{}
	for rows.Next() {
		row := &domain.MonthlySales{}
		err := rows.Scan(
			&row.Month,
			&row.ApprovedAmount,
			&row.DiscardedAmount,
			&row.ApprovedCount,
			&row.DiscardedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly sales: %w", err)
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly sales: %w", err)
	}

	return results, nil
}
