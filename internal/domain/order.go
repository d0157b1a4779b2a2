package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses. Pending is the initial state; approved and discarded are
// terminal, and there is no transition out of a terminal state.
const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusDiscarded = "discarded"
)

// Order is a reservation placed by a customer for in-store pickup. Stock is
// not committed at creation time; the decrement happens when staff approve
// the order.
type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	AccountID   uuid.UUID       `json:"account_id" db:"account_id"`
	OrderNumber string          `json:"order_number" db:"order_number"`
	Status      string          `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	StaffNote   *string         `json:"staff_note,omitempty" db:"staff_note"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	DiscardedAt *time.Time      `json:"discarded_at,omitempty" db:"discarded_at"`

	// Owner and Items are populated on reads that join the owning account
	// and the line items.
	Owner *Account     `json:"owner,omitempty" db:"-"`
	Items []*OrderItem `json:"items,omitempty" db:"-"`
}

// IsPending reports whether the order is still awaiting a staff decision.
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// OrderItem is a line of an order. ProductName and ProductPrice are
// snapshots taken at order time: later edits to the product never change
// them, and Subtotal is fixed at creation (snapshot price times quantity).
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name" db:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price" db:"product_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// MonthlySales is one row of the staff analytics view: approved and
// discarded order volume for a calendar month.
type MonthlySales struct {
	Month           string          `json:"month"`
	ApprovedAmount  decimal.Decimal `json:"approved_amount"`
	DiscardedAmount decimal.Decimal `json:"discarded_amount"`
	ApprovedCount   int             `json:"approved_count"`
	DiscardedCount  int             `json:"discarded_count"`
}
