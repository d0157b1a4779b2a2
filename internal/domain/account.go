package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account roles. The role is fixed at creation time: customers sign up
// through the public registration endpoint, staff accounts are seeded.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// Account represents a customer or staff identity.
type Account struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"`
	// VIPNumber is nil until the account joins the VIP Circle. Once set it
	// is immutable and globally unique.
	VIPNumber *string `json:"vip_number,omitempty" db:"vip_number"`
	// VIPApprovedOrders counts staff-approved orders placed by this account
	// while enrolled. It only ever increases, and only as part of an order
	// approval.
	VIPApprovedOrders int       `json:"vip_approved_orders" db:"vip_approved_orders"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// IsStaff reports whether the account holds the staff role.
func (a *Account) IsStaff() bool {
	return a.Role == RoleStaff
}

// IsVIP reports whether the account is enrolled in the VIP Circle.
func (a *Account) IsVIP() bool {
	return a.VIPNumber != nil && *a.VIPNumber != ""
}

// RefreshToken is a long-lived credential backing the short-lived JWT
// access tokens.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
