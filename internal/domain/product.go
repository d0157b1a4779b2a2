package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog item available for reservation.
//
// Quantity is the on-hand stock and never goes negative: approvals decrement
// it with a clamp at zero. A product that appears in any historical order is
// never hard-deleted, only deactivated, so line-item snapshots keep a valid
// reference.
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Category      string          `json:"category" db:"category"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	ImagePublicID string          `json:"-" db:"image_public_id"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
