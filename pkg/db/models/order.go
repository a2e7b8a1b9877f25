package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/pkg/enums"
)

// Order is one checkout attempt against a listing. Rows are never deleted.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID         uuid.UUID         `gorm:"column:listing_id;type:uuid;not null;index"`
	Listing           *Listing          `gorm:"foreignKey:ListingID;references:ID"`
	Email             string            `gorm:"column:email;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	AmountCents       int64             `gorm:"column:amount_cents;not null;default:0"`
	FeeCents          int64             `gorm:"column:fee_cents;not null;default:0"`
	Currency          string            `gorm:"column:currency;not null;default:'usd'"`
	CheckoutSessionID *string           `gorm:"column:checkout_session_id;uniqueIndex"`
	CheckoutURL       *string           `gorm:"column:checkout_url"`
	CompletedAt       *time.Time        `gorm:"column:completed_at"`
	FailedAt          *time.Time        `gorm:"column:failed_at"`
	FailureReason     *string           `gorm:"column:failure_reason"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
