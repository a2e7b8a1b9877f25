package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is a creator storefront. The stripe_* columns mirror the connected
// account and are only written by payout reconciliation.
type Seller struct {
	ID                       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                   uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Slug                     string     `gorm:"column:slug;not null;uniqueIndex"`
	DisplayName              string     `gorm:"column:display_name;not null"`
	Handle                   *string    `gorm:"column:handle"`
	Email                    *string    `gorm:"column:email"`
	StripeAccountID          *string    `gorm:"column:stripe_account_id;uniqueIndex"`
	StripeOnboardingComplete bool       `gorm:"column:stripe_onboarding_complete;not null;default:false"`
	StripeChargesEnabled     bool       `gorm:"column:stripe_charges_enabled;not null;default:false"`
	StripePayoutsEnabled     bool       `gorm:"column:stripe_payouts_enabled;not null;default:false"`
	StripeLastChecked        *time.Time `gorm:"column:stripe_last_checked"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CanAcceptPayments reports whether the connected account can both charge and pay out.
func (s *Seller) CanAcceptPayments() bool {
	return s != nil && s.StripeChargesEnabled && s.StripePayoutsEnabled
}
