package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCompletedEvent carries everything the purchase email needs so the
// consumer never reads the ledger.
type OrderCompletedEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	ListingID         uuid.UUID `json:"listing_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	BuyerEmail        string    `json:"buyer_email"`
	ListingTitle      string    `json:"listing_title"`
	SellerDisplayName string    `json:"seller_display_name"`
	SellerSlug        string    `json:"seller_slug"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Free              bool      `json:"free"`
	CompletedAt       time.Time `json:"completed_at"`
}

// OrderFailedEvent is emitted when a pending order is closed without payment.
type OrderFailedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ListingID uuid.UUID `json:"listing_id"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

// PayoutAccountUpdatedEvent mirrors a capability change on a seller's connected account.
type PayoutAccountUpdatedEvent struct {
	SellerID           uuid.UUID `json:"seller_id"`
	StripeAccountID    string    `json:"stripe_account_id"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	ChargesEnabled     bool      `json:"charges_enabled"`
	PayoutsEnabled     bool      `json:"payouts_enabled"`
	CheckedAt          time.Time `json:"checked_at"`
}
