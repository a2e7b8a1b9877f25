package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/pkg/enums"
)

// Metadata keys carried on checkout sessions for reconciliation.
const (
	MetadataOrderID   = "order_id"
	MetadataListingID = "listing_id"
)

// CheckoutResult tells the buyer where to go next.
type CheckoutResult struct {
	OrderID     uuid.UUID `json:"order_id"`
	RedirectURL string    `json:"redirect_url"`
	Free        bool      `json:"free"`
}

// Confirmation is the persisted order record shown on the confirmation page.
type Confirmation struct {
	ID                uuid.UUID         `json:"id"`
	ListingID         uuid.UUID         `json:"listing_id"`
	Email             string            `json:"email"`
	Status            enums.OrderStatus `json:"status"`
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	ListingTitle      string            `json:"listing_title,omitempty"`
	SellerDisplayName string            `json:"seller_display_name,omitempty"`
	SellerSlug        string            `json:"seller_slug,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// ReconcileSummary counts what a stale-order sweep did.
type ReconcileSummary struct {
	Checked   int
	Completed int
	Failed    int
}
