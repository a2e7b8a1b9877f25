package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/pkg/db/models"
)

// AccountUpdate is a full snapshot of a connected account's capabilities.
type AccountUpdate struct {
	AccountID          string
	OwnerUserID        uuid.UUID
	OnboardingComplete bool
	ChargesEnabled     bool
	PayoutsEnabled     bool
}

// UpdateFromAccount builds the snapshot applied for a fetched or pushed account.
func UpdateFromAccount(acct *Account) AccountUpdate {
	return AccountUpdate{
		AccountID:          acct.ID,
		OwnerUserID:        acct.OwnerUserID,
		OnboardingComplete: acct.DetailsSubmitted,
		ChargesEnabled:     acct.ChargesEnabled,
		PayoutsEnabled:     acct.PayoutsEnabled,
	}
}

// Status is the dashboard view of a seller's payout setup.
type Status struct {
	SellerID           uuid.UUID  `json:"seller_id"`
	AccountID          *string    `json:"stripe_account_id"`
	OnboardingComplete bool       `json:"onboarding_complete"`
	ChargesEnabled     bool       `json:"charges_enabled"`
	PayoutsEnabled     bool       `json:"payouts_enabled"`
	CanSellPaid        bool       `json:"can_sell_paid"`
	LastCheckedAt      *time.Time `json:"last_checked_at"`
}

func statusFromSeller(seller *models.Seller) *Status {
	return &Status{
		SellerID:           seller.ID,
		AccountID:          seller.StripeAccountID,
		OnboardingComplete: seller.StripeOnboardingComplete,
		ChargesEnabled:     seller.StripeChargesEnabled,
		PayoutsEnabled:     seller.StripePayoutsEnabled,
		CanSellPaid:        seller.CanAcceptPayments(),
		LastCheckedAt:      seller.StripeLastChecked,
	}
}

// OnboardingLink is where the seller continues hosted onboarding.
type OnboardingLink struct {
	URL       string `json:"url"`
	AccountID string `json:"stripe_account_id"`
}

// RefreshSummary counts what a stale-account sweep did.
type RefreshSummary struct {
	Checked int
	Updated int
}
