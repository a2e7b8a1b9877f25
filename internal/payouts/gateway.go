package payouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"

	pkgstripe "github.com/curatedly/curatedly-backend/pkg/stripe"
)

// MetadataUserID links a connected account back to the seller's user.
const MetadataUserID = "user_id"

// Account is the subset of a connected account the storefront mirrors.
type Account struct {
	ID               string
	OwnerUserID      uuid.UUID
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

// AccountRequest describes a new Express account for a seller.
type AccountRequest struct {
	SellerID    uuid.UUID
	OwnerUserID uuid.UUID
	Email       string
	Country     string
	Currency    string
}

// AccountGateway manages connected accounts and their onboarding links.
type AccountGateway interface {
	CreateAccount(ctx context.Context, req AccountRequest) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
}

type stripeAccountGateway struct {
	accounts *account.Client
	links    *accountlink.Client
}

// NewStripeAccountGateway returns a gateway backed by Stripe Connect.
func NewStripeAccountGateway(client *pkgstripe.Client) AccountGateway {
	if client == nil {
		return nil
	}
	return &stripeAccountGateway{
		accounts: client.Accounts(),
		links:    client.AccountLinks(),
	}
}

func accountParams(req AccountRequest) *stripe.AccountParams {
	params := &stripe.AccountParams{
		Type:            stripe.String(string(stripe.AccountTypeExpress)),
		Country:         stripe.String(req.Country),
		DefaultCurrency: stripe.String(req.Currency),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		Settings: &stripe.AccountSettingsParams{
			Payouts: &stripe.AccountSettingsPayoutsParams{
				Schedule: &stripe.AccountSettingsPayoutsScheduleParams{
					Interval: stripe.String(string(stripe.AccountSettingsPayoutsScheduleIntervalManual)),
				},
			},
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.AddMetadata(MetadataUserID, req.OwnerUserID.String())
	params.AddMetadata("seller_id", req.SellerID.String())
	params.SetIdempotencyKey("connect-account:" + req.SellerID.String())
	return params
}

func (g *stripeAccountGateway) CreateAccount(ctx context.Context, req AccountRequest) (*Account, error) {
	params := accountParams(req)
	params.Context = ctx
	acct, err := g.accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("create connected account: %w", err)
	}
	return AccountFromStripe(acct), nil
}

func (g *stripeAccountGateway) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := g.accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("get connected account %s: %w", accountID, err)
	}
	return AccountFromStripe(acct), nil
}

func (g *stripeAccountGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx
	link, err := g.links.New(params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	if link.URL == "" {
		return "", errors.New("account link returned without url")
	}
	return link.URL, nil
}

// AccountFromStripe maps a connected account, including one decoded from an
// account.updated payload. A missing or malformed owner leaves OwnerUserID nil.
func AccountFromStripe(acct *stripe.Account) *Account {
	if acct == nil {
		return nil
	}
	out := &Account{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}
	if raw, ok := acct.Metadata[MetadataUserID]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			out.OwnerUserID = id
		}
	}
	return out
}
