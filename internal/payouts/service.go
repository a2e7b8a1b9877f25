package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/internal/sellers"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/outbox/payloads"
)

type ServiceParams struct {
	Sellers       *sellers.Repository
	TxRunner      db.TxRunner
	Outbox        outbox.Emitter
	Gateway       AccountGateway
	Logger        *logger.Logger
	PublicBaseURL string
	Country       string
	Currency      string
	Now           func() time.Time
}

// Service keeps each seller's payout columns in step with the connected
// account at Stripe.
type Service struct {
	sellers  *sellers.Repository
	tx       db.TxRunner
	outbox   outbox.Emitter
	gateway  AccountGateway
	logg     *logger.Logger
	baseURL  string
	country  string
	currency string
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Sellers == nil:
		return nil, errors.New("seller repository required")
	case params.TxRunner == nil:
		return nil, errors.New("transaction runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Gateway == nil:
		return nil, errors.New("account gateway required")
	case strings.TrimSpace(params.PublicBaseURL) == "":
		return nil, errors.New("public base url required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	country := strings.ToUpper(strings.TrimSpace(params.Country))
	if country == "" {
		country = "US"
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		sellers:  params.Sellers,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		gateway:  params.Gateway,
		logg:     logg,
		baseURL:  strings.TrimRight(strings.TrimSpace(params.PublicBaseURL), "/"),
		country:  country,
		currency: currency,
		now:      now,
	}, nil
}

// ApplyAccountUpdate overwrites the seller's payout columns with the given
// snapshot. Only the seller owned by update.OwnerUserID is touched.
func (s *Service) ApplyAccountUpdate(ctx context.Context, update AccountUpdate) error {
	if update.OwnerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account owner user id is missing").
			WithDetails(map[string]string{"stripe_account_id": update.AccountID})
	}
	accountID := strings.TrimSpace(update.AccountID)
	if accountID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe account id is required")
	}

	checkedAt := s.now().UTC()
	var seller *models.Seller
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.sellers.WithTx(tx)
		rows, err := repo.UpdatePayoutProfileByUserID(ctx, update.OwnerUserID, sellers.PayoutProfile{
			StripeAccountID:    accountID,
			OnboardingComplete: update.OnboardingComplete,
			ChargesEnabled:     update.ChargesEnabled,
			PayoutsEnabled:     update.PayoutsEnabled,
			CheckedAt:          checkedAt,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return gorm.ErrRecordNotFound
		}

		seller, err = repo.FindByUserID(ctx, update.OwnerUserID)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutAccountUpdated,
			AggregateType: enums.AggregateSeller,
			AggregateID:   seller.ID,
			OccurredAt:    checkedAt,
			Data: payloads.PayoutAccountUpdatedEvent{
				SellerID:           seller.ID,
				StripeAccountID:    accountID,
				OnboardingComplete: update.OnboardingComplete,
				ChargesEnabled:     update.ChargesEnabled,
				PayoutsEnabled:     update.PayoutsEnabled,
				CheckedAt:          checkedAt,
			},
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no seller for account owner").
			WithDetails(map[string]string{"stripe_account_id": accountID})
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payout account update")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"seller_id":         seller.ID.String(),
		"stripe_account_id": accountID,
		"charges_enabled":   update.ChargesEnabled,
		"payouts_enabled":   update.PayoutsEnabled,
	}), "payout account updated")
	return nil
}

// BeginOrRefreshOnboarding creates the seller's connected account on first
// use and returns a fresh hosted onboarding link.
func (s *Service) BeginOrRefreshOnboarding(ctx context.Context, userID uuid.UUID) (*OnboardingLink, error) {
	seller, err := s.loadSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithSellerID(ctx, seller.ID.String())

	accountID := ""
	if seller.StripeAccountID != nil {
		accountID = *seller.StripeAccountID
	}
	if accountID == "" {
		email := ""
		if seller.Email != nil {
			email = *seller.Email
		}
		acct, err := s.gateway.CreateAccount(ctx, AccountRequest{
			SellerID:    seller.ID,
			OwnerUserID: seller.UserID,
			Email:       email,
			Country:     s.country,
			Currency:    s.currency,
		})
		if err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "connected account creation failed")
			return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "could not create payout account")
		}

		linked, err := s.sellers.SetStripeAccountID(ctx, seller.ID, acct.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout account")
		}
		accountID = acct.ID
		if !linked {
			// a concurrent request linked first; onboard whatever is stored
			current, err := s.sellers.FindByID(ctx, seller.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload seller")
			}
			if current.StripeAccountID != nil {
				accountID = *current.StripeAccountID
			}
		}
		s.logg.Info(s.logg.WithField(logCtx, "stripe_account_id", accountID), "payout account linked")
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, accountID, s.baseURL+"/dashboard/payouts/refresh", s.baseURL+"/dashboard/payouts/return")
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "onboarding link creation failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "could not start payout onboarding")
	}
	return &OnboardingLink{URL: url, AccountID: accountID}, nil
}

// RefreshAccount pulls the seller's account from Stripe and applies it.
func (s *Service) RefreshAccount(ctx context.Context, userID uuid.UUID) (*Status, error) {
	seller, err := s.loadSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "payout onboarding has not started")
	}
	if err := s.refreshSeller(ctx, seller); err != nil {
		return nil, err
	}
	return s.Status(ctx, userID)
}

// Status reports the stored payout flags without calling Stripe.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	seller, err := s.loadSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusFromSeller(seller), nil
}

// RefreshStale re-reads accounts last checked before cutoff. One failing
// account does not stop the sweep.
func (s *Service) RefreshStale(ctx context.Context, cutoff time.Time, limit int) (RefreshSummary, error) {
	var summary RefreshSummary
	stale, err := s.sellers.ListStalePayoutAccounts(ctx, cutoff, limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payout accounts")
	}

	var errs error
	for i := range stale {
		if ctx.Err() != nil {
			return summary, multierr.Append(errs, ctx.Err())
		}
		summary.Checked++
		if err := s.refreshSeller(ctx, &stale[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seller %s: %w", stale[i].ID, err))
			continue
		}
		summary.Updated++
	}
	return summary, errs
}

func (s *Service) refreshSeller(ctx context.Context, seller *models.Seller) error {
	acct, err := s.gateway.GetAccount(ctx, *seller.StripeAccountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch payout account")
	}
	update := UpdateFromAccount(acct)
	// the row we looked up is authoritative for ownership
	update.OwnerUserID = seller.UserID
	return s.ApplyAccountUpdate(ctx, update)
}

func (s *Service) loadSeller(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	seller, err := s.sellers.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller profile not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return seller, nil
}
