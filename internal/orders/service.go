package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/metrics"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/outbox/payloads"
	"github.com/curatedly/curatedly-backend/pkg/pricing"
)

const reasonSessionExpired = "checkout session expired"

type listingLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

type ServiceParams struct {
	Repository         *Repository
	Listings           listingLoader
	TxRunner           db.TxRunner
	Outbox             outbox.Emitter
	Gateway            CheckoutGateway
	Validator          *validator.Validate
	Metrics            *metrics.CheckoutMetrics
	Logger             *logger.Logger
	PublicBaseURL      string
	PlatformFeePercent int64
	Currency           string
	Now                func() time.Time
}

// Service drives an order from checkout to a terminal state. Orders are
// written before any gateway call and only ever leave pending through a
// conditional update.
type Service struct {
	repo       *Repository
	listings   listingLoader
	tx         db.TxRunner
	outbox     outbox.Emitter
	gateway    CheckoutGateway
	validate   *validator.Validate
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	baseURL    string
	feePercent int64
	currency   string
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repository == nil:
		return nil, errors.New("order repository required")
	case params.Listings == nil:
		return nil, errors.New("listing loader required")
	case params.TxRunner == nil:
		return nil, errors.New("transaction runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Gateway == nil:
		return nil, errors.New("checkout gateway required")
	case strings.TrimSpace(params.PublicBaseURL) == "":
		return nil, errors.New("public base url required")
	}

	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}

	return &Service{
		repo:       params.Repository,
		listings:   params.Listings,
		tx:         params.TxRunner,
		outbox:     params.Outbox,
		gateway:    params.Gateway,
		validate:   validate,
		metrics:    params.Metrics,
		logg:       logg,
		baseURL:    strings.TrimRight(strings.TrimSpace(params.PublicBaseURL), "/"),
		feePercent: params.PlatformFeePercent,
		currency:   currency,
		now:        now,
	}, nil
}

// InitiateCheckout records the buyer's intent and returns where to send them.
// Free listings complete immediately; paid listings get a pending order and a
// hosted checkout session. A gateway failure leaves the order pending.
func (s *Service) InitiateCheckout(ctx context.Context, listingID uuid.UUID, email string) (*CheckoutResult, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		s.metrics.Observe(metrics.CheckoutRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "a valid email is required")
	}
	if listingID == uuid.Nil {
		s.metrics.Observe(metrics.CheckoutRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.Seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	if strings.TrimSpace(listing.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is missing a title")
	}

	amount := pricing.ToMinorUnits(listing.Price)
	if amount == 0 {
		return s.fulfillFree(ctx, listing, email)
	}

	order := &models.Order{
		ListingID:   listing.ID,
		Email:       email,
		Status:      enums.OrderStatusPending,
		AmountCents: amount,
		FeeCents:    pricing.PlatformFee(amount, s.feePercent),
		Currency:    s.currency,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return s.openSession(ctx, order, listing)
}

// RetryCheckout resumes a pending order. A stored session URL is returned as
// is; otherwise a session is opened under the order's idempotency key.
func (s *Service) RetryCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already "+order.Status.String()).
			WithDetails(map[string]string{"status": order.Status.String()})
	}
	if order.CheckoutURL != nil && *order.CheckoutURL != "" {
		return &CheckoutResult{OrderID: order.ID, RedirectURL: *order.CheckoutURL}, nil
	}
	if order.Listing == nil || order.Listing.Seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return s.openSession(ctx, order, order.Listing)
}

// Complete applies the pending -> completed transition and queues exactly one
// order_completed event. It reports whether this call made the transition.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.MarkCompleted(ctx, orderID, s.now())
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		changed = true

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		return s.emitCompleted(ctx, tx, order)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	if !changed {
		return false, s.explainNoop(ctx, orderID, enums.OrderStatusCompleted)
	}
	s.logg.Info(logCtx, "order completed")
	return true, nil
}

// Fail applies the pending -> failed transition.
func (s *Service) Fail(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment not completed"
	}

	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		at := s.now()
		rows, err := repo.MarkFailed(ctx, orderID, reason, at)
		if err != nil || rows == 0 {
			return err
		}
		changed = true

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderFailedEvent{
				OrderID:   order.ID,
				ListingID: order.ListingID,
				Reason:    reason,
				FailedAt:  at.UTC(),
			},
		})
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail order")
	}
	if !changed {
		return false, s.explainNoop(ctx, orderID, enums.OrderStatusFailed)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "reason": reason}), "order failed")
	return true, nil
}

// GetConfirmation returns the buyer-visible order record.
func (s *Service) GetConfirmation(ctx context.Context, orderID uuid.UUID) (*Confirmation, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	conf := &Confirmation{
		ID:          order.ID,
		ListingID:   order.ListingID,
		Email:       order.Email,
		Status:      order.Status,
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if order.Listing != nil {
		conf.ListingTitle = order.Listing.Title
		if order.Listing.Seller != nil {
			conf.SellerDisplayName = order.Listing.Seller.DisplayName
			conf.SellerSlug = order.Listing.Seller.Slug
		}
	}
	return conf, nil
}

// ReconcilePending asks the gateway about pending orders whose session opened
// before cutoff and applies settled or expired outcomes. Open sessions are
// left alone.
func (s *Service) ReconcilePending(ctx context.Context, cutoff time.Time, limit int) (ReconcileSummary, error) {
	var summary ReconcileSummary
	stale, err := s.repo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	var errs error
	for _, order := range stale {
		if ctx.Err() != nil {
			return summary, multierr.Append(errs, ctx.Err())
		}
		summary.Checked++

		sess, err := s.gateway.GetSession(ctx, *order.CheckoutSessionID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}

		switch {
		case sess.Settled():
			changed, err := s.Complete(ctx, order.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			} else if changed {
				summary.Completed++
			}
		case sess.Status == SessionStatusExpired:
			changed, err := s.Fail(ctx, order.ID, reasonSessionExpired)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			} else if changed {
				summary.Failed++
			}
		}
	}
	return summary, errs
}

func (s *Service) fulfillFree(ctx context.Context, listing *models.Listing, email string) (*CheckoutResult, error) {
	now := s.now().UTC()
	order := &models.Order{
		ListingID:   listing.ID,
		Listing:     listing,
		Email:       email,
		Status:      enums.OrderStatusCompleted,
		Currency:    s.currency,
		CompletedAt: &now,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.emitCompleted(ctx, tx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create free order")
	}

	s.metrics.Observe(metrics.CheckoutFree)
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "free order fulfilled")
	return &CheckoutResult{OrderID: order.ID, RedirectURL: s.confirmationURL(order.ID), Free: true}, nil
}

func (s *Service) openSession(ctx context.Context, order *models.Order, listing *models.Listing) (*CheckoutResult, error) {
	seller := listing.Seller
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"listing_id": listing.ID.String(),
		"seller_id":  seller.ID.String(),
	})

	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" || !seller.CanAcceptPayments() {
		s.metrics.Observe(metrics.CheckoutGatewayError)
		s.logg.Warn(logCtx, "seller payout account cannot receive funds; order left pending")
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "seller cannot accept payments right now").
			WithDetails(map[string]string{"order_id": order.ID.String()})
	}

	sess, err := s.gateway.CreateSession(ctx, SessionRequest{
		OrderID:            order.ID,
		ListingID:          listing.ID,
		Title:              listing.Title,
		AmountMinor:        order.AmountCents,
		FeeMinor:           order.FeeCents,
		Currency:           order.Currency,
		BuyerEmail:         order.Email,
		DestinationAccount: *seller.StripeAccountID,
		SuccessURL:         s.confirmationURL(order.ID),
		CancelURL:          s.cancelationURL(order.ID),
	})
	if err != nil {
		s.metrics.Observe(metrics.CheckoutGatewayError)
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "checkout session creation failed; order left pending")
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "could not start checkout").
			WithDetails(map[string]string{"order_id": order.ID.String()})
	}

	// the webhook reconciles by metadata, so a lost attach only costs the retry shortcut
	if err := s.repo.AttachCheckoutSession(ctx, order.ID, sess.ID, sess.URL); err != nil {
		s.logg.Error(logCtx, "failed to record checkout session", err)
	}

	s.metrics.Observe(metrics.CheckoutSession)
	s.logg.Info(s.logg.WithField(logCtx, "checkout_session_id", sess.ID), "checkout session opened")
	return &CheckoutResult{OrderID: order.ID, RedirectURL: sess.URL}, nil
}

func (s *Service) emitCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	listing := order.Listing
	if listing == nil || listing.Seller == nil {
		return fmt.Errorf("order %s loaded without listing and seller", order.ID)
	}
	completedAt := s.now().UTC()
	if order.CompletedAt != nil {
		completedAt = order.CompletedAt.UTC()
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCompletedEvent{
			OrderID:           order.ID,
			ListingID:         listing.ID,
			SellerID:          listing.Seller.ID,
			BuyerEmail:        order.Email,
			ListingTitle:      listing.Title,
			SellerDisplayName: listing.Seller.DisplayName,
			SellerSlug:        listing.Seller.Slug,
			AmountCents:       order.AmountCents,
			Currency:          order.Currency,
			Free:              order.AmountCents == 0,
			CompletedAt:       completedAt,
		},
	})
}

// explainNoop distinguishes a missing order from one already in a terminal state.
func (s *Service) explainNoop(ctx context.Context, orderID uuid.UUID, wanted enums.OrderStatus) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   order.Status,
		"wanted":   wanted,
	}), "order already terminal; transition skipped")
	return nil
}

func (s *Service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *Service) confirmationURL(orderID uuid.UUID) string {
	return fmt.Sprintf("%s/orders/%s/confirmation", s.baseURL, orderID)
}

func (s *Service) cancelationURL(orderID uuid.UUID) string {
	return fmt.Sprintf("%s/orders/%s/cancelation", s.baseURL, orderID)
}
