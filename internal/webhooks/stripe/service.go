package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/internal/payouts"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/metrics"
)

const (
	reasonAsyncPaymentFailed = "async payment failed"
	reasonSessionExpired     = "checkout session expired"
)

type orderTransitions interface {
	Complete(ctx context.Context, orderID uuid.UUID) (bool, error)
	Fail(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
}

type accountReconciler interface {
	ApplyAccountUpdate(ctx context.Context, update payouts.AccountUpdate) error
}

type eventGuard interface {
	Handled(ctx context.Context, eventID string) (bool, error)
	MarkHandled(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Orders        orderTransitions
	Payouts       accountReconciler
	Guard         eventGuard
	SigningSecret string
	Metrics       *metrics.WebhookMetrics
	Logger        *logger.Logger
}

// Result describes how one delivery was handled. Every verified delivery is
// acknowledged, whatever the outcome.
type Result struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
}

type eventHandler func(ctx context.Context, event *stripe.Event) (string, error)

// Service verifies Stripe deliveries and routes them by event type.
type Service struct {
	orders   orderTransitions
	payouts  accountReconciler
	guard    eventGuard
	secret   string
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
	handlers map[stripe.EventType]eventHandler
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Orders == nil:
		return nil, errors.New("order service required")
	case params.Payouts == nil:
		return nil, errors.New("payout service required")
	case strings.TrimSpace(params.SigningSecret) == "":
		return nil, errors.New("webhook signing secret required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Service{
		orders:  params.Orders,
		payouts: params.Payouts,
		guard:   params.Guard,
		secret:  params.SigningSecret,
		metrics: params.Metrics,
		logg:    logg,
	}
	s.handlers = map[stripe.EventType]eventHandler{
		stripe.EventTypeAccountUpdated:                       s.handleAccountUpdated,
		stripe.EventTypeCheckoutSessionCompleted:             s.handleSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded: s.handleAsyncSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:    s.failWith(reasonAsyncPaymentFailed),
		stripe.EventTypeCheckoutSessionExpired:               s.failWith(reasonSessionExpired),
	}
	return s, nil
}

// Reconcile verifies payload against signature and applies the event. An
// invalid signature is the only error returned; handler failures are logged
// and acknowledged so Stripe does not retry into the same failure.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signature string) (*Result, error) {
	if strings.TrimSpace(signature) == "" {
		s.metrics.Observe("unknown", metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.metrics.Observe("unknown", metrics.OutcomeRejected)
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "stripe webhook signature rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
	}

	result := &Result{EventID: event.ID, Type: string(event.Type)}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	handler, ok := s.handlers[event.Type]
	if !ok {
		result.Outcome = metrics.OutcomeIgnored
		s.metrics.Observe(result.Type, result.Outcome)
		s.logg.Debug(logCtx, "stripe event ignored")
		return result, nil
	}

	if s.guard != nil {
		handled, err := s.guard.Handled(ctx, event.ID)
		switch {
		case err != nil:
			// transitions are conditional, so running twice is safe
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "webhook idempotency guard unavailable")
		case handled:
			result.Outcome = metrics.OutcomeDuplicate
			s.metrics.Observe(result.Type, result.Outcome)
			s.logg.Info(logCtx, "stripe event already handled")
			return result, nil
		}
	}

	outcome, err := handler(logCtx, &event)
	if err != nil {
		result.Outcome = metrics.OutcomeFailed
		s.metrics.Observe(result.Type, result.Outcome)
		if pkgerrors.IsClientError(codeOf(err)) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "stripe event could not be applied")
		} else {
			s.logg.Error(logCtx, "stripe event handler failed", err)
		}
		return result, nil
	}

	if s.guard != nil {
		if err := s.guard.MarkHandled(ctx, event.ID); err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "failed to record handled stripe event")
		}
	}
	result.Outcome = outcome
	s.metrics.Observe(result.Type, result.Outcome)
	s.logg.Info(s.logg.WithField(logCtx, "outcome", outcome), "stripe event handled")
	return result, nil
}

func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) (string, error) {
	var acct stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account payload")
	}
	update := payouts.UpdateFromAccount(payouts.AccountFromStripe(&acct))
	if err := s.payouts.ApplyAccountUpdate(ctx, update); err != nil {
		return "", err
	}
	return metrics.OutcomeProcessed, nil
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event) (string, error) {
	sess, orderID, err := decodeSession(event)
	if err != nil {
		return "", err
	}
	if !sess.Settled() {
		// delayed payment methods settle through async_payment_succeeded
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "checkout completed without payment; waiting for settlement")
		return metrics.OutcomeIgnored, nil
	}
	return s.complete(ctx, orderID)
}

func (s *Service) handleAsyncSucceeded(ctx context.Context, event *stripe.Event) (string, error) {
	_, orderID, err := decodeSession(event)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, orderID)
}

func (s *Service) failWith(reason string) eventHandler {
	return func(ctx context.Context, event *stripe.Event) (string, error) {
		_, orderID, err := decodeSession(event)
		if err != nil {
			return "", err
		}
		changed, err := s.orders.Fail(ctx, orderID, reason)
		if err != nil {
			return "", err
		}
		if !changed {
			return metrics.OutcomeDuplicate, nil
		}
		return metrics.OutcomeProcessed, nil
	}
}

func (s *Service) complete(ctx context.Context, orderID uuid.UUID) (string, error) {
	changed, err := s.orders.Complete(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !changed {
		return metrics.OutcomeDuplicate, nil
	}
	return metrics.OutcomeProcessed, nil
}

// decodeSession reads the checkout session and the order it was opened for.
func decodeSession(event *stripe.Event) (*orders.Session, uuid.UUID, error) {
	if event.Data == nil {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var raw stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session payload")
	}
	sess := orders.SessionFromStripe(&raw)

	ref := sess.Metadata[orders.MetadataOrderID]
	if ref == "" {
		ref = raw.ClientReferenceID
	}
	orderID, err := uuid.Parse(ref)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no order reference").
			WithDetails(map[string]string{"checkout_session_id": raw.ID})
	}
	return sess, orderID, nil
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}
