package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/curatedly/curatedly-backend/pkg/stripe"
)

// Checkout session states as reported by the gateway.
const (
	SessionStatusOpen     = string(stripe.CheckoutSessionStatusOpen)
	SessionStatusComplete = string(stripe.CheckoutSessionStatusComplete)
	SessionStatusExpired  = string(stripe.CheckoutSessionStatusExpired)

	PaymentStatusPaid              = string(stripe.CheckoutSessionPaymentStatusPaid)
	PaymentStatusUnpaid            = string(stripe.CheckoutSessionPaymentStatusUnpaid)
	PaymentStatusNoPaymentRequired = string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
)

// SessionRequest describes one hosted checkout for a single listing.
type SessionRequest struct {
	OrderID            uuid.UUID
	ListingID          uuid.UUID
	Title              string
	AmountMinor        int64
	FeeMinor           int64
	Currency           string
	BuyerEmail         string
	DestinationAccount string
	SuccessURL         string
	CancelURL          string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	Metadata      map[string]string
}

// Settled reports whether funds were captured, or none were due.
func (s Session) Settled() bool {
	return s.Status == SessionStatusComplete &&
		(s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired)
}

// CheckoutGateway opens and inspects hosted checkout sessions.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

type stripeCheckoutGateway struct {
	sessions *session.Client
	attempts uint64
	backoff  time.Duration
}

// NewStripeCheckoutGateway returns a gateway backed by Stripe Checkout.
// Session creation is attempted up to attempts times, and only retried when
// the failure cannot have created a session.
func NewStripeCheckoutGateway(client *pkgstripe.Client, attempts uint64) CheckoutGateway {
	if client == nil {
		return nil
	}
	if attempts == 0 {
		attempts = 1
	}
	return &stripeCheckoutGateway{
		sessions: client.CheckoutSessions(),
		attempts: attempts,
		backoff:  200 * time.Millisecond,
	}
}

func checkoutSessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	orderID := req.OrderID.String()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(req.BuyerEmail),
		ClientReferenceID: stripe.String(orderID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(req.FeeMinor),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(req.DestinationAccount),
			},
		},
	}
	params.AddMetadata(MetadataListingID, req.ListingID.String())
	params.AddMetadata(MetadataOrderID, orderID)
	params.PaymentIntentData.AddMetadata(MetadataOrderID, orderID)
	params.SetIdempotencyKey(IdempotencyKey(req))
	return params
}

// IdempotencyKey is stable for the same order and charge, so retries of one
// request never open a second session. A changed destination or amount gets a
// fresh key instead of replaying a stale session.
func IdempotencyKey(req SessionRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s",
		req.DestinationAccount, req.AmountMinor, req.FeeMinor, req.Currency)))
	return "checkout-session:" + req.OrderID.String() + ":" + hex.EncodeToString(sum[:8])
}

func (g *stripeCheckoutGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var created *stripe.CheckoutSession
	backoff := retry.WithMaxRetries(g.attempts-1, retry.NewExponential(g.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := checkoutSessionParams(req)
		params.Context = ctx
		sess, err := g.sessions.New(params)
		if err != nil {
			if pkgstripe.IsSafeToRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		created = sess
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripeSession(created), nil
}

func (g *stripeCheckoutGateway) GetSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return fromStripeSession(sess), nil
}

// SessionFromStripe maps a decoded checkout.session payload.
func SessionFromStripe(sess *stripe.CheckoutSession) *Session {
	return fromStripeSession(sess)
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	if sess == nil {
		return nil
	}
	return &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
}
