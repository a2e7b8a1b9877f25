package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/internal/listings"
	"github.com/curatedly/curatedly-backend/internal/sellers"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/dbtest"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
)

type stubGateway struct {
	created  []SessionRequest
	createFn func(SessionRequest) (*Session, error)
	sessions map[string]*Session
	getErr   error
}

func (g *stubGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	g.created = append(g.created, req)
	if g.createFn != nil {
		return g.createFn(req)
	}
	return &Session{ID: "cs_" + req.OrderID.String()[:8], URL: "https://checkout.stripe.test/" + req.OrderID.String(), Status: SessionStatusOpen}, nil
}

func (g *stubGateway) GetSession(_ context.Context, id string) (*Session, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	sess, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

type harness struct {
	conn    *gorm.DB
	svc     *Service
	repo    *Repository
	gateway *stubGateway
	sellers *sellers.Repository
	lists   *listings.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{
		conn:    conn,
		repo:    NewRepository(conn),
		gateway: &stubGateway{sessions: map[string]*Session{}},
		sellers: sellers.NewRepository(conn),
		lists:   listings.NewRepository(conn),
	}
	svc, err := NewService(ServiceParams{
		Repository:         h.repo,
		Listings:           h.lists,
		TxRunner:           db.Wrap(conn),
		Outbox:             outbox.NewService(outbox.NewRepository(conn), nil),
		Gateway:            h.gateway,
		PublicBaseURL:      "https://curated.example/",
		PlatformFeePercent: 20,
		Currency:           "USD",
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) listing(t *testing.T, tier enums.ListingTier, price string, payoutsReady bool) *models.Listing {
	t.Helper()
	ctx := context.Background()
	seller := &models.Seller{
		UserID:               uuid.New(),
		Slug:                 "seller-" + uuid.NewString()[:8],
		DisplayName:          "Mia",
		StripeChargesEnabled: payoutsReady,
		StripePayoutsEnabled: payoutsReady,
	}
	if payoutsReady {
		acct := "acct_" + uuid.NewString()[:8]
		seller.StripeAccountID = &acct
	}
	require.NoError(t, h.sellers.Create(ctx, seller))

	listing := &models.Listing{
		SellerID: seller.ID,
		Title:    "Capsule wardrobe guide",
		Tier:     tier,
		Price:    decimal.RequireFromString(price),
	}
	require.NoError(t, h.lists.Create(ctx, listing))
	listing.Seller = seller
	return listing
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Count(&n).Error)
	return n
}

func (h *harness) order(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func TestPaidCheckoutHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "20", true)

	result, err := h.svc.InitiateCheckout(ctx, listing.ID, " buyer@example.com ")
	require.NoError(t, err)
	assert.False(t, result.Free)
	assert.Contains(t, result.RedirectURL, "https://checkout.stripe.test/")

	order := h.order(t, result.OrderID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, listing.ID, order.ListingID)
	assert.Equal(t, "buyer@example.com", order.Email)
	require.NotNil(t, order.CheckoutSessionID)
	require.NotNil(t, order.CheckoutURL)
	assert.Equal(t, result.RedirectURL, *order.CheckoutURL)

	require.Len(t, h.gateway.created, 1)
	req := h.gateway.created[0]
	assert.Equal(t, int64(2000), req.AmountMinor)
	assert.Equal(t, int64(400), req.FeeMinor)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, *listing.Seller.StripeAccountID, req.DestinationAccount)
	assert.Equal(t, "https://curated.example/orders/"+order.ID.String()+"/confirmation", req.SuccessURL)
	assert.Equal(t, "https://curated.example/orders/"+order.ID.String()+"/cancelation", req.CancelURL)
	assert.Equal(t, order.ID, req.OrderID)
	assert.Equal(t, listing.ID, req.ListingID)
	assert.Zero(t, h.count(t, &models.OutboxEvent{}))

	changed, err := h.svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, enums.OrderStatusCompleted, h.order(t, order.ID).Status)
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}))
}

func TestDuplicateCompletionNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "20", true)
	result, err := h.svc.InitiateCheckout(ctx, listing.ID, "buyer@example.com")
	require.NoError(t, err)

	first, err := h.svc.Complete(ctx, result.OrderID)
	require.NoError(t, err)
	second, err := h.svc.Complete(ctx, result.OrderID)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, enums.OrderStatusCompleted, h.order(t, result.OrderID).Status)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCompleted, events[0].EventType)
	assert.Equal(t, result.OrderID, events[0].AggregateID)
}

func TestConcurrentCompletionChangesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "20", true)
	result, err := h.svc.InitiateCheckout(ctx, listing.ID, "buyer@example.com")
	require.NoError(t, err)

	// shared-cache sqlite locks whole tables; one connection queues the
	// transactions while the callers still race
	sqlDB, err := h.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const callers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		changed atomic.Int32
		errs    = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := h.svc.Complete(ctx, result.OrderID)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				changed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, changed.Load(), "exactly one caller may apply the transition")
	assert.Equal(t, enums.OrderStatusCompleted, h.order(t, result.OrderID).Status)
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}))
}

func TestCompletionAndFailureRace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "20", true)
	result, err := h.svc.InitiateCheckout(ctx, listing.ID, "buyer@example.com")
	require.NoError(t, err)

	sqlDB, err := h.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	var (
		wg                   sync.WaitGroup
		start                = make(chan struct{})
		completed, failed    bool
		completeErr, failErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		completed, completeErr = h.svc.Complete(ctx, result.OrderID)
	}()
	go func() {
		defer wg.Done()
		<-start
		failed, failErr = h.svc.Fail(ctx, result.OrderID, "checkout session expired")
	}()
	close(start)
	wg.Wait()

	require.NoError(t, completeErr)
	require.NoError(t, failErr)
	assert.True(t, completed != failed, "exactly one terminal transition may win")

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	status := h.order(t, result.OrderID).Status
	if completed {
		assert.Equal(t, enums.OrderStatusCompleted, status)
		assert.Equal(t, enums.EventOrderCompleted, events[0].EventType)
	} else {
		assert.Equal(t, enums.OrderStatusFailed, status)
		assert.Equal(t, enums.EventOrderFailed, events[0].EventType)
	}
}

func TestAmountConversionAndFee(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierPremium, "12.50", true)

	_, err := h.svc.InitiateCheckout(context.Background(), listing.ID, "buyer@example.com")
	require.NoError(t, err)
	require.Len(t, h.gateway.created, 1)
	assert.Equal(t, int64(1250), h.gateway.created[0].AmountMinor)
	assert.Equal(t, int64(250), h.gateway.created[0].FeeMinor)
}

func TestFreeCheckoutCompletesWithoutGateway(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierFree, "0", false)

	result, err := h.svc.InitiateCheckout(context.Background(), listing.ID, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, result.Free)
	assert.Equal(t, "https://curated.example/orders/"+result.OrderID.String()+"/confirmation", result.RedirectURL)

	order := h.order(t, result.OrderID)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
	assert.Nil(t, order.CheckoutSessionID)
	assert.Empty(t, h.gateway.created)
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}))
}

func TestGatewayFailureLeavesOrderPending(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierPaid, "5", true)
	h.gateway.createFn = func(SessionRequest) (*Session, error) {
		return nil, errors.New("stripe: account cannot receive transfers")
	}

	_, err := h.svc.InitiateCheckout(context.Background(), listing.ID, "buyer@example.com")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeGateway, pkgerrors.As(err).Code())

	var orders []models.Order
	require.NoError(t, h.conn.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, enums.OrderStatusPending, orders[0].Status)
	assert.Nil(t, orders[0].CheckoutSessionID)
}

func TestSellerWithoutPayoutAccountIsGatewayError(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierPaid, "5", false)

	_, err := h.svc.InitiateCheckout(context.Background(), listing.ID, "buyer@example.com")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGateway))
	assert.Empty(t, h.gateway.created)
	assert.EqualValues(t, 1, h.count(t, &models.Order{}))
}

func TestInitiateCheckoutRejectsBeforeWriting(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierPaid, "5", true)
	ctx := context.Background()

	_, err := h.svc.InitiateCheckout(ctx, listing.ID, "not-an-email")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.InitiateCheckout(ctx, uuid.New(), "buyer@example.com")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Empty(t, h.gateway.created)
}

func TestRetryCheckoutReusesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "9.99", true)

	h.gateway.createFn = func(SessionRequest) (*Session, error) { return nil, errors.New("dial tcp: refused") }
	_, err := h.svc.InitiateCheckout(ctx, listing.ID, "buyer@example.com")
	require.Error(t, err)
	orderID := uuid.MustParse(pkgerrors.As(err).Details().(map[string]string)["order_id"])

	h.gateway.createFn = nil
	result, err := h.svc.RetryCheckout(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, result.OrderID)
	require.Len(t, h.gateway.created, 2)
	assert.Equal(t, h.gateway.created[0].OrderID, h.gateway.created[1].OrderID)
	assert.Equal(t, int64(999), h.gateway.created[1].AmountMinor)
	assert.Equal(t, int64(199), h.gateway.created[1].FeeMinor)

	again, err := h.svc.RetryCheckout(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, result.RedirectURL, again.RedirectURL)
	assert.Len(t, h.gateway.created, 2)
	assert.EqualValues(t, 1, h.count(t, &models.Order{}))

	_, err = h.svc.Complete(ctx, orderID)
	require.NoError(t, err)
	_, err = h.svc.RetryCheckout(ctx, orderID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestTerminalStatesDoNotMove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "3", true)
	result, err := h.svc.InitiateCheckout(ctx, listing.ID, "buyer@example.com")
	require.NoError(t, err)

	failed, err := h.svc.Fail(ctx, result.OrderID, reasonSessionExpired)
	require.NoError(t, err)
	assert.True(t, failed)

	completed, err := h.svc.Complete(ctx, result.OrderID)
	require.NoError(t, err)
	assert.False(t, completed)

	order := h.order(t, result.OrderID)
	assert.Equal(t, enums.OrderStatusFailed, order.Status)
	require.NotNil(t, order.FailureReason)
	assert.Equal(t, reasonSessionExpired, *order.FailureReason)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderFailed, events[0].EventType)
}

func TestCompleteUnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Complete(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGetConfirmation(t *testing.T) {
	h := newHarness(t)
	listing := h.listing(t, enums.ListingTierFree, "0", false)
	result, err := h.svc.InitiateCheckout(context.Background(), listing.ID, "buyer@example.com")
	require.NoError(t, err)

	conf, err := h.svc.GetConfirmation(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, conf.Status)
	assert.Equal(t, "buyer@example.com", conf.Email)
	assert.Equal(t, listing.Title, conf.ListingTitle)
	assert.Equal(t, "Mia", conf.SellerDisplayName)
}

func TestReconcilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	listing := h.listing(t, enums.ListingTierPaid, "10", true)

	old := time.Now().UTC().Add(-2 * time.Hour)
	newOrder := func(session string) uuid.UUID {
		o := &models.Order{
			ListingID:         listing.ID,
			Email:             "buyer@example.com",
			Status:            enums.OrderStatusPending,
			AmountCents:       1000,
			FeeCents:          200,
			Currency:          "usd",
			CheckoutSessionID: &session,
			CreatedAt:         old,
		}
		require.NoError(t, h.repo.Create(ctx, o))
		return o.ID
	}
	paid := newOrder("cs_paid")
	expired := newOrder("cs_expired")
	open := newOrder("cs_open")
	broken := newOrder("cs_missing")

	h.gateway.sessions["cs_paid"] = &Session{ID: "cs_paid", Status: SessionStatusComplete, PaymentStatus: PaymentStatusPaid}
	h.gateway.sessions["cs_expired"] = &Session{ID: "cs_expired", Status: SessionStatusExpired, PaymentStatus: PaymentStatusUnpaid}
	h.gateway.sessions["cs_open"] = &Session{ID: "cs_open", Status: SessionStatusOpen, PaymentStatus: PaymentStatusUnpaid}

	summary, err := h.svc.ReconcilePending(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.String())
	assert.Equal(t, ReconcileSummary{Checked: 4, Completed: 1, Failed: 1}, summary)

	assert.Equal(t, enums.OrderStatusCompleted, h.order(t, paid).Status)
	assert.Equal(t, enums.OrderStatusFailed, h.order(t, expired).Status)
	assert.Equal(t, enums.OrderStatusPending, h.order(t, open).Status)
	assert.Equal(t, enums.OrderStatusPending, h.order(t, broken).Status)
}

func TestSessionSettled(t *testing.T) {
	assert.True(t, Session{Status: SessionStatusComplete, PaymentStatus: PaymentStatusPaid}.Settled())
	assert.True(t, Session{Status: SessionStatusComplete, PaymentStatus: PaymentStatusNoPaymentRequired}.Settled())
	assert.False(t, Session{Status: SessionStatusComplete, PaymentStatus: PaymentStatusUnpaid}.Settled())
	assert.False(t, Session{Status: SessionStatusExpired, PaymentStatus: PaymentStatusPaid}.Settled())
}
