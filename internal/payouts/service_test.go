package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/internal/sellers"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/dbtest"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
)

type stubGateway struct {
	createReqs []AccountRequest
	createErr  error
	accounts   map[string]*Account
	getErr     error
	links      []string
	linkErr    error
}

func (g *stubGateway) CreateAccount(_ context.Context, req AccountRequest) (*Account, error) {
	g.createReqs = append(g.createReqs, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &Account{ID: "acct_" + req.SellerID.String()[:8], OwnerUserID: req.OwnerUserID}, nil
}

func (g *stubGateway) GetAccount(_ context.Context, id string) (*Account, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	acct, ok := g.accounts[id]
	if !ok {
		return nil, errors.New("no such account " + id)
	}
	return acct, nil
}

func (g *stubGateway) CreateOnboardingLink(_ context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if g.linkErr != nil {
		return "", g.linkErr
	}
	g.links = append(g.links, accountID+"|"+refreshURL+"|"+returnURL)
	return "https://connect.stripe.test/setup/" + accountID, nil
}

type harness struct {
	conn    *gorm.DB
	sellers *sellers.Repository
	gateway *stubGateway
	svc     *Service
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{
		conn:    conn,
		sellers: sellers.NewRepository(conn),
		gateway: &stubGateway{accounts: map[string]*Account{}},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Sellers:       h.sellers,
		TxRunner:      db.Wrap(conn),
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		Gateway:       h.gateway,
		PublicBaseURL: "https://curated.example",
		Country:       "us",
		Currency:      "USD",
		Now:           func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) seller(t *testing.T, accountID string) *models.Seller {
	t.Helper()
	email := "creator@example.com"
	seller := &models.Seller{
		UserID:      uuid.New(),
		Slug:        "creator-" + uuid.NewString()[:8],
		DisplayName: "Creator",
		Email:       &email,
	}
	if accountID != "" {
		seller.StripeAccountID = &accountID
	}
	require.NoError(t, h.sellers.Create(context.Background(), seller))
	return seller
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *models.Seller {
	t.Helper()
	seller, err := h.sellers.FindByID(context.Background(), id)
	require.NoError(t, err)
	return seller
}

func TestApplyAccountUpdateOverwritesPayoutColumns(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "")
	other := h.seller(t, "acct_other")

	err := h.svc.ApplyAccountUpdate(context.Background(), AccountUpdate{
		AccountID:          "acct_123",
		OwnerUserID:        seller.UserID,
		OnboardingComplete: true,
		ChargesEnabled:     true,
		PayoutsEnabled:     true,
	})
	require.NoError(t, err)

	got := h.reload(t, seller.ID)
	require.NotNil(t, got.StripeAccountID)
	assert.Equal(t, "acct_123", *got.StripeAccountID)
	assert.True(t, got.StripeOnboardingComplete)
	assert.True(t, got.StripeChargesEnabled)
	assert.True(t, got.StripePayoutsEnabled)
	require.NotNil(t, got.StripeLastChecked)
	assert.True(t, h.now.Equal(got.StripeLastChecked.UTC()))
	assert.Equal(t, seller.Slug, got.Slug)
	assert.Equal(t, seller.DisplayName, got.DisplayName)

	untouched := h.reload(t, other.ID)
	assert.Nil(t, untouched.StripeLastChecked)
	assert.False(t, untouched.StripeChargesEnabled)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPayoutAccountUpdated, events[0].EventType)
	assert.Equal(t, seller.ID, events[0].AggregateID)
}

func TestApplyAccountUpdateRevokesCapabilities(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "acct_1")
	ctx := context.Background()

	require.NoError(t, h.svc.ApplyAccountUpdate(ctx, AccountUpdate{AccountID: "acct_1", OwnerUserID: seller.UserID, OnboardingComplete: true, ChargesEnabled: true, PayoutsEnabled: true}))
	require.NoError(t, h.svc.ApplyAccountUpdate(ctx, AccountUpdate{AccountID: "acct_1", OwnerUserID: seller.UserID, OnboardingComplete: true, ChargesEnabled: true, PayoutsEnabled: false}))

	got := h.reload(t, seller.ID)
	assert.True(t, got.StripeChargesEnabled)
	assert.False(t, got.StripePayoutsEnabled)
	assert.False(t, got.CanAcceptPayments())
}

func TestApplyAccountUpdateRequiresOwner(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "acct_1")

	err := h.svc.ApplyAccountUpdate(context.Background(), AccountUpdate{AccountID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	got := h.reload(t, seller.ID)
	assert.False(t, got.StripeChargesEnabled)
	assert.Nil(t, got.StripeLastChecked)
}

func TestApplyAccountUpdateUnknownOwner(t *testing.T) {
	h := newHarness(t)
	err := h.svc.ApplyAccountUpdate(context.Background(), AccountUpdate{AccountID: "acct_1", OwnerUserID: uuid.New()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	var n int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestBeginOnboardingCreatesAccountOnce(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "")
	ctx := context.Background()

	link, err := h.svc.BeginOrRefreshOnboarding(ctx, seller.UserID)
	require.NoError(t, err)
	require.Len(t, h.gateway.createReqs, 1)
	req := h.gateway.createReqs[0]
	assert.Equal(t, "US", req.Country)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, seller.UserID, req.OwnerUserID)
	assert.Equal(t, "creator@example.com", req.Email)

	stored := h.reload(t, seller.ID)
	require.NotNil(t, stored.StripeAccountID)
	assert.Equal(t, *stored.StripeAccountID, link.AccountID)
	assert.Equal(t, "https://connect.stripe.test/setup/"+link.AccountID, link.URL)
	assert.Equal(t, link.AccountID+"|https://curated.example/dashboard/payouts/refresh|https://curated.example/dashboard/payouts/return", h.gateway.links[0])

	again, err := h.svc.BeginOrRefreshOnboarding(ctx, seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, link.AccountID, again.AccountID)
	assert.Len(t, h.gateway.createReqs, 1)
	assert.Len(t, h.gateway.links, 2)
}

func TestBeginOnboardingGatewayFailure(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "")
	h.gateway.createErr = errors.New("stripe down")

	_, err := h.svc.BeginOrRefreshOnboarding(context.Background(), seller.UserID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGateway))
	assert.Nil(t, h.reload(t, seller.ID).StripeAccountID)
}

func TestBeginOnboardingUnknownSeller(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.BeginOrRefreshOnboarding(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, h.gateway.createReqs)
}

func TestRefreshAccountAppliesRemoteState(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "acct_live")
	h.gateway.accounts["acct_live"] = &Account{ID: "acct_live", DetailsSubmitted: true, ChargesEnabled: true, PayoutsEnabled: true}

	status, err := h.svc.RefreshAccount(context.Background(), seller.UserID)
	require.NoError(t, err)
	assert.True(t, status.CanSellPaid)
	assert.True(t, status.OnboardingComplete)
	require.NotNil(t, status.LastCheckedAt)
}

func TestRefreshAccountBeforeOnboarding(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "")
	_, err := h.svc.RefreshAccount(context.Background(), seller.UserID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
}

func TestRefreshStaleContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	good := h.seller(t, "acct_good")
	h.seller(t, "acct_gone")
	h.seller(t, "")
	h.gateway.accounts["acct_good"] = &Account{ID: "acct_good", ChargesEnabled: true, PayoutsEnabled: true}

	summary, err := h.svc.RefreshStale(context.Background(), h.now.Add(-time.Hour), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acct_gone")
	assert.Equal(t, RefreshSummary{Checked: 2, Updated: 1}, summary)
	assert.True(t, h.reload(t, good.ID).CanAcceptPayments())
}

func TestAccountFromStripeReadsOwner(t *testing.T) {
	userID := uuid.New()
	acct := AccountFromStripe(stripeAccount("acct_1", map[string]string{MetadataUserID: userID.String()}))
	assert.Equal(t, userID, acct.OwnerUserID)
	assert.True(t, acct.ChargesEnabled)

	missing := AccountFromStripe(stripeAccount("acct_2", map[string]string{MetadataUserID: "nope"}))
	assert.Equal(t, uuid.Nil, missing.OwnerUserID)
}

func TestStatusReflectsStoredFlags(t *testing.T) {
	h := newHarness(t)
	seller := h.seller(t, "acct_status")

	before, err := h.svc.Status(context.Background(), seller.UserID)
	require.NoError(t, err)
	assert.False(t, before.CanSellPaid)
	assert.Nil(t, before.LastCheckedAt)

	require.NoError(t, h.svc.ApplyAccountUpdate(context.Background(), AccountUpdate{
		AccountID:          "acct_status",
		OwnerUserID:        seller.UserID,
		OnboardingComplete: true,
		ChargesEnabled:     true,
		PayoutsEnabled:     true,
	}))

	after, err := h.svc.Status(context.Background(), seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, seller.ID, after.SellerID)
	assert.True(t, after.CanSellPaid)
	require.NotNil(t, after.LastCheckedAt)
	assert.WithinDuration(t, h.now, *after.LastCheckedAt, time.Second)

	_, err = h.svc.Status(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Status(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}
