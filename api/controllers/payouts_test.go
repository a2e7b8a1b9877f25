package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatedly/curatedly-backend/internal/payouts"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
)

type stubPayoutService struct {
	userID    uuid.UUID
	link      *payouts.OnboardingLink
	status    *payouts.Status
	refreshed bool
	err       error
}

func (s *stubPayoutService) BeginOrRefreshOnboarding(_ context.Context, userID uuid.UUID) (*payouts.OnboardingLink, error) {
	s.userID = userID
	return s.link, s.err
}

func (s *stubPayoutService) Status(_ context.Context, userID uuid.UUID) (*payouts.Status, error) {
	s.userID = userID
	return s.status, s.err
}

func (s *stubPayoutService) RefreshAccount(_ context.Context, userID uuid.UUID) (*payouts.Status, error) {
	s.userID = userID
	s.refreshed = true
	return s.status, s.err
}

func TestPayoutOnboardingReturnsURL(t *testing.T) {
	userID := uuid.New()
	svc := &stubPayoutService{link: &payouts.OnboardingLink{URL: "https://connect.stripe.com/setup/e/acct_1/abc", AccountID: "acct_1"}}

	rec := serve(PayoutOnboarding(svc, nil), withUser(newRequest(http.MethodPost, "/api/v1/payouts/onboarding", ""), userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, svc.userID)

	var got payouts.OnboardingLink
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "https://connect.stripe.com/setup/e/acct_1/abc", got.URL)
}

func TestPayoutOnboardingGatewayFailure(t *testing.T) {
	svc := &stubPayoutService{err: pkgerrors.New(pkgerrors.CodeGateway, "create onboarding link")}

	rec := serve(PayoutOnboarding(svc, nil), withUser(newRequest(http.MethodPost, "/", ""), uuid.New()))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPayoutStatus(t *testing.T) {
	acct := "acct_1"
	svc := &stubPayoutService{status: &payouts.Status{AccountID: &acct, ChargesEnabled: true, PayoutsEnabled: true, CanSellPaid: true}}

	rec := serve(PayoutStatus(svc, nil), withUser(newRequest(http.MethodGet, "/", ""), uuid.New()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"can_sell_paid":true`)
	assert.False(t, svc.refreshed)
}

func TestPayoutRefreshBeforeOnboarding(t *testing.T) {
	svc := &stubPayoutService{err: pkgerrors.New(pkgerrors.CodePrecondition, "payout account not started")}

	rec := serve(PayoutRefresh(svc, nil), withUser(newRequest(http.MethodPost, "/", ""), uuid.New()))
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.True(t, svc.refreshed)
}

func TestPayoutRoutesRequireUser(t *testing.T) {
	svc := &stubPayoutService{}
	rec := serve(PayoutStatus(svc, nil), newRequest(http.MethodGet, "/", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
