package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
)

type stubConfirmationService struct {
	confirmation *orders.Confirmation
	err          error
}

func (s stubConfirmationService) GetConfirmation(context.Context, uuid.UUID) (*orders.Confirmation, error) {
	return s.confirmation, s.err
}

func TestOrderConfirmation(t *testing.T) {
	orderID := uuid.New()
	svc := stubConfirmationService{confirmation: &orders.Confirmation{
		ID:           orderID,
		Status:       enums.OrderStatusCompleted,
		AmountCents:  2000,
		Currency:     "usd",
		ListingTitle: "Tokyo coffee map",
	}}

	req := withURLParam(newRequest(http.MethodGet, "/api/public/orders/"+orderID.String(), ""), "orderId", orderID.String())
	rec := serve(OrderConfirmation(svc, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got orders.Confirmation
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, orderID, got.ID)
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
	assert.EqualValues(t, 2000, got.AmountCents)
}

func TestOrderConfirmationNotFound(t *testing.T) {
	svc := stubConfirmationService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}

	id := uuid.NewString()
	rec := serve(OrderConfirmation(svc, nil), withURLParam(newRequest(http.MethodGet, "/", ""), "orderId", id))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
