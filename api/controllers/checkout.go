package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/api/responses"
	"github.com/curatedly/curatedly-backend/api/validators"
	"github.com/curatedly/curatedly-backend/internal/orders"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

// CheckoutService starts and retries buyer checkouts.
type CheckoutService interface {
	InitiateCheckout(ctx context.Context, listingID uuid.UUID, email string) (*orders.CheckoutResult, error)
	RetryCheckout(ctx context.Context, orderID uuid.UUID) (*orders.CheckoutResult, error)
}

type checkoutRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Email     string    `json:"email" validate:"required,email,max=254"`
}

// Checkout creates an order for a listing and returns where to send the buyer.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiateCheckout(r.Context(), body.ListingID, body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// RetryCheckout opens a fresh payment session for a pending order.
func RetryCheckout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RetryCheckout(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
