package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/api/responses"
	"github.com/curatedly/curatedly-backend/internal/orders"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

type ConfirmationService interface {
	GetConfirmation(ctx context.Context, orderID uuid.UUID) (*orders.Confirmation, error)
}

// OrderConfirmation returns the buyer-facing record of an order.
func OrderConfirmation(svc ConfirmationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmation, err := svc.GetConfirmation(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmation)
	}
}
