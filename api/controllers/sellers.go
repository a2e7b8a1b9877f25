package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/api/responses"
	"github.com/curatedly/curatedly-backend/api/validators"
	"github.com/curatedly/curatedly-backend/internal/sellers"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

type SellerService interface {
	Register(ctx context.Context, input sellers.RegisterInput) (*models.Seller, error)
}

type registerSellerRequest struct {
	Slug        string  `json:"slug" validate:"required,min=3,max=40"`
	DisplayName string  `json:"display_name" validate:"required,max=120"`
	Handle      *string `json:"handle,omitempty" validate:"omitempty,max=64"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
}

type sellerResponse struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Handle      *string   `json:"handle,omitempty"`
	Email       *string   `json:"email,omitempty"`
	CanSellPaid bool      `json:"can_sell_paid"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegisterSeller creates the caller's storefront.
func RegisterSeller(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seller service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerSellerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seller, err := svc.Register(r.Context(), sellers.RegisterInput{
			UserID:      userID,
			Slug:        body.Slug,
			DisplayName: validators.SanitizeString(body.DisplayName, 120),
			Handle:      body.Handle,
			Email:       body.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sellerResponse{
			ID:          seller.ID,
			Slug:        seller.Slug,
			DisplayName: seller.DisplayName,
			Handle:      seller.Handle,
			Email:       seller.Email,
			CanSellPaid: seller.CanAcceptPayments(),
			CreatedAt:   seller.CreatedAt,
		})
	}
}
