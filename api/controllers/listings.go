package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/api/responses"
	"github.com/curatedly/curatedly-backend/api/validators"
	"github.com/curatedly/curatedly-backend/internal/listings"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/pagination"
)

type PublicListingService interface {
	Get(ctx context.Context, listingID uuid.UUID) (*listings.PublicListingDTO, error)
}

// ListingService is the seller-side listing surface.
type ListingService interface {
	Create(ctx context.Context, userID uuid.UUID, input listings.CreateInput) (*listings.ListingDTO, error)
	Update(ctx context.Context, userID, listingID uuid.UUID, input listings.UpdateInput) (*listings.ListingDTO, error)
	Delete(ctx context.Context, userID, listingID uuid.UUID) error
	ListBySeller(ctx context.Context, userID uuid.UUID, params pagination.Params) (*listings.ListResult, error)
}

// Price travels as a string so major-unit decimals survive JSON untouched.
type createListingRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tier        string   `json:"tier" validate:"required"`
	Price       string   `json:"price"`
	ImageURLs   []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	MapURL      *string  `json:"map_url,omitempty" validate:"omitempty,url"`
}

type updateListingRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tier        *string   `json:"tier,omitempty"`
	Price       *string   `json:"price,omitempty"`
	ImageURLs   *[]string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	MapURL      *string   `json:"map_url,omitempty" validate:"omitempty,url"`
}

func PublicListing(svc PublicListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		listingID, err := uuidParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// SellerListings pages through the caller's listings, newest first.
func SellerListings(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBySeller(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CreateListing(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), userID, listings.CreateInput{
			Title:       validators.SanitizeString(body.Title, 200),
			Description: body.Description,
			Tier:        body.Tier,
			Price:       body.Price,
			ImageURLs:   body.ImageURLs,
			MapURL:      body.MapURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func UpdateListing(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := uuidParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Update(r.Context(), userID, listingID, listings.UpdateInput{
			Title:       body.Title,
			Description: body.Description,
			Tier:        body.Tier,
			Price:       body.Price,
			ImageURLs:   body.ImageURLs,
			MapURL:      body.MapURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func DeleteListing(svc ListingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := uuidParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, listingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
