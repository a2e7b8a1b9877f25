package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatedly/curatedly-backend/internal/listings"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/pagination"
)

type stubListingService struct {
	userID    uuid.UUID
	listingID uuid.UUID
	create    listings.CreateInput
	update    listings.UpdateInput
	params    pagination.Params
	deleted   bool
	public    *listings.PublicListingDTO
	err       error
}

func (s *stubListingService) Get(_ context.Context, listingID uuid.UUID) (*listings.PublicListingDTO, error) {
	s.listingID = listingID
	return s.public, s.err
}

func (s *stubListingService) Create(_ context.Context, userID uuid.UUID, input listings.CreateInput) (*listings.ListingDTO, error) {
	s.userID = userID
	s.create = input
	if s.err != nil {
		return nil, s.err
	}
	return &listings.ListingDTO{ID: uuid.New(), Title: input.Title, Tier: enums.ListingTier(input.Tier), Price: input.Price}, nil
}

func (s *stubListingService) Update(_ context.Context, userID, listingID uuid.UUID, input listings.UpdateInput) (*listings.ListingDTO, error) {
	s.userID = userID
	s.listingID = listingID
	s.update = input
	if s.err != nil {
		return nil, s.err
	}
	return &listings.ListingDTO{ID: listingID}, nil
}

func (s *stubListingService) Delete(_ context.Context, userID, listingID uuid.UUID) error {
	s.userID = userID
	s.listingID = listingID
	s.deleted = s.err == nil
	return s.err
}

func (s *stubListingService) ListBySeller(_ context.Context, userID uuid.UUID, params pagination.Params) (*listings.ListResult, error) {
	s.userID = userID
	s.params = params
	return &listings.ListResult{Items: []listings.ListingDTO{}}, s.err
}

func TestPublicListing(t *testing.T) {
	listingID := uuid.New()
	svc := &stubListingService{public: &listings.PublicListingDTO{
		ListingDTO:  listings.ListingDTO{ID: listingID, Tier: enums.ListingTierPaid, Price: "20.00"},
		SellerSlug:  "maya",
		Purchasable: true,
	}}

	rec := serve(PublicListing(svc, nil), withURLParam(newRequest(http.MethodGet, "/", ""), "listingId", listingID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, listingID, svc.listingID)

	var got listings.PublicListingDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "maya", got.SellerSlug)
	assert.True(t, got.Purchasable)
}

func TestCreateListingPassesInput(t *testing.T) {
	userID := uuid.New()
	svc := &stubListingService{}

	body := `{"title":" Lisbon guide ","tier":"premium","price":"7.00","image_urls":["https://cdn.example.com/a.png"]}`
	rec := serve(CreateListing(svc, nil), withUser(newRequest(http.MethodPost, "/api/v1/listings", body), userID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, "Lisbon guide", svc.create.Title)
	assert.Equal(t, "premium", svc.create.Tier)
	assert.Equal(t, "7.00", svc.create.Price)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, svc.create.ImageURLs)
}

func TestCreateListingTierPriceViolation(t *testing.T) {
	svc := &stubListingService{err: pkgerrors.New(pkgerrors.CodeValidation, "premium listings must cost at least 7.00")}

	body := `{"title":"Guide","tier":"premium","price":"5"}`
	rec := serve(CreateListing(svc, nil), withUser(newRequest(http.MethodPost, "/api/v1/listings", body), uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "at least 7.00")
}

func TestCreateListingRejectsBadImageURL(t *testing.T) {
	svc := &stubListingService{}

	body := `{"title":"Guide","tier":"free","image_urls":["not a url"]}`
	rec := serve(CreateListing(svc, nil), withUser(newRequest(http.MethodPost, "/api/v1/listings", body), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.userID)
}

func TestUpdateListingPartial(t *testing.T) {
	listingID := uuid.New()
	svc := &stubListingService{}

	req := withURLParam(withUser(newRequest(http.MethodPatch, "/", `{"price":"12.50"}`), uuid.New()), "listingId", listingID.String())
	rec := serve(UpdateListing(svc, nil), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, listingID, svc.listingID)
	require.NotNil(t, svc.update.Price)
	assert.Equal(t, "12.50", *svc.update.Price)
	assert.Nil(t, svc.update.Title)
	assert.Nil(t, svc.update.Tier)
}

func TestDeleteListing(t *testing.T) {
	svc := &stubListingService{}

	req := withURLParam(withUser(newRequest(http.MethodDelete, "/", ""), uuid.New()), "listingId", uuid.NewString())
	rec := serve(DeleteListing(svc, nil), req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.deleted)
}

func TestDeleteListingNotOwned(t *testing.T) {
	svc := &stubListingService{err: pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")}

	req := withURLParam(withUser(newRequest(http.MethodDelete, "/", ""), uuid.New()), "listingId", uuid.NewString())
	rec := serve(DeleteListing(svc, nil), req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSellerListingsPagination(t *testing.T) {
	svc := &stubListingService{}

	req := withUser(newRequest(http.MethodGet, "/api/v1/listings?limit=10&cursor=abc", ""), uuid.New())
	rec := serve(SellerListings(svc, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Params{Limit: 10, Cursor: "abc"}, svc.params)

	req = withUser(newRequest(http.MethodGet, "/api/v1/listings?limit=1000", ""), uuid.New())
	rec = serve(SellerListings(svc, nil), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
