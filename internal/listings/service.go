package listings

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	pkgpagination "github.com/curatedly/curatedly-backend/pkg/pagination"
	"github.com/curatedly/curatedly-backend/pkg/pricing"
)

const (
	maxTitleLength = 200
	maxImages      = 10
)

type repository interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindForSeller(ctx context.Context, id, sellerID uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	Delete(ctx context.Context, id, sellerID uuid.UUID) (bool, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, cursor *pkgpagination.Cursor, limit int) ([]models.Listing, error)
}

type sellerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
}

type ServiceParams struct {
	Repository repository
	Sellers    sellerLookup
	Rules      pricing.TierRules
	Logger     *logger.Logger
}

// Service manages a seller's listings. Every mutation validates the
// tier/price pair first and the payout-capability gate second; nothing is
// written when either fails.
type Service struct {
	repo    repository
	sellers sellerLookup
	rules   pricing.TierRules
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("listing repository required")
	}
	if params.Sellers == nil {
		return nil, errors.New("seller lookup required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:    params.Repository,
		sellers: params.Sellers,
		rules:   params.Rules,
		logg:    logg,
	}, nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ListingDTO, error) {
	seller, err := s.ownSeller(ctx, userID)
	if err != nil {
		return nil, err
	}

	listing := &models.Listing{
		SellerID:    seller.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		ImageURLs:   pq.StringArray(cleanImages(input.ImageURLs)),
		MapURL:      input.MapURL,
	}
	if listing.Tier, err = parseTier(input.Tier); err != nil {
		return nil, err
	}
	if listing.Price, err = parsePrice(input.Price, listing.Tier); err != nil {
		return nil, err
	}
	if err := s.check(seller, listing); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"seller_id":  seller.ID.String(),
		"listing_id": listing.ID.String(),
		"tier":       listing.Tier,
	}), "listing created")

	dto := toDTO(*listing)
	return &dto, nil
}

func (s *Service) Update(ctx context.Context, userID, listingID uuid.UUID, input UpdateInput) (*ListingDTO, error) {
	seller, err := s.ownSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	listing, err := s.repo.FindForSeller(ctx, listingID, seller.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}

	if input.Title != nil {
		listing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		listing.Description = input.Description
	}
	if input.MapURL != nil {
		listing.MapURL = input.MapURL
	}
	if input.ImageURLs != nil {
		listing.ImageURLs = pq.StringArray(cleanImages(*input.ImageURLs))
	}
	if input.Tier != nil {
		if listing.Tier, err = parseTier(*input.Tier); err != nil {
			return nil, err
		}
		// a downgrade to free without an explicit price clears it
		if listing.Tier == enums.ListingTierFree && input.Price == nil {
			listing.Price = decimal.Zero
		}
	}
	if input.Price != nil {
		if listing.Price, err = parsePrice(*input.Price, listing.Tier); err != nil {
			return nil, err
		}
	}
	if err := s.check(seller, listing); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
	}
	dto := toDTO(*listing)
	return &dto, nil
}

func (s *Service) Delete(ctx context.Context, userID, listingID uuid.UUID) error {
	seller, err := s.ownSeller(ctx, userID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, listingID, seller.ID)
	if dbpkg.IsForeignKeyViolation(err, "fk_orders_listing") {
		// orders are never removed, so a purchased listing stays
		return pkgerrors.New(pkgerrors.CodeStateConflict, "listing has orders and cannot be deleted")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listing")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

// Get returns the public view of a listing.
func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*PublicListingDTO, error) {
	listing, err := s.repo.FindByID(ctx, listingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.Seller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}

	return &PublicListingDTO{
		ListingDTO:        toDTO(*listing),
		SellerSlug:        listing.Seller.Slug,
		SellerDisplayName: listing.Seller.DisplayName,
		Purchasable:       !listing.Tier.RequiresPayouts() || listing.Seller.CanAcceptPayments(),
	}, nil
}

func (s *Service) ListBySeller(ctx context.Context, userID uuid.UUID, params pkgpagination.Params) (*ListResult, error) {
	seller, err := s.ownSeller(ctx, userID)
	if err != nil {
		return nil, err
	}

	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pkgpagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListBySeller(ctx, seller.ID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}

	rows, next := pkgpagination.Page(rows, limit, func(l models.Listing) pkgpagination.Cursor {
		return pkgpagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})

	items := make([]ListingDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDTO(row))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

// check runs the field, tier/price and payout-capability validations in that order.
func (s *Service) check(seller *models.Seller, listing *models.Listing) error {
	if listing.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if len(listing.Title) > maxTitleLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "title too long")
	}
	if len(listing.ImageURLs) > maxImages {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many images")
	}
	if err := s.rules.ValidateTierPrice(listing.Tier, listing.Price); err != nil {
		return err
	}
	if listing.Tier.RequiresPayouts() && !seller.CanAcceptPayments() {
		return pkgerrors.New(pkgerrors.CodePrecondition, "connect a payout account before selling paid listings").WithDetails(map[string]bool{
			"charges_enabled": seller.StripeChargesEnabled,
			"payouts_enabled": seller.StripePayoutsEnabled,
		})
	}
	return nil
}

func (s *Service) ownSeller(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	seller, err := s.sellers.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return seller, nil
}

func parseTier(raw string) (enums.ListingTier, error) {
	tier, err := enums.ParseListingTier(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier")
	}
	return tier, nil
}

// parsePrice accepts an empty price only for free listings.
func parsePrice(raw string, tier enums.ListingTier) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if tier == enums.ListingTierFree {
			return decimal.Zero, nil
		}
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price required")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	return price, nil
}

func cleanImages(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
