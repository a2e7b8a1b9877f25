package listings

import (
	"time"

	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
)

// CreateInput carries a new listing. Price is a major-unit decimal string.
type CreateInput struct {
	Title       string
	Description *string
	Tier        string
	Price       string
	ImageURLs   []string
	MapURL      *string
}

// UpdateInput is a partial edit; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Tier        *string
	Price       *string
	ImageURLs   *[]string
	MapURL      *string
}

// ListingDTO is the API shape of a listing.
type ListingDTO struct {
	ID          uuid.UUID         `json:"id"`
	SellerID    uuid.UUID         `json:"seller_id"`
	Title       string            `json:"title"`
	Description *string           `json:"description,omitempty"`
	Tier        enums.ListingTier `json:"tier"`
	Price       string            `json:"price"`
	ImageURLs   []string          `json:"image_urls"`
	MapURL      *string           `json:"map_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// PublicListingDTO adds the storefront identity for buyer-facing pages.
type PublicListingDTO struct {
	ListingDTO
	SellerSlug        string `json:"seller_slug"`
	SellerDisplayName string `json:"seller_display_name"`
	Purchasable       bool   `json:"purchasable"`
}

type ListResult struct {
	Items  []ListingDTO `json:"items"`
	Cursor string       `json:"cursor"`
}

func toDTO(m models.Listing) ListingDTO {
	images := []string(m.ImageURLs)
	if images == nil {
		images = []string{}
	}
	return ListingDTO{
		ID:          m.ID,
		SellerID:    m.SellerID,
		Title:       m.Title,
		Description: m.Description,
		Tier:        m.Tier,
		Price:       m.Price.StringFixed(2),
		ImageURLs:   images,
		MapURL:      m.MapURL,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
