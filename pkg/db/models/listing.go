package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/curatedly/curatedly-backend/pkg/enums"
)

// Listing is a recommendation a seller offers on their storefront.
type Listing struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Seller      *Seller           `gorm:"foreignKey:SellerID;references:ID"`
	Title       string            `gorm:"column:title;not null"`
	Description *string           `gorm:"column:description"`
	Tier        enums.ListingTier `gorm:"column:tier;type:listing_tier;not null;default:'free'"`
	Price       decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null;default:0"`
	ImageURLs   pq.StringArray    `gorm:"column:image_urls;type:text[]"`
	MapURL      *string           `gorm:"column:map_url"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
