package listings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db/models"
	pkgpagination "github.com/curatedly/curatedly-backend/pkg/pagination"
)

// Repository persists listings.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	if listing == nil {
		return errors.New("listing is required")
	}
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Seller").Create(listing).Error
}

// FindByID loads a listing with its seller.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Preload("Seller").Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindForSeller loads a listing only when sellerID owns it.
func (r *Repository) FindForSeller(ctx context.Context, id, sellerID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ? AND seller_id = ?", id, sellerID).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *Repository) Update(ctx context.Context, listing *models.Listing) error {
	if listing == nil {
		return errors.New("listing is required")
	}
	return r.db.WithContext(ctx).Omit("Seller", "CreatedAt").Save(listing).Error
}

// Delete removes a listing owned by sellerID and reports whether a row went away.
func (r *Repository) Delete(ctx context.Context, id, sellerID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND seller_id = ?", id, sellerID).Delete(&models.Listing{})
	return res.RowsAffected > 0, res.Error
}

// ListBySeller pages newest first on (created_at, id).
func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, cursor *pkgpagination.Cursor, limit int) ([]models.Listing, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{}).Where("seller_id = ?", sellerID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Listing
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
