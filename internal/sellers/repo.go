package sellers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db/models"
)

// PayoutProfile is the gateway-owned projection stored on a seller row.
type PayoutProfile struct {
	StripeAccountID    string
	OnboardingComplete bool
	ChargesEnabled     bool
	PayoutsEnabled     bool
	CheckedAt          time.Time
}

// Repository persists sellers.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, seller *models.Seller) error {
	if seller == nil {
		return errors.New("seller is required")
	}
	if seller.ID == uuid.Nil {
		seller.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(seller).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Seller, error) {
	return r.findOne(ctx, "slug = ?", slug)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where(query, arg).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

// SetStripeAccountID links a connected account only when none is linked yet.
// It reports whether the row changed.
func (r *Repository) SetStripeAccountID(ctx context.Context, sellerID uuid.UUID, accountID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seller{}).
		Where("id = ? AND stripe_account_id IS NULL", sellerID).
		Updates(map[string]any{
			"stripe_account_id": accountID,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdatePayoutProfileByUserID overwrites every payout column for the seller
// owned by userID. Only the stripe_* columns are written.
func (r *Repository) UpdatePayoutProfileByUserID(ctx context.Context, userID uuid.UUID, profile PayoutProfile) (int64, error) {
	checked := profile.CheckedAt.UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Seller{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"stripe_account_id":          profile.StripeAccountID,
			"stripe_onboarding_complete": profile.OnboardingComplete,
			"stripe_charges_enabled":     profile.ChargesEnabled,
			"stripe_payouts_enabled":     profile.PayoutsEnabled,
			"stripe_last_checked":        checked,
			"updated_at":                 checked,
		})
	return res.RowsAffected, res.Error
}

// ListStalePayoutAccounts returns linked sellers not checked since before,
// never-checked rows first.
func (r *Repository) ListStalePayoutAccounts(ctx context.Context, before time.Time, limit int) ([]models.Seller, error) {
	if limit <= 0 {
		limit = 50
	}
	var sellers []models.Seller
	err := r.db.WithContext(ctx).
		Where("stripe_account_id IS NOT NULL").
		Where("stripe_last_checked IS NULL OR stripe_last_checked < ?", before.UTC()).
		Order("stripe_last_checked IS NOT NULL, stripe_last_checked ASC").
		Limit(limit).
		Find(&sellers).Error
	return sellers, err
}
