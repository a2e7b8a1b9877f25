package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db/models"
	"github.com/curatedly/curatedly-backend/pkg/enums"
)

// Repository persists orders. Status changes go through the conditional
// transition helpers only.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Listing").Create(order).Error
}

// FindByID loads an order with its listing and the listing's seller.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Listing.Seller").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AttachCheckoutSession records the hosted session on a still-pending order.
func (r *Repository) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"checkout_session_id": sessionID,
			"checkout_url":        url,
			"updated_at":          time.Now().UTC(),
		}).Error
}

// MarkCompleted moves a pending order to completed. Zero rows affected means
// the order was already terminal or does not exist.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":       enums.OrderStatusCompleted,
		"completed_at": at.UTC(),
		"updated_at":   at.UTC(),
	})
}

// MarkFailed moves a pending order to failed with a reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error) {
	return r.transitionFromPending(ctx, id, map[string]any{
		"status":         enums.OrderStatusFailed,
		"failed_at":      at.UTC(),
		"failure_reason": reason,
		"updated_at":     at.UTC(),
	})
}

func (r *Repository) transitionFromPending(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListStalePending returns pending orders that opened a session before cutoff.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND checkout_session_id IS NOT NULL AND created_at < ?", enums.OrderStatusPending, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
