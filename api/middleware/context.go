package middleware

import (
	"context"

	"github.com/google/uuid"
)

type sellerUserKey struct{}

// SellerUserID returns the authenticated seller's user id set by Auth.
func SellerUserID(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(sellerUserKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithSellerUserID marks ctx as authenticated for userID.
func WithSellerUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sellerUserKey{}, userID)
}
