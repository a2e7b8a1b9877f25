package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/curatedly/curatedly-backend/pkg/redis"
)

const guardScope = "stripe-webhook"

// IdempotencyGuard remembers event ids whose handler already succeeded so a
// redelivery is acknowledged without running it again. Ids are recorded only
// after success: a crash mid-handler leaves nothing behind and Stripe's
// redelivery runs the handler again.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// Handled reports whether eventID was already applied successfully.
func (g *IdempotencyGuard) Handled(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	val, err := g.store.Get(ctx, g.store.IdempotencyKey(guardScope, eventID))
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup stripe event %s: %w", eventID, err)
	}
	return val != "", nil
}

// MarkHandled records eventID after its handler succeeded.
func (g *IdempotencyGuard) MarkHandled(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.IdempotencyKey(guardScope, eventID), "1", g.ttl); err != nil {
		return fmt.Errorf("mark stripe event %s: %w", eventID, err)
	}
	return nil
}
