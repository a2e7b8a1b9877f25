package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/internal/payouts"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

const defaultSweepBatch = 100

type pendingOrderReconciler interface {
	ReconcilePending(ctx context.Context, cutoff time.Time, limit int) (orders.ReconcileSummary, error)
}

type payoutAccountRefresher interface {
	RefreshStale(ctx context.Context, cutoff time.Time, limit int) (payouts.RefreshSummary, error)
}

// OrderReconcileJobParams configure the stale pending order sweep.
type OrderReconcileJobParams struct {
	Logger *logger.Logger
	Orders pendingOrderReconciler
	MinAge time.Duration
	Batch  int
}

// NewOrderReconcileJob settles pending orders whose webhook never landed by
// asking Stripe for the session state.
func NewOrderReconcileJob(p OrderReconcileJobParams) (Job, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if p.MinAge <= 0 {
		return nil, fmt.Errorf("min age must be positive")
	}
	return &orderReconcileJob{
		logg:   p.Logger,
		orders: p.Orders,
		minAge: p.MinAge,
		batch:  batchOrDefault(p.Batch),
		now:    time.Now,
	}, nil
}

type orderReconcileJob struct {
	logg   *logger.Logger
	orders pendingOrderReconciler
	minAge time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderReconcileJob) Name() string { return "order-reconcile" }

func (j *orderReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	summary, err := j.orders.ReconcilePending(ctx, cutoff, j.batch)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"checked":   summary.Checked,
		"completed": summary.Completed,
		"failed":    summary.Failed,
	}), "pending orders reconciled")
	if err != nil {
		return fmt.Errorf("reconcile pending orders: %w", err)
	}
	return nil
}

// PayoutRefreshJobParams configure the connected account refresh sweep.
type PayoutRefreshJobParams struct {
	Logger  *logger.Logger
	Payouts payoutAccountRefresher
	MinAge  time.Duration
	Batch   int
}

// NewPayoutRefreshJob re-reads connected accounts that have not been checked
// within MinAge, covering account.updated deliveries that were lost.
func NewPayoutRefreshJob(p PayoutRefreshJobParams) (Job, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if p.MinAge <= 0 {
		return nil, fmt.Errorf("min age must be positive")
	}
	return &payoutRefreshJob{
		logg:    p.Logger,
		payouts: p.Payouts,
		minAge:  p.MinAge,
		batch:   batchOrDefault(p.Batch),
		now:     time.Now,
	}, nil
}

type payoutRefreshJob struct {
	logg    *logger.Logger
	payouts payoutAccountRefresher
	minAge  time.Duration
	batch   int
	now     func() time.Time
}

func (j *payoutRefreshJob) Name() string { return "payout-refresh" }

func (j *payoutRefreshJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	summary, err := j.payouts.RefreshStale(ctx, cutoff, j.batch)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"checked": summary.Checked,
		"updated": summary.Updated,
	}), "payout accounts refreshed")
	if err != nil {
		return fmt.Errorf("refresh payout accounts: %w", err)
	}
	return nil
}

func batchOrDefault(n int) int {
	if n <= 0 {
		return defaultSweepBatch
	}
	return n
}
