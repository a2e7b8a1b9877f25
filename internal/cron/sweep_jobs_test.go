package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/internal/payouts"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

type fakeReconciler struct {
	cutoff  time.Time
	limit   int
	summary orders.ReconcileSummary
	err     error
}

func (f *fakeReconciler) ReconcilePending(_ context.Context, cutoff time.Time, limit int) (orders.ReconcileSummary, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.summary, f.err
}

type fakeRefresher struct {
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakeRefresher) RefreshStale(_ context.Context, cutoff time.Time, limit int) (payouts.RefreshSummary, error) {
	f.cutoff = cutoff
	f.limit = limit
	return payouts.RefreshSummary{Checked: 3, Updated: 2}, f.err
}

func TestOrderReconcileJobUsesAgeCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeReconciler{summary: orders.ReconcileSummary{Checked: 2, Completed: 1}}

	jobIface, err := NewOrderReconcileJob(OrderReconcileJobParams{Logger: logger.Nop(), Orders: svc, MinAge: 30 * time.Minute})
	require.NoError(t, err)
	job := jobIface.(*orderReconcileJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-30*time.Minute), svc.cutoff)
	assert.Equal(t, defaultSweepBatch, svc.limit)
	assert.Equal(t, "order-reconcile", job.Name())
}

func TestOrderReconcileJobReportsPartialFailure(t *testing.T) {
	svc := &fakeReconciler{err: errors.New("order x: stripe timeout")}

	job, err := NewOrderReconcileJob(OrderReconcileJobParams{Logger: logger.Nop(), Orders: svc, MinAge: time.Minute, Batch: 10})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe timeout")
	assert.Equal(t, 10, svc.limit)
}

func TestPayoutRefreshJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeRefresher{}

	jobIface, err := NewPayoutRefreshJob(PayoutRefreshJobParams{Logger: logger.Nop(), Payouts: svc, MinAge: 24 * time.Hour, Batch: 50})
	require.NoError(t, err)
	job := jobIface.(*payoutRefreshJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-24*time.Hour), svc.cutoff)
	assert.Equal(t, 50, svc.limit)
}

func TestSweepJobsValidateParams(t *testing.T) {
	_, err := NewOrderReconcileJob(OrderReconcileJobParams{Logger: logger.Nop(), Orders: &fakeReconciler{}})
	assert.Error(t, err)
	_, err = NewPayoutRefreshJob(PayoutRefreshJobParams{Logger: logger.Nop(), MinAge: time.Hour})
	assert.Error(t, err)
}
