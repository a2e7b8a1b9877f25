package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/curatedly/curatedly-backend/internal/cron"
	"github.com/curatedly/curatedly-backend/internal/listings"
	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/internal/payouts"
	"github.com/curatedly/curatedly-backend/internal/sellers"
	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/instance"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/metrics"
	"github.com/curatedly/curatedly-backend/pkg/migrate"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/redis"
	"github.com/curatedly/curatedly-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "instance": instance.ID("cron-worker")})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fmt.Errorf("bootstrap stripe: %w", err)
	}

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)
	sellerRepo := sellers.NewRepository(gormDB)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repository:         orders.NewRepository(gormDB),
		Listings:           listings.NewRepository(gormDB),
		TxRunner:           dbClient,
		Outbox:             outboxService,
		Gateway:            orders.NewStripeCheckoutGateway(stripeClient, cfg.Stripe.CheckoutAttempts),
		Logger:             logg,
		PublicBaseURL:      cfg.App.PublicBaseURL,
		PlatformFeePercent: cfg.Storefront.PlatformFeePercent,
		Currency:           stripeClient.Currency(),
	})
	if err != nil {
		return err
	}

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Sellers:       sellerRepo,
		TxRunner:      dbClient,
		Outbox:        outboxService,
		Gateway:       payouts.NewStripeAccountGateway(stripeClient),
		Logger:        logg,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Country:       stripeClient.Country(),
		Currency:      stripeClient.Currency(),
	})
	if err != nil {
		return err
	}

	registry := cron.NewRegistry()
	orderJob, err := cron.NewOrderReconcileJob(cron.OrderReconcileJobParams{
		Logger: logg,
		Orders: orderService,
		MinAge: cfg.Storefront.PendingOrderAge,
		Batch:  cfg.Cron.SweepBatch,
	})
	if err != nil {
		return err
	}
	payoutJob, err := cron.NewPayoutRefreshJob(cron.PayoutRefreshJobParams{
		Logger:  logg,
		Payouts: payoutService,
		MinAge:  cfg.Storefront.PayoutRefreshAge,
		Batch:   cfg.Cron.SweepBatch,
	})
	if err != nil {
		return err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return err
	}
	registry.Register(orderJob)
	registry.Register(payoutJob)
	registry.Register(retentionJob)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(promRegistry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.MetricsPort,
		Handler:           promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logg.Info(ctx, "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
