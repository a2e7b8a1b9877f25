package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curatedly/curatedly-backend/api/routes"
	"github.com/curatedly/curatedly-backend/internal/listings"
	"github.com/curatedly/curatedly-backend/internal/orders"
	"github.com/curatedly/curatedly-backend/internal/payouts"
	"github.com/curatedly/curatedly-backend/internal/sellers"
	stripewebhook "github.com/curatedly/curatedly-backend/internal/webhooks/stripe"
	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/instance"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/metrics"
	"github.com/curatedly/curatedly-backend/pkg/migrate"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/pricing"
	"github.com/curatedly/curatedly-backend/pkg/redis"
	"github.com/curatedly/curatedly-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	sellerRepo := sellers.NewRepository(gormDB)
	listingRepo := listings.NewRepository(gormDB)

	sellerService, err := sellers.NewService(sellerRepo, logg)
	if err != nil {
		return err
	}

	listingService, err := listings.NewService(listings.ServiceParams{
		Repository: listingRepo,
		Sellers:    sellerRepo,
		Rules: pricing.TierRules{
			PaidMinimum:    cfg.Storefront.PaidMinPrice,
			PremiumMinimum: cfg.Storefront.PremiumMinPrice,
		},
		Logger: logg,
	})
	if err != nil {
		return err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repository:         orders.NewRepository(gormDB),
		Listings:           listingRepo,
		TxRunner:           dbClient,
		Outbox:             outboxService,
		Gateway:            orders.NewStripeCheckoutGateway(stripeClient, cfg.Stripe.CheckoutAttempts),
		Validator:          validator.New(),
		Metrics:            metrics.NewCheckoutMetrics(registry),
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

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:        orderService,
		Payouts:       payoutService,
		Guard:         guard,
		SigningSecret: stripeClient.SigningSecret(),
		Metrics:       metrics.NewWebhookMetrics(registry),
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		RateLimiter:   redisClient,
		Idempotency:   redisClient,
		Checkout:      orderService,
		Confirmations: orderService,
		Sellers:       sellerService,
		PublicListing: listingService,
		Listings:      listingService,
		Payouts:       payoutService,
		StripeWebhook: webhookService,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("api"),
	})
	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
