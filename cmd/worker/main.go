package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curatedly/curatedly-backend/internal/notifications"
	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/instance"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/outbox/idempotency"
	"github.com/curatedly/curatedly-backend/pkg/pubsub"
	"github.com/curatedly/curatedly-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "instance": instance.ID("worker")})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "worker stopped", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer pubsubClient.Close()

	tracker, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		return errors.New("notification subscription not configured")
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription:  subscription,
		Idempotency:   tracker,
		Dispatcher:    newDispatcher(ctx, cfg, logg),
		PublicBaseURL: cfg.App.PublicBaseURL,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	svc, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Notifications: consumer,
		MetricsAddr:   ":" + cfg.App.MetricsPort,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

// newDispatcher falls back to logging when SendGrid is not configured.
func newDispatcher(ctx context.Context, cfg *config.Config, logg *logger.Logger) notifications.Dispatcher {
	if cfg.Sendgrid.APIKey == "" {
		logg.Warn(ctx, "sendgrid api key not set, purchase emails will only be logged")
		return notifications.NewLogDispatcher(logg)
	}
	dispatcher, err := notifications.NewSendgridDispatcher(cfg.Sendgrid)
	if err != nil {
		logg.Error(ctx, "sendgrid dispatcher misconfigured, purchase emails will only be logged", err)
		return notifications.NewLogDispatcher(logg)
	}
	return dispatcher
}
