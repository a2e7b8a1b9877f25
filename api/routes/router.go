package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/curatedly/curatedly-backend/api/controllers"
	webhookcontrollers "github.com/curatedly/curatedly-backend/api/controllers/webhooks"
	"github.com/curatedly/curatedly-backend/api/middleware"
	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// idempotencyStore is the Redis surface shared by the replay middleware.
type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// RouterParams carries everything the HTTP surface dispatches to. Nil
// services still mount their routes and answer 500.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DB          pinger
	Redis       pinger
	RateLimiter redis.RateLimiter
	Idempotency idempotencyStore

	Checkout      controllers.CheckoutService
	Confirmations controllers.ConfirmationService
	Sellers       controllers.SellerService
	PublicListing controllers.PublicListingService
	Listings      controllers.ListingService
	Payouts       controllers.PayoutService
	StripeWebhook webhookcontrollers.StripeReconciler

	Metrics http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)
	idempotent := middleware.Idempotency(p.Idempotency, logg)
	throttled := middleware.RateLimit(checkoutPolicy, p.RateLimiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/listings/{listingId}", controllers.PublicListing(p.PublicListing, logg))
		r.With(throttled, idempotent).Post("/checkout", controllers.Checkout(p.Checkout, logg))
		r.Get("/orders/{orderId}", controllers.OrderConfirmation(p.Confirmations, logg))
		r.With(idempotent).Post("/orders/{orderId}/retry", controllers.RetryCheckout(p.Checkout, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(idempotent).Post("/sellers", controllers.RegisterSeller(p.Sellers, logg))

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", controllers.SellerListings(p.Listings, logg))
			r.With(idempotent).Post("/", controllers.CreateListing(p.Listings, logg))
			r.Patch("/{listingId}", controllers.UpdateListing(p.Listings, logg))
			r.Delete("/{listingId}", controllers.DeleteListing(p.Listings, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/onboarding", controllers.PayoutOnboarding(p.Payouts, logg))
			r.Get("/status", controllers.PayoutStatus(p.Payouts, logg))
			r.Post("/refresh", controllers.PayoutRefresh(p.Payouts, logg))
		})
	})

	return r
}
