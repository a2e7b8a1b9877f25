package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/curatedly/curatedly-backend/api/responses"
	stripewebhook "github.com/curatedly/curatedly-backend/internal/webhooks/stripe"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

// Stripe caps event payloads well below this.
const maxStripePayloadBytes = 256 << 10

type StripeReconciler interface {
	Reconcile(ctx context.Context, payload []byte, signature string) (*stripewebhook.Result, error)
}

// StripeWebhook verifies and dispatches Stripe deliveries. Verified events are
// always acknowledged so Stripe stops retrying; handler failures are retried
// by the reconcile cron instead.
func StripeWebhook(svc StripeReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStripePayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := svc.Reconcile(ctx, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
