package stripe

import (
	"errors"
	"net"
	"net/http"

	"github.com/stripe/stripe-go/v84"
)

// IsSafeToRetry reports whether a failed call is known not to have created
// anything on Stripe's side: the request was rate limited or never left the
// process because the connection could not be dialed. Timeouts and 5xx
// responses are ambiguous and return false.
func IsSafeToRetry(err error) bool {
	if err == nil {
		return false
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}

	return false
}

// IsNotFound reports whether Stripe answered 404 for the requested resource.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound
}
