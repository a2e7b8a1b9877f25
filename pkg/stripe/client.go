package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client holds the Stripe credentials and hands out resource clients bound
// to them. The package-level stripe.Key is never set.
type Client struct {
	apiKey        string
	backend       stripe.Backend
	environment   string
	signingSecret string
	country       string
	currency      string
}

// NewClient validates the configured secrets and installs the API key.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		apiKey:        apiKey,
		backend:       stripe.GetBackend(stripe.APIBackend),
		environment:   env,
		signingSecret: signingSecret,
		country:       strings.ToUpper(strings.TrimSpace(cfg.Country)),
		currency:      strings.ToLower(strings.TrimSpace(cfg.Currency)),
	}, nil
}

// CheckoutSessions returns a Checkout Sessions client using this key.
func (c *Client) CheckoutSessions() *session.Client {
	return &session.Client{B: c.backend, Key: c.apiKey}
}

func (c *Client) Accounts() *account.Client {
	return &account.Client{B: c.backend, Key: c.apiKey}
}

func (c *Client) AccountLinks() *accountlink.Client {
	return &accountlink.Client{B: c.backend, Key: c.apiKey}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Country is the platform country used for new connected accounts.
func (c *Client) Country() string {
	if c == nil {
		return ""
	}
	return c.country
}

// Currency is the settlement currency for checkout sessions.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	prefixes := map[string][]string{
		testEnv: {"sk_test", "rk_test"},
		liveEnv: {"sk_live", "rk_live"},
	}[env]
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	if len(prefixes) == 0 {
		return errInvalidStripeEnv
	}
	return fmt.Errorf("stripe environment %q requires a %s secret key (%s)", env, env, strings.Join(prefixes, "/"))
}
