package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Storefront   StorefrontConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storefront.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"CURATEDLY_APP_ENV" required:"true"`
	Port          string `envconfig:"CURATEDLY_APP_PORT" required:"true"`
	PublicBaseURL string `envconfig:"CURATEDLY_PUBLIC_BASE_URL" default:"http://localhost:3000"`
	LogLevel      string `envconfig:"CURATEDLY_LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"CURATEDLY_LOG_FORMAT" default:"json"`
	LogWarnStack  bool   `envconfig:"CURATEDLY_LOG_WARN_STACK" default:"false"`
	MetricsPort   string `envconfig:"CURATEDLY_METRICS_PORT" default:"9090"`

	CORSOrigins []string `envconfig:"CURATEDLY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CURATEDLY_DB_DSN"`
	Driver string `envconfig:"CURATEDLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CURATEDLY_DB_HOST"`
	LegacyPort     int    `envconfig:"CURATEDLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CURATEDLY_DB_USER"`
	LegacyPassword string `envconfig:"CURATEDLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CURATEDLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CURATEDLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CURATEDLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CURATEDLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CURATEDLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CURATEDLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CURATEDLY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CURATEDLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CURATEDLY_REDIS_ADDR"`
	Password     string        `envconfig:"CURATEDLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CURATEDLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CURATEDLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CURATEDLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CURATEDLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CURATEDLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CURATEDLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CURATEDLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CURATEDLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CURATEDLY_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CURATEDLY_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"CURATEDLY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"CURATEDLY_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CURATEDLY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CURATEDLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CURATEDLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"CURATEDLY_PUBSUB_ORDERS_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"CURATEDLY_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CURATEDLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CURATEDLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CURATEDLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"CURATEDLY_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"CURATEDLY_CRON_LOCK_TTL" default:"4m"`
	// SweepBatch caps rows per reconcile or refresh sweep.
	SweepBatch      int           `envconfig:"CURATEDLY_CRON_SWEEP_BATCH" default:"100"`
	OutboxRetention time.Duration `envconfig:"CURATEDLY_OUTBOX_RETENTION" default:"720h"`
}

// RateLimitConfig bounds anonymous checkout traffic. A zero window disables it.
type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"CURATEDLY_CHECKOUT_RATE_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"CURATEDLY_CHECKOUT_RATE_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"CURATEDLY_CHECKOUT_RATE_EMAIL_LIMIT" default:"5"`
}

type StripeConfig struct {
	APIKey           string `envconfig:"CURATEDLY_STRIPE_API_KEY"`
	Secret           string `envconfig:"CURATEDLY_STRIPE_SECRET"`
	Env              string `envconfig:"CURATEDLY_STRIPE_ENV" default:"test"`
	Country          string `envconfig:"CURATEDLY_STRIPE_ACCOUNT_COUNTRY" default:"US"`
	Currency         string `envconfig:"CURATEDLY_STRIPE_CURRENCY" default:"usd"`
	CheckoutAttempts uint64 `envconfig:"CURATEDLY_STRIPE_CHECKOUT_ATTEMPTS" default:"3"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// StorefrontConfig carries the marketplace economics: platform cut and tier
// price floors in major currency units.
type StorefrontConfig struct {
	PlatformFeePercent int64           `envconfig:"CURATEDLY_PLATFORM_FEE_PERCENT" default:"20"`
	PaidMinPrice       decimal.Decimal `envconfig:"CURATEDLY_PAID_MIN_PRICE" default:"1"`
	PremiumMinPrice    decimal.Decimal `envconfig:"CURATEDLY_PREMIUM_MIN_PRICE" default:"7"`
	PendingOrderAge    time.Duration   `envconfig:"CURATEDLY_PENDING_ORDER_RECONCILE_AGE" default:"30m"`
	PayoutRefreshAge   time.Duration   `envconfig:"CURATEDLY_PAYOUT_REFRESH_AGE" default:"24h"`
}

func (s StorefrontConfig) validate() error {
	if s.PlatformFeePercent < 0 || s.PlatformFeePercent > 100 {
		return fmt.Errorf("%s must be between 0 and 100", EnvStorefrontFeePercent)
	}
	if s.PaidMinPrice.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvStorefrontPaidMinimum)
	}
	if s.PremiumMinPrice.LessThan(s.PaidMinPrice) {
		return fmt.Errorf("%s must be at least %s", EnvStorefrontPremiumMin, EnvStorefrontPaidMinimum)
	}
	return nil
}

type SendgridConfig struct {
	APIKey      string `envconfig:"CURATEDLY_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"CURATEDLY_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"CURATEDLY_SENDGRID_FROM_NAME" default:"Curatedly"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
