package config

const (
	EnvPrefix = "CURATEDLY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "CURATEDLY_APP_ENV"
	EnvPort         = "CURATEDLY_APP_PORT"
	EnvPublicURL    = "CURATEDLY_PUBLIC_BASE_URL"
	EnvLogLevel     = "CURATEDLY_LOG_LEVEL"
	EnvLogFormat    = "CURATEDLY_LOG_FORMAT"
	EnvLogWarnStack = "CURATEDLY_LOG_WARN_STACK"

	EnvDBDSN  = "CURATEDLY_DB_DSN"
	EnvDBHost = "CURATEDLY_DB_HOST"
	EnvDBUser = "CURATEDLY_DB_USER"
	EnvDBName = "CURATEDLY_DB_NAME"

	EnvRedisURL = "CURATEDLY_REDIS_URL"

	EnvJWTSecret  = "CURATEDLY_JWT_SECRET"
	EnvJWTIssuer  = "CURATEDLY_JWT_ISSUER"
	EnvJWTExpMins = "CURATEDLY_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "CURATEDLY_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "CURATEDLY_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotificationSub = "CURATEDLY_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvStripeAPIKey = "CURATEDLY_STRIPE_API_KEY"
	EnvStripeSecret = "CURATEDLY_STRIPE_SECRET"
	EnvStripeEnv    = "CURATEDLY_STRIPE_ENV"

	EnvStorefrontFeePercent  = "CURATEDLY_PLATFORM_FEE_PERCENT"
	EnvStorefrontPaidMinimum = "CURATEDLY_PAID_MIN_PRICE"
	EnvStorefrontPremiumMin  = "CURATEDLY_PREMIUM_MIN_PRICE"

	EnvSendgridAPIKey = "CURATEDLY_SENDGRID_API_KEY"
	EnvSendgridFrom   = "CURATEDLY_SENDGRID_FROM_EMAIL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
