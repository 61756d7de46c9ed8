package config

const (
	EnvPrefix = "BREWLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "BREWLINE_APP_ENV"
	EnvPort      = "BREWLINE_APP_PORT"
	EnvLogLevel  = "BREWLINE_LOG_LEVEL"
	EnvDBDSN     = "BREWLINE_DB_DSN"
	EnvDBHost    = "BREWLINE_DB_HOST"
	EnvDBPort    = "BREWLINE_DB_PORT"
	EnvDBUser    = "BREWLINE_DB_USER"
	EnvDBPass    = "BREWLINE_DB_PASSWORD"
	EnvDBName    = "BREWLINE_DB_NAME"
	EnvRedisURL  = "BREWLINE_REDIS_URL"
	EnvJWTSecret = "BREWLINE_JWT_SECRET"
	EnvJWTIssuer = "BREWLINE_JWT_ISSUER"
	EnvJWTExpMin = "BREWLINE_JWT_EXPIRATION_MINUTES"

	EnvPaymentsTimeout  = "BREWLINE_PAYMENTS_TIMEOUT"
	EnvPayPalClientID   = "BREWLINE_PAYPAL_CLIENT_ID"
	EnvPayPalSecret     = "BREWLINE_PAYPAL_CLIENT_SECRET"
	EnvTrackingIdle     = "BREWLINE_TRACKING_IDLE_TIMEOUT"
	EnvTrackingQueue    = "BREWLINE_TRACKING_QUEUE_SIZE"
	EnvCronPendingTTL   = "BREWLINE_CRON_PENDING_TTL"
	EnvCronSessionTTL   = "BREWLINE_CRON_SESSION_TTL"
	EnvCORSAllowOrigins = "BREWLINE_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
