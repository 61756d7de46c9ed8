package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Payments     PaymentsConfig
	PayPal       PayPalConfig
	Stripe       StripeConfig
	Tracking     TrackingConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BREWLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"BREWLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BREWLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BREWLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BREWLINE_DB_DSN"`
	Driver string `envconfig:"BREWLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BREWLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"BREWLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BREWLINE_DB_USER"`
	LegacyPassword string `envconfig:"BREWLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BREWLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BREWLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BREWLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BREWLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BREWLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BREWLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BREWLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BREWLINE_REDIS_ADDR"`
	Password     string        `envconfig:"BREWLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BREWLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BREWLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BREWLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BREWLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BREWLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BREWLINE_REDIS_WRITE_TIMEOUT" default:"5s"`

	IdempotencyTTL time.Duration `envconfig:"BREWLINE_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BREWLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BREWLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BREWLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"BREWLINE_AUTO_MIGRATE" default:"false"`
	EnableStripe    bool `envconfig:"BREWLINE_FEATURE_STRIPE" default:"false"`
	EnableWSRelay   bool `envconfig:"BREWLINE_FEATURE_WS_RELAY" default:"false"`
	EnableIdempKeys bool `envconfig:"BREWLINE_FEATURE_IDEMPOTENCY" default:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BREWLINE_CORS_ALLOWED_ORIGINS" default:"*"`
}

type PaymentsConfig struct {
	Currency string        `envconfig:"BREWLINE_PAYMENTS_CURRENCY" default:"USD"`
	Timeout  time.Duration `envconfig:"BREWLINE_PAYMENTS_TIMEOUT" default:"15s"`
}

type PayPalConfig struct {
	ClientID     string `envconfig:"BREWLINE_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"BREWLINE_PAYPAL_CLIENT_SECRET"`
	BaseURL      string `envconfig:"BREWLINE_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
}

// Enabled reports whether PayPal credentials are present.
func (p PayPalConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

type StripeConfig struct {
	APIKey string `envconfig:"BREWLINE_STRIPE_API_KEY"`
	Env    string `envconfig:"BREWLINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type TrackingConfig struct {
	QueueSize    int           `envconfig:"BREWLINE_TRACKING_QUEUE_SIZE" default:"1024"`
	SendBuffer   int           `envconfig:"BREWLINE_TRACKING_SEND_BUFFER" default:"16"`
	IdleTimeout  time.Duration `envconfig:"BREWLINE_TRACKING_IDLE_TIMEOUT" default:"0s"`
	RelayChannel string        `envconfig:"BREWLINE_TRACKING_RELAY_CHANNEL" default:"brewline:order-status"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"BREWLINE_CRON_INTERVAL" default:"1m"`
	PendingTTL time.Duration `envconfig:"BREWLINE_CRON_PENDING_TTL" default:"30m"`
	SessionTTL time.Duration `envconfig:"BREWLINE_CRON_SESSION_TTL" default:"6h"`
	LockTTL    time.Duration `envconfig:"BREWLINE_CRON_LOCK_TTL" default:"55s"`
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"BREWLINE_RATE_LIMIT_WINDOW" default:"1m"`
	PaymentLimit   int           `envconfig:"BREWLINE_RATE_LIMIT_PAYMENTS" default:"20"`
	WSConnectLimit int           `envconfig:"BREWLINE_RATE_LIMIT_WS_CONNECT" default:"60"`
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
