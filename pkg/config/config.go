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
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Functions     FunctionsConfig
	Checkout      CheckoutConfig
	Store         StoreConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.AllowSimulatedPayment && !cfg.App.IsDev() {
		return nil, fmt.Errorf("%s is only permitted when %s=%s", EnvAllowSimulatedPayment, EnvAppEnv, AppEnvDev)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// RateLimitConfig bounds the per-caller request rate on write-heavy route groups.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT" default:"30"`
	FormsLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_FORMS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	// AllowSimulatedPayment lets dev environments confirm payments without gateway verification.
	AllowSimulatedPayment bool `envconfig:"STOREFRONT_CHECKOUT_ALLOW_SIMULATED_PAYMENT" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	// PostProcessingGrace is how long the fulfillment consumer waits before re-running invoice/email steps.
	PostProcessingGrace time.Duration `envconfig:"STOREFRONT_EVENTING_POST_PROCESSING_GRACE" default:"2m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"STOREFRONT_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"STOREFRONT_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
	UploadURLExpiry   time.Duration `envconfig:"STOREFRONT_GCS_UPLOAD_URL_EXPIRY" default:"10m"`
	// PublicBaseURL prefixes object keys to form the catalog image URL.
	PublicBaseURL string `envconfig:"STOREFRONT_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	DomainTopic             string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"storefront-domain-events"`
	FulfillmentSubscription string `envconfig:"STOREFRONT_PUBSUB_FULFILLMENT_SUBSCRIPTION" default:"storefront-fulfillment"`
	ContactSubscription     string `envconfig:"STOREFRONT_PUBSUB_CONTACT_SUBSCRIPTION" default:"storefront-contact"`
	AnalyticsSubscription   string `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"storefront-analytics"`
	MaxOutstandingMessages  int    `envconfig:"STOREFRONT_PUBSUB_MAX_OUTSTANDING" default:"10"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	OrdersTable string `envconfig:"STOREFRONT_BIGQUERY_ORDERS_TABLE" default:"order_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"STOREFRONT_OUTBOX_RETENTION_DAYS" default:"30"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Env           string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	WebhookSecret string `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey       string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom  string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL"`
	FromName     string `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"Krafts & Knots"`
	ContactInbox string `envconfig:"STOREFRONT_SENDGRID_CONTACT_INBOX"`
}

// FunctionsConfig points the storefront API at the payment, invoice and mail endpoints.
type FunctionsConfig struct {
	BaseURL          string        `envconfig:"STOREFRONT_FUNCTIONS_BASE_URL" default:"http://localhost:8090"`
	Port             string        `envconfig:"STOREFRONT_FUNCTIONS_PORT" default:"8090"`
	Token            string        `envconfig:"STOREFRONT_FUNCTIONS_TOKEN"`
	RequestTimeout   time.Duration `envconfig:"STOREFRONT_FUNCTIONS_TIMEOUT" default:"20s"`
	BreakerFailures  uint32        `envconfig:"STOREFRONT_FUNCTIONS_BREAKER_FAILURES" default:"5"`
	BreakerOpenAfter time.Duration `envconfig:"STOREFRONT_FUNCTIONS_BREAKER_OPEN_FOR" default:"30s"`
}

// CheckoutConfig carries pricing constants and orchestration timeouts.
type CheckoutConfig struct {
	TaxRate               string        `envconfig:"STOREFRONT_CHECKOUT_TAX_RATE" default:"0.12"`
	FreeShippingThreshold string        `envconfig:"STOREFRONT_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"2500"`
	StandardRate          string        `envconfig:"STOREFRONT_CHECKOUT_STANDARD_RATE" default:"300"`
	ExpressRate           string        `envconfig:"STOREFRONT_CHECKOUT_EXPRESS_RATE" default:"1200"`
	Currency              string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"INR"`
	OrderPrefix           string        `envconfig:"STOREFRONT_CHECKOUT_ORDER_PREFIX" default:"K&K"`
	CounterSeed           int64         `envconfig:"STOREFRONT_CHECKOUT_COUNTER_SEED" default:"1000"`
	StepTimeout           time.Duration `envconfig:"STOREFRONT_CHECKOUT_STEP_TIMEOUT" default:"20s"`
	AttemptTTL            time.Duration `envconfig:"STOREFRONT_CHECKOUT_ATTEMPT_TTL" default:"30m"`
	LockTTL               time.Duration `envconfig:"STOREFRONT_CHECKOUT_LOCK_TTL" default:"2m"`
	SentFrom              string        `envconfig:"STOREFRONT_CHECKOUT_SENT_FROM" default:"Website"`
}

// Decimal parses a decimal-valued checkout setting.
func (c CheckoutConfig) Decimal(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func (c CheckoutConfig) validate() error {
	for name, raw := range map[string]string{
		EnvCheckoutTaxRate:      c.TaxRate,
		EnvCheckoutFreeShipping: c.FreeShippingThreshold,
		EnvCheckoutStandardRate: c.StandardRate,
		EnvCheckoutExpressRate:  c.ExpressRate,
	} {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s must be a decimal: %w", name, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("%s is required", EnvCheckoutCurrency)
	}
	return nil
}

// StoreConfig describes the seller block printed on invoices and emails.
type StoreConfig struct {
	Name         string `envconfig:"STOREFRONT_STORE_NAME" default:"Krafts & Knots"`
	AddressLine1 string `envconfig:"STOREFRONT_STORE_ADDRESS_LINE1" default:"124-D, Ittina Abha, Munnekolal, Bengaluru"`
	AddressLine2 string `envconfig:"STOREFRONT_STORE_ADDRESS_LINE2" default:"Karnataka, 560037, India"`
	Email        string `envconfig:"STOREFRONT_STORE_EMAIL" default:"info@kraftsnknots.com"`
	SupportEmail string `envconfig:"STOREFRONT_STORE_SUPPORT_EMAIL" default:"support@kraftsnknots.com"`
	ContactURL   string `envconfig:"STOREFRONT_STORE_CONTACT_URL" default:"https://kraftsnknots.com/contact"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"5m"`
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
