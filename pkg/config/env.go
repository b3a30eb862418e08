package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvJWTSecret         = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer         = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins        = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvGCSBucket         = "STOREFRONT_GCS_BUCKET_NAME"
	EnvPubSubDomainTopic = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"

	EnvCheckoutTaxRate       = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvCheckoutFreeShipping  = "STOREFRONT_CHECKOUT_FREE_SHIPPING_THRESHOLD"
	EnvCheckoutStandardRate  = "STOREFRONT_CHECKOUT_STANDARD_RATE"
	EnvCheckoutExpressRate   = "STOREFRONT_CHECKOUT_EXPRESS_RATE"
	EnvCheckoutCurrency      = "STOREFRONT_CHECKOUT_CURRENCY"
	EnvAllowSimulatedPayment = "STOREFRONT_CHECKOUT_ALLOW_SIMULATED_PAYMENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
