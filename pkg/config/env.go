package config

const (
	// EnvPrefix is handed to envconfig; every tag carries the full name.
	EnvPrefix = "FRESHLANE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv  = "FRESHLANE_APP_ENV"
	EnvPort    = "FRESHLANE_APP_PORT"
	EnvDBDSN   = "FRESHLANE_DB_DSN"
	EnvDBHost  = "FRESHLANE_DB_HOST"
	EnvDBUser  = "FRESHLANE_DB_USER"
	EnvDBName  = "FRESHLANE_DB_NAME"
	EnvDBPort  = "FRESHLANE_DB_PORT"
	EnvRedis   = "FRESHLANE_REDIS_URL"
	EnvJWTSec  = "FRESHLANE_JWT_SECRET"
	EnvJWTIss  = "FRESHLANE_JWT_ISSUER"
	EnvLockTTL = "FRESHLANE_LOCK_TIMEOUT"

	EnvFreeShippingThreshold = "FRESHLANE_PRICING_FREE_SHIPPING_THRESHOLD"
	EnvPerKgRate             = "FRESHLANE_PRICING_PER_KG_RATE"
	EnvShippingCap           = "FRESHLANE_PRICING_SHIPPING_CAP"
	EnvDefaultTaxRate        = "FRESHLANE_PRICING_DEFAULT_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
