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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Locking      LockingConfig
	Invoicing    InvoicingConfig
	Cart         CartConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Notify       NotifyConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"FRESHLANE_APP_ENV" required:"true"`
	Port         string   `envconfig:"FRESHLANE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"FRESHLANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"FRESHLANE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FRESHLANE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRESHLANE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHLANE_DB_DSN"`
	Driver string `envconfig:"FRESHLANE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FRESHLANE_DB_HOST"`
	LegacyPort     int    `envconfig:"FRESHLANE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRESHLANE_DB_USER"`
	LegacyPassword string `envconfig:"FRESHLANE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRESHLANE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRESHLANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHLANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHLANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHLANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHLANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FRESHLANE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHLANE_REDIS_URL"`
	Address      string        `envconfig:"FRESHLANE_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHLANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHLANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHLANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHLANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHLANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHLANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHLANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the marketplace auth service.
type JWTConfig struct {
	Secret string `envconfig:"FRESHLANE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FRESHLANE_JWT_ISSUER" required:"true"`
}

// PricingConfig holds the cart-level shipping and tax defaults.
type PricingConfig struct {
	FreeShippingThreshold string `envconfig:"FRESHLANE_PRICING_FREE_SHIPPING_THRESHOLD" default:"500.00"`
	PerKgRate             string `envconfig:"FRESHLANE_PRICING_PER_KG_RATE" default:"2.00"`
	ShippingCap           string `envconfig:"FRESHLANE_PRICING_SHIPPING_CAP" default:"50.00"`
	DefaultTaxRate        string `envconfig:"FRESHLANE_PRICING_DEFAULT_TAX_RATE" default:"0.10"`
}

func (p PricingConfig) validate() error {
	for name, raw := range map[string]string{
		EnvFreeShippingThreshold: p.FreeShippingThreshold,
		EnvPerKgRate:             p.PerKgRate,
		EnvShippingCap:           p.ShippingCap,
		EnvDefaultTaxRate:        p.DefaultTaxRate,
	} {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Decimals returns the parsed pricing values. Load has already validated them.
func (p PricingConfig) Decimals() (threshold, perKg, shippingCap, taxRate decimal.Decimal) {
	parse := func(raw string) decimal.Decimal {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return parse(p.FreeShippingThreshold), parse(p.PerKgRate), parse(p.ShippingCap), parse(p.DefaultTaxRate)
}

// LockingConfig bounds how long a request may wait on row locks.
type LockingConfig struct {
	Timeout time.Duration `envconfig:"FRESHLANE_LOCK_TIMEOUT" default:"5s"`
}

type InvoicingConfig struct {
	DefaultTermsDays int           `envconfig:"FRESHLANE_INVOICE_TERMS_DAYS" default:"30"`
	DueSoonWindow    time.Duration `envconfig:"FRESHLANE_INVOICE_DUE_SOON_WINDOW" default:"168h"`
}

type CartConfig struct {
	TTL              time.Duration `envconfig:"FRESHLANE_CART_TTL" default:"168h"`
	AbandonAfter     time.Duration `envconfig:"FRESHLANE_CART_ABANDON_AFTER" default:"24h"`
	ExpiryBatchLimit int           `envconfig:"FRESHLANE_CART_EXPIRY_BATCH_LIMIT" default:"500"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FRESHLANE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FRESHLANE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FRESHLANE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FRESHLANE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FRESHLANE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"FRESHLANE_PUBSUB_ORDERS_TOPIC" default:"freshlane-order-events"`
	BillingTopic      string `envconfig:"FRESHLANE_PUBSUB_BILLING_TOPIC" default:"freshlane-billing-events"`
	NotificationTopic string `envconfig:"FRESHLANE_PUBSUB_NOTIFICATION_TOPIC" default:"freshlane-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FRESHLANE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FRESHLANE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FRESHLANE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// NotifyConfig sizes the in-process notification queue.
type NotifyConfig struct {
	QueueSize int `envconfig:"FRESHLANE_NOTIFY_QUEUE_SIZE" default:"256"`
	Workers   int `envconfig:"FRESHLANE_NOTIFY_WORKERS" default:"2"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"FRESHLANE_CRON_INTERVAL" default:"1m"`
	LockTTL    time.Duration `envconfig:"FRESHLANE_CRON_LOCK_TTL" default:"5m"`
	JobTimeout time.Duration `envconfig:"FRESHLANE_CRON_JOB_TIMEOUT" default:"2m"`
}

const defaultSQLiteDSN = "file:freshlane.db?_foreign_keys=on"

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		db.DSN = defaultSQLiteDSN
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
