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
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ECOM_APP_ENV" required:"true"`
	Port         string   `envconfig:"ECOM_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"ECOM_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ECOM_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ECOM_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ECOM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ECOM_DB_DSN"`
	Driver string `envconfig:"ECOM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ECOM_DB_HOST"`
	LegacyPort     int    `envconfig:"ECOM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ECOM_DB_USER"`
	LegacyPassword string `envconfig:"ECOM_DB_PASSWORD"`
	LegacyName     string `envconfig:"ECOM_DB_NAME"`
	LegacySSLMode  string `envconfig:"ECOM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ECOM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ECOM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ECOM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ECOM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ECOM_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ECOM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ECOM_REDIS_ADDR"`
	Password     string        `envconfig:"ECOM_REDIS_PASSWORD"`
	DB           int           `envconfig:"ECOM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ECOM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ECOM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ECOM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ECOM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ECOM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify bearer tokens minted by the
// accounts service.
type JWTConfig struct {
	Secret            string `envconfig:"ECOM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ECOM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ECOM_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig carries the pricing and concurrency knobs of the checkout engine.
type CheckoutConfig struct {
	TaxRate         decimal.Decimal `envconfig:"ECOM_CHECKOUT_TAX_RATE" default:"0.10"`
	InFlightTTL     time.Duration   `envconfig:"ECOM_CHECKOUT_INFLIGHT_TTL" default:"30s"`
	RateLimit       int             `envconfig:"ECOM_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow time.Duration   `envconfig:"ECOM_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

func (c CheckoutConfig) validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1), got %s", EnvCheckoutTaxRate, c.TaxRate.String())
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ECOM_AUTO_MIGRATE" default:"false"`
}

// GCPConfig falls back to application default credentials when neither
// credentials field is set.
type GCPConfig struct {
	ProjectID              string `envconfig:"ECOM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ECOM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ECOM_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the topic order events go to. CreateTopic lets dev and
// emulator setups (PUBSUB_EMULATOR_HOST) start against an empty project.
type PubSubConfig struct {
	OrdersTopic string `envconfig:"ECOM_PUBSUB_ORDERS_TOPIC" default:"ecom-order-events"`
	CreateTopic bool   `envconfig:"ECOM_PUBSUB_CREATE_TOPIC" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ECOM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ECOM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ECOM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// RetentionHours bounds how long published rows are kept. Zero keeps them forever.
	RetentionHours int `envconfig:"ECOM_OUTBOX_RETENTION_HOURS" default:"168"`
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
