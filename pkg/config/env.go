package config

const EnvPrefix = "ECOM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "ECOM_APP_ENV"
	EnvPort            = "ECOM_APP_PORT"
	EnvDBDSN           = "ECOM_DB_DSN"
	EnvDBHost          = "ECOM_DB_HOST"
	EnvDBUser          = "ECOM_DB_USER"
	EnvDBName          = "ECOM_DB_NAME"
	EnvRedisURL        = "ECOM_REDIS_URL"
	EnvJWTSecret       = "ECOM_JWT_SECRET"
	EnvJWTIssuer       = "ECOM_JWT_ISSUER"
	EnvCheckoutTaxRate = "ECOM_CHECKOUT_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
