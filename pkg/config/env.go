package config

// EnvPrefix is handed to envconfig; every field carries an explicit key.
const EnvPrefix = "SUBSTRACTUM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:substractum.db?cache=shared&_fk=1"
)

const (
	EnvAppEnv      = "SUBSTRACTUM_APP_ENV"
	EnvPort        = "SUBSTRACTUM_APP_PORT"
	EnvLogLevel    = "SUBSTRACTUM_LOG_LEVEL"
	EnvDBDSN       = "SUBSTRACTUM_DB_DSN"
	EnvDBHost      = "SUBSTRACTUM_DB_HOST"
	EnvDBUser      = "SUBSTRACTUM_DB_USER"
	EnvDBPassword  = "SUBSTRACTUM_DB_PASSWORD"
	EnvDBName      = "SUBSTRACTUM_DB_NAME"
	EnvUseSQLite   = "SUBSTRACTUM_USE_SQLITE"
	EnvRedisURL    = "SUBSTRACTUM_REDIS_URL"
	EnvJWTSecret   = "SUBSTRACTUM_JWT_SECRET"
	EnvJWTIssuer   = "SUBSTRACTUM_JWT_ISSUER"
	EnvJWTExpMins  = "SUBSTRACTUM_JWT_EXPIRATION_MINUTES"
	EnvCartWorkers = "SUBSTRACTUM_CART_SYNC_WORKERS"
	EnvGuestTTL    = "SUBSTRACTUM_CART_GUEST_TTL"
	EnvOrdersTopic = "SUBSTRACTUM_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
