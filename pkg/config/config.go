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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUBSTRACTUM_APP_ENV" required:"true"`
	Port         string `envconfig:"SUBSTRACTUM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUBSTRACTUM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUBSTRACTUM_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"SUBSTRACTUM_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SUBSTRACTUM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SUBSTRACTUM_DB_DSN"`
	Driver string `envconfig:"SUBSTRACTUM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUBSTRACTUM_DB_HOST"`
	LegacyPort     int    `envconfig:"SUBSTRACTUM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUBSTRACTUM_DB_USER"`
	LegacyPassword string `envconfig:"SUBSTRACTUM_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUBSTRACTUM_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUBSTRACTUM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUBSTRACTUM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUBSTRACTUM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUBSTRACTUM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUBSTRACTUM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUBSTRACTUM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUBSTRACTUM_REDIS_ADDR"`
	Password     string        `envconfig:"SUBSTRACTUM_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUBSTRACTUM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUBSTRACTUM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUBSTRACTUM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUBSTRACTUM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUBSTRACTUM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUBSTRACTUM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SUBSTRACTUM_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SUBSTRACTUM_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SUBSTRACTUM_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SUBSTRACTUM_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the session TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUBSTRACTUM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUBSTRACTUM_AUTO_MIGRATE" default:"false"`
}

// CartConfig tunes guest storage and the remote sync queue.
type CartConfig struct {
	GuestTTL        time.Duration `envconfig:"SUBSTRACTUM_CART_GUEST_TTL" default:"720h"`
	SyncWorkers     int           `envconfig:"SUBSTRACTUM_CART_SYNC_WORKERS" default:"4"`
	SyncMaxAttempts int           `envconfig:"SUBSTRACTUM_CART_SYNC_MAX_ATTEMPTS" default:"5"`
	SyncBaseBackoff time.Duration `envconfig:"SUBSTRACTUM_CART_SYNC_BASE_BACKOFF" default:"200ms"`
	SyncMaxBackoff  time.Duration `envconfig:"SUBSTRACTUM_CART_SYNC_MAX_BACKOFF" default:"10s"`
	SyncTimeout     time.Duration `envconfig:"SUBSTRACTUM_CART_SYNC_ATTEMPT_TIMEOUT" default:"5s"`
	DrainTimeout    time.Duration `envconfig:"SUBSTRACTUM_CART_SYNC_DRAIN_TIMEOUT" default:"15s"`

	GuestCookieSecure bool `envconfig:"SUBSTRACTUM_CART_GUEST_COOKIE_SECURE" default:"true"`

	BreakerMaxRequests  uint32        `envconfig:"SUBSTRACTUM_CART_BREAKER_MAX_REQUESTS" default:"1"`
	BreakerInterval     time.Duration `envconfig:"SUBSTRACTUM_CART_BREAKER_INTERVAL" default:"10s"`
	BreakerTimeout      time.Duration `envconfig:"SUBSTRACTUM_CART_BREAKER_TIMEOUT" default:"30s"`
	BreakerMinRequests  uint32        `envconfig:"SUBSTRACTUM_CART_BREAKER_MIN_REQUESTS" default:"5"`
	BreakerFailureRatio float64       `envconfig:"SUBSTRACTUM_CART_BREAKER_FAILURE_RATIO" default:"0.5"`
}

type CheckoutConfig struct {
	ShippingFee string `envconfig:"SUBSTRACTUM_CHECKOUT_SHIPPING_FEE" default:"10.00"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SUBSTRACTUM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SUBSTRACTUM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SUBSTRACTUM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"SUBSTRACTUM_PUBSUB_ORDERS_TOPIC" default:"substractum-order-events"`
	PrescriptionsTopic string `envconfig:"SUBSTRACTUM_PUBSUB_PRESCRIPTIONS_TOPIC" default:"substractum-prescription-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SUBSTRACTUM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SUBSTRACTUM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SUBSTRACTUM_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
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
