package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PLEDGER_DB_DSN"
	EnvDBHost = "PLEDGER_DB_HOST"
	EnvDBUser = "PLEDGER_DB_USER"
	EnvDBName = "PLEDGER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Billing      BillingConfig
	Cron         CronConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"PLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLEDGER_DB_DSN"`
	Driver string `envconfig:"PLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"PLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"PLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"PLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type BillingConfig struct {
	DefaultCurrency      string        `envconfig:"PLEDGER_BILLING_DEFAULT_CURRENCY" default:"usd"`
	CreateIdempotencyTTL time.Duration `envconfig:"PLEDGER_BILLING_CREATE_IDEMPOTENCY_TTL" default:"24h"`
	WebhookDedupTTL      time.Duration `envconfig:"PLEDGER_BILLING_WEBHOOK_DEDUP_TTL" default:"72h"`
	WebhookSigningSecret string        `envconfig:"PLEDGER_BILLING_WEBHOOK_SIGNING_SECRET"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PLEDGER_CRON_INTERVAL" default:"24h"`
	SweepBatchSize  int           `envconfig:"PLEDGER_CRON_SWEEP_BATCH_SIZE" default:"250"`
	ReconcileWindow time.Duration `envconfig:"PLEDGER_CRON_RECONCILE_WINDOW" default:"168h"`
	OutboxRetention int           `envconfig:"PLEDGER_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	ResyncBatchSize int           `envconfig:"PLEDGER_CRON_RESYNC_BATCH_SIZE" default:"250"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLEDGER_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SubscriptionTopic string `envconfig:"PLEDGER_PUBSUB_SUBSCRIPTION_TOPIC" default:"pl-subscription-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
