package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the envconfig prefix shared by every binary.
	EnvPrefix = "AGRIMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv = "AGRIMARKET_APP_ENV"
	EnvDBDSN  = "AGRIMARKET_DB_DSN"
	EnvDBHost = "AGRIMARKET_DB_HOST"
	EnvDBUser = "AGRIMARKET_DB_USER"
	EnvDBName = "AGRIMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Settlement   SettlementConfig
	Insurance    InsuranceConfig
	Claims       ClaimsConfig
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
	Env          string `envconfig:"AGRIMARKET_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"AGRIMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGRIMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AGRIMARKET_SERVICE_KIND" default:"worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGRIMARKET_DB_DSN"`
	Driver string `envconfig:"AGRIMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGRIMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"AGRIMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGRIMARKET_DB_USER"`
	LegacyPassword string `envconfig:"AGRIMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGRIMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGRIMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGRIMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGRIMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGRIMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGRIMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGRIMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGRIMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"AGRIMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGRIMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGRIMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGRIMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGRIMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGRIMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGRIMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SettlementConfig tunes the order settlement orchestrator.
type SettlementConfig struct {
	// DuplicateWindow is how long an identical (buyer, product, qty, price)
	// submission is rejected after a successful placement.
	DuplicateWindow time.Duration `envconfig:"AGRIMARKET_SETTLEMENT_DUPLICATE_WINDOW" default:"5s"`
}

// InsuranceConfig tunes the premium engine.
type InsuranceConfig struct {
	SubscriptionExpiryInterval time.Duration `envconfig:"AGRIMARKET_INSURANCE_EXPIRY_INTERVAL" default:"1h"`
}

// ClaimsConfig carries the documented policy switches of the claim engine.
type ClaimsConfig struct {
	// AllowOutOfWindowClaims keeps claims whose dispatch date falls outside the
	// policy coverage window flowing (with a warning) instead of rejecting them.
	AllowOutOfWindowClaims bool `envconfig:"AGRIMARKET_CLAIMS_ALLOW_OUT_OF_WINDOW" default:"true"`
	// AllowAgentOverdraft lets refunds drive an agent balance negative.
	AllowAgentOverdraft bool `envconfig:"AGRIMARKET_CLAIMS_ALLOW_AGENT_OVERDRAFT" default:"true"`
	// ComplaintSLA is the window after customer dispatch in which a complaint
	// may be filed.
	ComplaintSLA time.Duration `envconfig:"AGRIMARKET_CLAIMS_COMPLAINT_SLA" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGRIMARKET_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AGRIMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AGRIMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AGRIMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic   string `envconfig:"AGRIMARKET_PUBSUB_SETTLEMENT_TOPIC" default:"am-settlement-events"`
	NotificationTopic string `envconfig:"AGRIMARKET_PUBSUB_NOTIFICATION_TOPIC" default:"am-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGRIMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGRIMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGRIMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
