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
	Dispatcher   DispatcherConfig
	Expansion    ExpansionConfig
	Retention    RetentionConfig
	Telegram     TelegramConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"COACHLY_APP_ENV" required:"true"`
	Port         string `envconfig:"COACHLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COACHLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COACHLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COACHLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COACHLY_DB_DSN"`
	Driver string `envconfig:"COACHLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COACHLY_DB_HOST"`
	LegacyPort     int    `envconfig:"COACHLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COACHLY_DB_USER"`
	LegacyPassword string `envconfig:"COACHLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"COACHLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"COACHLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COACHLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COACHLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COACHLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COACHLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COACHLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COACHLY_REDIS_ADDR"`
	Password     string        `envconfig:"COACHLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"COACHLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COACHLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COACHLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COACHLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COACHLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COACHLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DispatcherConfig tunes the due-scan loop and delivery policy.
type DispatcherConfig struct {
	TickInterval    time.Duration `envconfig:"COACHLY_DISPATCH_TICK_INTERVAL" default:"30s"`
	BatchSize       int           `envconfig:"COACHLY_DISPATCH_BATCH_SIZE" default:"100"`
	DeliveryTimeout time.Duration `envconfig:"COACHLY_DISPATCH_DELIVERY_TIMEOUT" default:"10s"`
	RetryBudget     int           `envconfig:"COACHLY_DISPATCH_RETRY_BUDGET" default:"3"`
	BackoffBase     time.Duration `envconfig:"COACHLY_DISPATCH_BACKOFF_BASE" default:"60s"`
	BackoffCap      time.Duration `envconfig:"COACHLY_DISPATCH_BACKOFF_CAP" default:"30m"`
	StaleClaimAfter time.Duration `envconfig:"COACHLY_DISPATCH_STALE_CLAIM_AFTER" default:"5m"`
	CreationGrace   time.Duration `envconfig:"COACHLY_CREATION_GRACE_WINDOW" default:"0s"`
}

// ExpansionConfig tunes how far ahead recurring schedules are materialized.
type ExpansionConfig struct {
	Horizon  time.Duration `envconfig:"COACHLY_EXPANSION_HORIZON" default:"24h"`
	Interval time.Duration `envconfig:"COACHLY_EXPANSION_INTERVAL" default:"15m"`
}

type RetentionConfig struct {
	SoftDeletedDays int `envconfig:"COACHLY_RETENTION_SOFT_DELETED_DAYS" default:"30"`
	InboxDays       int `envconfig:"COACHLY_RETENTION_INBOX_DAYS" default:"90"`
}

type TelegramConfig struct {
	Token string `envconfig:"COACHLY_TELEGRAM_BOT_TOKEN"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COACHLY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COACHLY_AUTO_MIGRATE" default:"false"`
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
