package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/cartify/cartify/pkg/config"
	"github.com/cartify/cartify/pkg/database"
	"github.com/cartify/cartify/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Owner lock modes.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all configuration for the address service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"ADDRESS_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Address store
	Store             string `env:"ADDRESS_STORE" envDefault:"postgres"`
	OwnerCheckEnabled bool   `env:"OWNER_CHECK_ENABLED" envDefault:"false"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"cartify"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"cartify_secret"`
	PostgresDB            string `env:"ADDRESS_DB_NAME" envDefault:"cartify_addresses"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Owner lock
	OwnerLockMode string        `env:"OWNER_LOCK_MODE" envDefault:"none"`
	OwnerLockTTL  time.Duration `env:"OWNER_LOCK_TTL" envDefault:"5s"`
	OwnerLockWait time.Duration `env:"OWNER_LOCK_WAIT" envDefault:"3s"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"true"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// user.deleted consumer
	UserDeletedConsumerEnabled bool          `env:"USER_DELETED_CONSUMER_ENABLED" envDefault:"false"`
	IdempotencyTTL             time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// JWT
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load()
}

func load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load address config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{StorePostgres, StoreMemory}, c.Store) {
		return fmt.Errorf("ADDRESS_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if !slices.Contains([]string{LockNone, LockLocal, LockRedis}, c.OwnerLockMode) {
		return fmt.Errorf("OWNER_LOCK_MODE must be one of none, local, redis, got %q", c.OwnerLockMode)
	}
	if c.OwnerCheckEnabled && c.Store != StorePostgres {
		return fmt.Errorf("OWNER_CHECK_ENABLED requires ADDRESS_STORE=%s", StorePostgres)
	}
	if (c.EventsEnabled || c.UserDeletedConsumerEnabled) && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when Kafka is used")
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTelSampleRate)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// Postgres returns the connection settings for the address database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the connection settings for the lock Redis.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTelEndpoint
	tc.SampleRate = c.OTelSampleRate
	tc.Enabled = c.OTelEnabled
	return tc
}

// SlowQueryThreshold returns the slow query logging threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
