package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/sylwiakmieciak/madebyu-sub000/pkg/config"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the marketplace service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort          int           `env:"MARKETPLACE_HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	PprofAllowedCIDRs []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
	RateLimitRPS      float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins       []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	SeedFile      string `env:"MEMORY_SEED_FILE"`

	// PostgreSQL
	PostgresHost string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string        `env:"POSTGRES_USER" envDefault:"madebyu"`
	PostgresPass string        `env:"POSTGRES_PASSWORD" envDefault:"madebyu_secret"`
	PostgresDB   string        `env:"POSTGRES_DB" envDefault:"madebyu"`
	PostgresSSL  string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	SlowQuery    time.Duration `env:"POSTGRES_SLOW_QUERY" envDefault:"200ms"`

	// Redis
	RedisEnabled   bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	UnreadCacheTTL time.Duration `env:"UNREAD_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled       bool          `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"madebyu-marketplace"`
	IdempotencyTTL     time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer string        `env:"JWT_ISSUER"`
	JWTExpiry time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load marketplace config: %w", err)
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
	if c.StorageDriver != StoragePostgres && c.StorageDriver != StorageMemory {
		return fmt.Errorf("invalid STORAGE_DRIVER %q, must be %s or %s", c.StorageDriver, StoragePostgres, StorageMemory)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Environment != "development" && c.Environment != "test" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set in %s", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in %s", c.Environment)
		}
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTelSampleRate)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive (rps=%v burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
