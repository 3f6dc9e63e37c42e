package config

import (
	"fmt"
	"time"

	"github.com/bokzor/revenue-boost/internal/domain"
	pkgconfig "github.com/bokzor/revenue-boost/pkg/config"
	"github.com/bokzor/revenue-boost/pkg/database"
)

// Config holds all configuration for the issuance service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ISSUANCE_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL (campaign store)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"revenueboost"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"revenueboost_secret"`
	PostgresDB   string `env:"ISSUANCE_DB_NAME" envDefault:"campaigns_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (idempotency cache, rate limiter)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka (analytics events)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Provisioning gateway
	GatewayURL            string `env:"PROVISIONING_GATEWAY_URL" envDefault:"http://localhost:8090"`
	GatewayTimeoutSeconds int    `env:"PROVISIONING_GATEWAY_TIMEOUT_SECONDS" envDefault:"3"`

	// Issuance pipeline
	IdempotencyTTLMinutes  int  `env:"IDEMPOTENCY_TTL_MINUTES" envDefault:"30"`
	RateLimitMax           int  `env:"RATE_LIMIT_MAX" envDefault:"5"`
	RateLimitWindowSeconds int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"3600"`
	RateLimitBypass        bool `env:"RATE_LIMIT_BYPASS" envDefault:"false"`

	// Session validation
	SessionSecret string `env:"SESSION_SECRET" envDefault:"change-this-to-a-secure-secret"`

	// Tracing
	TracingEnabled bool   `env:"OTEL_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load issuance config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.GatewayTimeoutSeconds < 1 {
		return nil, fmt.Errorf("invalid gateway timeout: %d", cfg.GatewayTimeoutSeconds)
	}
	if cfg.RateLimitMax < 1 {
		return nil, fmt.Errorf("invalid rate limit max: %d", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindowSeconds < 1 {
		return nil, fmt.Errorf("invalid rate limit window: %d", cfg.RateLimitWindowSeconds)
	}
	if cfg.IdempotencyTTLMinutes < 1 {
		return nil, fmt.Errorf("invalid idempotency TTL: %d", cfg.IdempotencyTTLMinutes)
	}

	// RATE_LIMIT_BYPASS is a development escape hatch, never a production
	// setting.
	if cfg.Environment == "production" && cfg.RateLimitBypass {
		return nil, fmt.Errorf("RATE_LIMIT_BYPASS must not be enabled in production")
	}
	if cfg.Environment != "development" && cfg.SessionSecret == "change-this-to-a-secure-secret" {
		return nil, fmt.Errorf("SESSION_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
	}

	return cfg, nil
}

// Postgres returns the database pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return &pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host: c.RedisHost,
		Port: c.RedisPort,
		DB:   c.RedisDB,
	}
}

// IdempotencyTTL returns the idempotency window as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMinutes) * time.Minute
}

// RateLimitWindow returns the rate limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// RateLimit returns the issuance rate limit.
func (c *Config) RateLimit() domain.RateLimit {
	return domain.RateLimit{Max: c.RateLimitMax, Window: c.RateLimitWindow()}
}

// GatewayTimeout returns the provisioning gateway call timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}
