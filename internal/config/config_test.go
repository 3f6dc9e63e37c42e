package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Equal(t, "campaigns_db", cfg.PostgresDB)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow())
	assert.Equal(t, 30*time.Minute, cfg.IdempotencyTTL())
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout())
	assert.False(t, cfg.RateLimitBypass)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ISSUANCE_HTTP_PORT", "9999")
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("IDEMPOTENCY_TTL_MINUTES", "5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 5*time.Minute, cfg.IdempotencyTTL())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("ISSUANCE_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestLoad_BypassRejectedInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RATE_LIMIT_BYPASS", "true")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_BYPASS")
}

func TestLoad_DefaultSessionSecretRejectedOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestPostgresDSN(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	dsn := cfg.Postgres().DSN()
	assert.Contains(t, dsn, "postgres://revenueboost:")
	assert.Contains(t, dsn, "campaigns_db")
	assert.Contains(t, dsn, "sslmode=disable")
}
