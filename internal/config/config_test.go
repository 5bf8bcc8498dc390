package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.GetServerAddress())
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.OTP.SweepInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.OTP.SessionTTL)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "auto", cfg.Mail.Provider)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.UsesSharedStore())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("RATE_LIMIT_MAX", "2")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("MAIL_PROVIDER", "SMTP")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 2, cfg.RateLimit.MaxRequests)
	assert.True(t, cfg.UsesSharedStore())
	assert.Equal(t, "smtp", cfg.Mail.Provider)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}
