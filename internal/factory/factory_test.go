package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/mailer"
	"otp-auth-service/internal/repository/memory"
	redisrepo "otp-auth-service/internal/repository/redis"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Server:      config.ServerConfig{AllowedOrigins: []string{"*"}},
		OTP: config.OTPConfig{
			Secret:        "secret",
			TTL:           10 * time.Minute,
			MaxAttempts:   3,
			SweepInterval: time.Minute,
			SessionTTL:    30 * 24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 5, Window: time.Minute, IPRate: 10, IPBurst: 20},
		Mail:      config.MailConfig{Provider: "auto", From: "noreply@localhost", SendTimeout: time.Second},
	}
}

func TestNew_InMemoryDefaults(t *testing.T) {
	f, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &memory.OTPStore{}, f.otpStore)
	assert.IsType(t, &memory.RateLimiter{}, f.rateLimiter)
	assert.Equal(t, mailer.TransportLog, f.Mailer().Transport())
	assert.NotNil(t, f.IPRateLimiter())
	assert.Nil(t, f.TLSManager())
	assert.True(t, f.IsHealthy(context.Background()))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/send-otp", strings.NewReader(`{"email":"a@b.com"}`))
	f.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_RedisBackedStores(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr() + "/0", PoolSize: 5}

	f, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &redisrepo.OTPCache{}, f.otpStore)
	assert.IsType(t, &redisrepo.RateLimitCache{}, f.rateLimiter)
	assert.True(t, f.IsHealthy(context.Background()))
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{URL: "redis://" + addr + "/0"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := New(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestClose_IsIdempotent(t *testing.T) {
	f, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	f.WaitForClose()
}
