package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/config"
	"otp-auth-service/internal/events"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/mailer"
	"otp-auth-service/internal/repository"
	"otp-auth-service/internal/repository/memory"
	redisrepo "otp-auth-service/internal/repository/redis"
	"otp-auth-service/internal/util"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return m.err
}

func (m *recordingMailer) Transport() string { return mailer.TransportSMTP }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var testOTPConfig = config.OTPConfig{
	Secret:        "test-secret",
	TTL:           10 * time.Minute,
	MaxAttempts:   3,
	SweepInterval: time.Minute,
	SessionTTL:    30 * 24 * time.Hour,
}

type fixture struct {
	svc       *OTPService
	store     repository.OTPStore
	clock     *util.ManualClock
	mail      *recordingMailer
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := util.NewManualClock(epoch)
	store := memory.NewOTPStore()
	limiter := memory.NewRateLimiter(5, time.Minute, clock)
	return buildFixture(store, limiter, clock)
}

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := client.NewRedisClientFrom(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	clock := util.NewManualClock(epoch)
	hasher := hashing.NewHasher(testOTPConfig.Secret)
	store := redisrepo.NewOTPCache(rc, hasher, clock)
	limiter := redisrepo.NewRateLimitCache(rc, hasher, clock, 5, time.Minute)
	return buildFixture(store, limiter, clock)
}

func buildFixture(store repository.OTPStore, limiter repository.RateLimiter, clock *util.ManualClock) *fixture {
	mail := &recordingMailer{}
	pub := &recordingPublisher{}
	svc := NewOTPService(store, limiter, mail, pub, hashing.NewHasher(testOTPConfig.Secret), clock,
		testOTPConfig, time.Second, zap.NewNop())
	return &fixture{svc: svc, store: store, clock: clock, mail: mail, publisher: pub}
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

func TestIssue_StoresFreshChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.Issue(ctx, "User@Example.com")
	require.NoError(t, err)
	require.Len(t, code, 6)
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)

	rec, err := f.store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, rec.Code)
	assert.Equal(t, 0, rec.Attempts)
	assert.True(t, epoch.Add(10*time.Minute).Equal(rec.ExpiresAt))
}

func TestIssue_ReplacesPriorChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, "a@b.com", wrongCode(first))
	require.ErrorIs(t, err, ErrInvalidCode)

	second, err := f.svc.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	rec, err := f.store.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, second, rec.Code)
	assert.Equal(t, 0, rec.Attempts)
}

func TestGenerateCode_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}
}

func TestVerify_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.Issue(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	res, err := f.svc.Verify(ctx, "Jane.Doe@Example.com", code)
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", res.User.Email)
	assert.Equal(t, "jane.doe", res.User.Name)
	assert.Equal(t, "email", res.User.AuthProvider)
	assert.Equal(t, hashing.UserID("jane.doe@example.com"), res.User.ID)
	assert.True(t, epoch.Add(2*time.Minute).Equal(res.User.CreatedAt))
	assert.True(t, res.User.CreatedAt.Add(30*24*time.Hour).Equal(res.ExpiresAt))

	claims, err := DecodeSessionToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", claims.Email)
	assert.Equal(t, 30*24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt))

	_, err = f.store.Get(ctx, "jane.doe@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.Verify(ctx, "jane.doe@example.com", code)
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}

func TestVerify_NoChallenge(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
	assert.Equal(t, "otp_not_found", FailureCode(err))
}

func TestVerify_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	// Exactly at expiry the code is still valid.
	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.Verify(ctx, "a@b.com", wrongCode(code))
	require.ErrorIs(t, err, ErrInvalidCode)

	f.clock.Advance(time.Millisecond)
	_, err = f.svc.Verify(ctx, "a@b.com", code)
	require.ErrorIs(t, err, ErrExpired)

	_, err = f.store.Get(ctx, "a@b.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerify_AttemptBudget(t *testing.T) {
	for name, newF := range map[string]func(*testing.T) *fixture{
		"memory": newFixture,
		"redis":  newRedisFixture,
	} {
		t.Run(name, func(t *testing.T) {
			f := newF(t)
			ctx := context.Background()

			code, err := f.svc.Issue(ctx, "a@b.com")
			require.NoError(t, err)

			for i := 1; i <= 3; i++ {
				_, err := f.svc.Verify(ctx, "a@b.com", wrongCode(code))
				require.ErrorIs(t, err, ErrInvalidCode)
				rec, err := f.store.Get(ctx, "a@b.com")
				require.NoError(t, err)
				assert.Equal(t, i, rec.Attempts)
			}

			_, err = f.svc.Verify(ctx, "a@b.com", code)
			require.ErrorIs(t, err, ErrAttemptsExhausted)
			_, err = f.store.Get(ctx, "a@b.com")
			require.ErrorIs(t, err, repository.ErrNotFound)

			code, err = f.svc.Issue(ctx, "a@b.com")
			require.NoError(t, err)
			res, err := f.svc.Verify(ctx, "a@b.com", code)
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", res.User.Email)
		})
	}
}

func TestVerify_ConcurrentWrongCodesRespectBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.svc.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	bad := wrongCode(code)

	const workers = 20
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Verify(ctx, "a@b.com", bad)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	invalid := 0
	for err := range results {
		if errors.Is(err, ErrInvalidCode) {
			invalid++
		}
	}
	assert.Equal(t, 3, invalid)
}

func TestRequestCode_DeliversCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestCode(ctx, "  A@B.com "))

	rec, err := f.store.Get(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "a@b.com", f.mail.sent[0].to)
	assert.Contains(t, f.mail.sent[0].body, rec.Code)
	assert.Equal(t, []string{events.TypeOTPRequested}, f.publisher.types())
}

func TestRequestCode_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"", "   ", "no-at-sign"} {
		assert.ErrorIs(t, f.svc.RequestCode(context.Background(), email), ErrInvalidEmail, email)
	}
	assert.Empty(t, f.mail.sent)
}

func TestRequestCode_RateLimit(t *testing.T) {
	for name, newF := range map[string]func(*testing.T) *fixture{
		"memory": newFixture,
		"redis":  newRedisFixture,
	} {
		t.Run(name, func(t *testing.T) {
			f := newF(t)
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				require.NoError(t, f.svc.RequestCode(ctx, "a@b.com"))
				f.clock.Advance(time.Second)
			}
			assert.ErrorIs(t, f.svc.RequestCode(ctx, "A@b.com"), ErrRateLimited)
			assert.NoError(t, f.svc.RequestCode(ctx, "other@b.com"))

			// The first request leaves the window 60s after it was made.
			f.clock.Advance(55 * time.Second)
			assert.NoError(t, f.svc.RequestCode(ctx, "a@b.com"))
			assert.Contains(t, f.publisher.types(), events.TypeOTPRateLimited)
		})
	}
}

func TestRequestCode_MailFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp unavailable")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestCode(ctx, "a@b.com"))

	rec, err := f.store.Get(ctx, "a@b.com")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, "a@b.com", rec.Code)
	assert.NoError(t, err)
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, "old@b.com")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.Issue(ctx, "new@b.com")
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)
	removed, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.store.Get(ctx, "old@b.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Get(ctx, "new@b.com")
	assert.NoError(t, err)
	assert.Contains(t, f.publisher.types(), events.TypeOTPSwept)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.svc.RunSweeper(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestVerify_PublishesHashedSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "a@b.com", "123456")
	require.ErrorIs(t, err, ErrNoActiveChallenge)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, events.TypeOTPVerifyFailed, ev.Type)
	assert.Equal(t, "otp_not_found", ev.Reason)
	assert.Equal(t, hashing.NewHasher(testOTPConfig.Secret).Key("a@b.com"), ev.Subject)
	assert.NotContains(t, ev.Subject, "a@b.com")
}
