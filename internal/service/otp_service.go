package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/events"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/mailer"
	"otp-auth-service/internal/model"
	"otp-auth-service/internal/repository"
	"otp-auth-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrRateLimited       = errors.New("too many otp requests")
	ErrNoActiveChallenge = errors.New("no active otp challenge")
	ErrExpired           = errors.New("otp expired")
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
	ErrInvalidCode       = errors.New("invalid otp code")
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// OTPService owns the challenge lifecycle: issue, verify and sweep.
type OTPService struct {
	store       repository.OTPStore
	limiter     repository.RateLimiter
	mailer      mailer.Mailer
	publisher   events.Publisher
	hasher      *hashing.Hasher
	clock       util.Clock
	cfg         config.OTPConfig
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewOTPService(
	store repository.OTPStore,
	limiter repository.RateLimiter,
	m mailer.Mailer,
	publisher events.Publisher,
	hasher *hashing.Hasher,
	clock util.Clock,
	cfg config.OTPConfig,
	sendTimeout time.Duration,
	logger *zap.Logger,
) *OTPService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clock == nil {
		clock = util.SystemClock()
	}
	return &OTPService{
		store:       store,
		limiter:     limiter,
		mailer:      m,
		publisher:   publisher,
		hasher:      hasher,
		clock:       clock,
		cfg:         cfg,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// MailConfigured reports whether codes leave the process by a real transport.
func (s *OTPService) MailConfigured() bool {
	return mailer.IsConfigured(s.mailer)
}

// RequestCode runs the send flow: validate, rate limit, issue, deliver.
// Delivery failures are logged and do not fail the request.
func (s *OTPService) RequestCode(ctx context.Context, email string) error {
	if !util.LooksLikeEmail(email) {
		return ErrInvalidEmail
	}
	email = util.NormalizeEmail(email)

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		s.logger.Warn("OTP request rate limited", zap.String("email", util.MaskEmail(email)))
		s.emit(ctx, events.TypeOTPRateLimited, email, "")
		return ErrRateLimited
	}

	code, err := s.Issue(ctx, email)
	if err != nil {
		return err
	}
	s.emit(ctx, events.TypeOTPRequested, email, "")

	s.deliver(ctx, email, code)
	return nil
}

// Issue stores a fresh challenge for email, replacing any prior one, and
// returns its code.
func (s *OTPService) Issue(ctx context.Context, email string) (string, error) {
	email = util.NormalizeEmail(email)

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	rec := &model.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: s.clock.Now().Add(s.cfg.TTL),
		Attempts:  0,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	s.logger.Debug("OTP issued",
		zap.String("email", util.MaskEmail(email)),
		zap.Time("expires_at", rec.ExpiresAt))
	return code, nil
}

// Verify checks code against the outstanding challenge for email. The
// checks run in order (existence, expiry, attempt budget, equality) under
// the store's per-email exclusion.
func (s *OTPService) Verify(ctx context.Context, email, code string) (*model.AuthResult, error) {
	email = util.NormalizeEmail(email)
	now := s.clock.Now()

	err := s.store.Update(ctx, email, func(rec *model.OTPRecord) (repository.Mutation, error) {
		if rec.Expired(now) {
			return repository.Delete, ErrExpired
		}
		if rec.Attempts >= s.cfg.MaxAttempts {
			return repository.Delete, ErrAttemptsExhausted
		}
		if !hashing.EqualCode(code, rec.Code) {
			rec.Attempts++
			return repository.Save, ErrInvalidCode
		}
		return repository.Delete, nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		err = ErrNoActiveChallenge
	}
	if err != nil {
		if IsVerifyFailure(err) {
			s.emit(ctx, events.TypeOTPVerifyFailed, email, FailureCode(err))
			return nil, err
		}
		return nil, fmt.Errorf("failed to verify otp: %w", err)
	}

	s.emit(ctx, events.TypeOTPVerified, email, "")
	return s.authenticate(email, now)
}

func (s *OTPService) authenticate(email string, now time.Time) (*model.AuthResult, error) {
	session, err := IssueSessionToken(email, now, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	user := model.UserRecord{
		ID:           hashing.UserID(email),
		Email:        email,
		Name:         util.LocalPart(email),
		AuthProvider: model.AuthProviderEmail,
		CreatedAt:    now,
	}

	s.logger.Info("OTP verified", zap.String("user_id", user.ID))
	return &model.AuthResult{
		Token:     session.Token,
		User:      user,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// IsVerifyFailure reports whether err is one of the verification outcomes
// a client caused, as opposed to an infrastructure error.
func IsVerifyFailure(err error) bool {
	return FailureCode(err) != ""
}

// FailureCode maps a verification failure to its machine-readable code.
func FailureCode(err error) string {
	switch {
	case errors.Is(err, ErrNoActiveChallenge):
		return "otp_not_found"
	case errors.Is(err, ErrExpired):
		return "otp_expired"
	case errors.Is(err, ErrAttemptsExhausted):
		return "otp_attempts_exhausted"
	case errors.Is(err, ErrInvalidCode):
		return "otp_invalid"
	default:
		return ""
	}
}

func (s *OTPService) deliver(ctx context.Context, email, code string) {
	sendCtx := ctx
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	subject, body := mailer.OTPMessage(code, s.cfg.TTL)
	if err := s.mailer.SendEmail(sendCtx, email, subject, body); err != nil {
		s.logger.Error("Failed to deliver OTP email",
			zap.String("email", util.MaskEmail(email)),
			zap.String("transport", s.mailer.Transport()),
			zap.Error(err))
	}
}

// emit publishes an audit event. Failures never affect the caller.
func (s *OTPService) emit(ctx context.Context, eventType, email, reason string) {
	ev := events.Event{
		Type:       eventType,
		Reason:     reason,
		OccurredAt: s.clock.Now(),
	}
	if email != "" {
		ev.Subject = s.hasher.Key(email)
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish audit event", zap.String("type", eventType), zap.Error(err))
	}
}

// generateCode draws uniformly from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
