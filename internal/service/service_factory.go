package service

import (
	"otp-auth-service/internal/config"
	"otp-auth-service/internal/events"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/mailer"
	"otp-auth-service/internal/repository"
	"otp-auth-service/internal/util"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	store      repository.OTPStore
	limiter    repository.RateLimiter
	mailer     mailer.Mailer
	publisher  events.Publisher
	hasher     *hashing.Hasher
	clock      util.Clock
	cfg        *config.Config
	logger     *zap.Logger
	otpService *OTPService
}

func NewServiceFactory(
	store repository.OTPStore,
	limiter repository.RateLimiter,
	m mailer.Mailer,
	publisher events.Publisher,
	hasher *hashing.Hasher,
	clock util.Clock,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		store:     store,
		limiter:   limiter,
		mailer:    m,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// OTPService returns the OTP service instance (singleton)
func (f *ServiceFactory) OTPService() *OTPService {
	if f.otpService == nil {
		f.otpService = NewOTPService(
			f.store,
			f.limiter,
			f.mailer,
			f.publisher,
			f.hasher,
			f.clock,
			f.cfg.OTP,
			f.cfg.Mail.SendTimeout,
			f.logger,
		)
	}
	return f.otpService
}
