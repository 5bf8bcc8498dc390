package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/config"
	"otp-auth-service/internal/events"
	"otp-auth-service/internal/handler"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/mailer"
	"otp-auth-service/internal/repository"
	"otp-auth-service/internal/repository/memory"
	redisrepo "otp-auth-service/internal/repository/redis"
	"otp-auth-service/internal/service"
	"otp-auth-service/internal/tls"
	"otp-auth-service/internal/util"

	"go.uber.org/zap"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	clock      util.Clock
	tlsManager *tls.TLSManager

	// Clients
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	hasher    *hashing.Hasher
	mailer    mailer.Mailer
	publisher events.Publisher

	// Repositories
	otpStore    repository.OTPStore
	rateLimiter repository.RateLimiter

	serviceFactory *service.ServiceFactory
	ipLimiter      *handler.IPRateLimiter

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration and initializes all application dependencies
func NewFactory(ctx context.Context) (*Factory, error) {
	cfg := config.LoadConfig()
	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	return New(ctx, cfg, logger)
}

// New wires dependencies from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Factory, error) {
	factory := &Factory{
		config: cfg,
		logger: logger,
		clock:  util.SystemClock(),
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(cfg.Server)
	}

	factory.initializeManagers()

	if err := factory.initializeClients(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeRepositories()

	factory.mailer = mailer.New(ctx, cfg.Mail, logger)

	if cfg.RateLimit.IPRate > 0 {
		factory.ipLimiter = handler.NewIPRateLimiter(cfg.RateLimit.IPRate, cfg.RateLimit.IPBurst)
	}

	logger.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("shared_store", cfg.UsesSharedStore()),
		util.Bool("audit_events", factory.kafkaProducer != nil),
		util.String("mail_transport", factory.mailer.Transport()),
	)

	return factory, nil
}

// initializeClients connects the optional Redis and Kafka backends. Redis
// is required once configured; Kafka degrades to no audit events.
func (f *Factory) initializeClients(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if f.config.UsesSharedStore() {
		redisClient, err := client.NewRedisClient(f.config.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := redisClient.HealthCheck(ctx); err != nil {
			redisClient.Close()
			return fmt.Errorf("redis health check: %w", err)
		}
		f.redisClient = redisClient
		f.logger.Info("Redis client initialized and healthy")
	} else {
		f.logger.Info("REDIS_URL not set, keeping OTP state in process memory")
	}

	f.publisher = events.NopPublisher{}
	if len(f.config.Kafka.Brokers) > 0 {
		producer, err := client.NewKafkaProducer(f.config.Kafka, f.logger)
		if err != nil {
			f.logger.Warn("Kafka producer initialization failed - proceeding without audit events", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			f.publisher = events.NewKafkaPublisher(producer)
		}
	}

	return nil
}

func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config.OTP.Secret)
	if !f.hasher.HasSecret() {
		f.logger.Warn("OTP_SECRET is not set, store keys and audit subjects use an unkeyed hash")
	}
}

func (f *Factory) initializeRepositories() {
	if f.redisClient != nil {
		f.otpStore = redisrepo.NewOTPCache(f.redisClient, f.hasher, f.clock)
		f.rateLimiter = redisrepo.NewRateLimitCache(f.redisClient, f.hasher, f.clock,
			f.config.RateLimit.MaxRequests, f.config.RateLimit.Window)
		return
	}
	f.otpStore = memory.NewOTPStore()
	f.rateLimiter = memory.NewRateLimiter(f.config.RateLimit.MaxRequests, f.config.RateLimit.Window, f.clock)
}

// ==============================
// Service Factory
// ==============================
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.otpStore,
			f.rateLimiter,
			f.mailer,
			f.publisher,
			f.hasher,
			f.clock,
			f.config,
			f.logger,
		)
	}
	return f.serviceFactory
}

// Router builds the HTTP handler tree.
func (f *Factory) Router() http.Handler {
	authHandler := handler.NewAuthHandler(f.ServiceFactory().OTPService(), f.logger)
	return handler.NewRouter(authHandler, f.ipLimiter, f.config.Server, f.logger)
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.hasher == nil {
		healthErrors["hasher"] = fmt.Errorf("hasher not initialized")
	}
	if f.otpStore == nil {
		healthErrors["otp_store"] = fmt.Errorf("otp store not initialized")
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	return len(f.HealthCheck(ctx)) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		f.logger.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				f.logger.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				f.logger.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				f.logger.Info("Redis client closed")
			}
		}

		f.logger.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Hasher() *hashing.Hasher {
	return f.hasher
}

func (f *Factory) Mailer() mailer.Mailer {
	return f.mailer
}

// IPRateLimiter returns nil when the per-IP guard is disabled.
func (f *Factory) IPRateLimiter() *handler.IPRateLimiter {
	return f.ipLimiter
}
