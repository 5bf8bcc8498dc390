package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from the environment.
type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	OTP         OTPConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	Mail        MailConfig
	Kafka       KafkaConfig
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequireHTTPS   bool
	AllowedOrigins []string

	EnableTLS   bool
	TLSPort     int
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// OTPConfig controls the code lifecycle and the issued session.
type OTPConfig struct {
	Secret        string
	TTL           time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
	SessionTTL    time.Duration
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	IPRate      float64
	IPBurst     int
}

// RedisConfig is optional; an empty URL keeps all state in process memory.
type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	PoolSize    int
	TLSCAFile   string
	TLSCertFile string
	TLSKeyFile  string
}

type MailConfig struct {
	Provider     string
	From         string
	SendTimeout  time.Duration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AWSRegion    string
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Environment: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Port:           v.GetInt("SERVER_PORT"),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:    v.GetDuration("SERVER_IDLE_TIMEOUT"),
			RequireHTTPS:   v.GetBool("REQUIRE_HTTPS"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			EnableTLS:      v.GetBool("TLS_ENABLED"),
			TLSPort:        v.GetInt("TLS_PORT"),
			AutoCert:       v.GetBool("TLS_AUTOCERT"),
			Domain:         v.GetString("TLS_DOMAIN"),
			CertFile:       v.GetString("TLS_CERT_FILE"),
			KeyFile:        v.GetString("TLS_KEY_FILE"),
			AutoCertDir:    v.GetString("TLS_AUTOCERT_DIR"),
			Email:          v.GetString("TLS_EMAIL"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
		OTP: OTPConfig{
			Secret:        v.GetString("OTP_SECRET"),
			TTL:           v.GetDuration("OTP_TTL"),
			MaxAttempts:   v.GetInt("OTP_MAX_ATTEMPTS"),
			SweepInterval: v.GetDuration("OTP_SWEEP_INTERVAL"),
			SessionTTL:    v.GetDuration("SESSION_TTL"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: v.GetInt("RATE_LIMIT_MAX"),
			Window:      v.GetDuration("RATE_LIMIT_WINDOW"),
			IPRate:      v.GetFloat64("IP_RATE_LIMIT_RPS"),
			IPBurst:     v.GetInt("IP_RATE_LIMIT_BURST"),
		},
		Redis: RedisConfig{
			URL:         v.GetString("REDIS_URL"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
			TLSCAFile:   v.GetString("REDIS_TLS_CA_FILE"),
			TLSCertFile: v.GetString("REDIS_TLS_CERT_FILE"),
			TLSKeyFile:  v.GetString("REDIS_TLS_KEY_FILE"),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(v.GetString("MAIL_PROVIDER")),
			From:         v.GetString("MAIL_FROM"),
			SendTimeout:  v.GetDuration("MAIL_SEND_TIMEOUT"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			AWSRegion:    v.GetString("AWS_REGION"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			AuditTopic: v.GetString("KAFKA_AUDIT_TOPIC"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("SERVER_PORT", 3000)
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("REQUIRE_HTTPS", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TLS_ENABLED", false)
	v.SetDefault("TLS_PORT", 8443)
	v.SetDefault("TLS_AUTOCERT", false)
	v.SetDefault("TLS_DOMAIN", "localhost")
	v.SetDefault("TLS_AUTOCERT_DIR", "./certs")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("OTP_TTL", 10*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_SWEEP_INTERVAL", 60*time.Second)
	v.SetDefault("SESSION_TTL", 30*24*time.Hour)

	v.SetDefault("RATE_LIMIT_MAX", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", 60*time.Second)
	v.SetDefault("IP_RATE_LIMIT_RPS", 10)
	v.SetDefault("IP_RATE_LIMIT_BURST", 20)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)

	v.SetDefault("MAIL_PROVIDER", "auto")
	v.SetDefault("MAIL_FROM", "noreply@localhost")
	v.SetDefault("MAIL_SEND_TIMEOUT", 10*time.Second)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AWS_REGION", "us-east-1")

	v.SetDefault("KAFKA_AUDIT_TOPIC", "auth.otp.events")
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsesSharedStore reports whether OTP and rate-limit state live in Redis.
func (c *Config) UsesSharedStore() bool {
	return c.Redis.URL != ""
}

// GetServerAddress returns the plain HTTP listen address.
func (c *Config) GetServerAddress() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
