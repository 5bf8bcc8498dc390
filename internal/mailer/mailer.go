package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/config"
)

const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
	TransportLog  = "log"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	// Transport names the delivery mechanism ("smtp", "ses", "log").
	Transport() string
}

// IsConfigured reports whether m actually delivers mail.
func IsConfigured(m Mailer) bool {
	return m != nil && m.Transport() != TransportLog
}

// New selects a transport from configuration. It never fails: anything
// missing or broken degrades to the log transport so local development
// works without mail credentials.
func New(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) Mailer {
	provider := cfg.Provider
	if provider == "" || provider == "auto" {
		provider = TransportLog
		if cfg.SMTPHost != "" {
			provider = TransportSMTP
		}
	}

	switch provider {
	case TransportSMTP:
		if cfg.SMTPHost == "" {
			logger.Warn("SMTP transport selected without SMTP_HOST, falling back to log transport")
			return NewLogMailer(logger)
		}
		logger.Info("Mail transport configured",
			zap.String("transport", TransportSMTP),
			zap.String("host", cfg.SMTPHost),
			zap.Int("port", cfg.SMTPPort))
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From)
	case TransportSES:
		m, err := NewSESMailer(ctx, cfg.AWSRegion, cfg.From)
		if err != nil {
			logger.Warn("SES transport unavailable, falling back to log transport", zap.Error(err))
			return NewLogMailer(logger)
		}
		logger.Info("Mail transport configured",
			zap.String("transport", TransportSES),
			zap.String("region", cfg.AWSRegion))
		return m
	case TransportLog:
		logger.Warn("No mail transport configured, OTP codes will be written to the log")
		return NewLogMailer(logger)
	default:
		logger.Warn("Unknown mail provider, falling back to log transport", zap.String("provider", provider))
		return NewLogMailer(logger)
	}
}

// OTPMessage renders the subject and plain-text body for a code.
func OTPMessage(code string, ttl time.Duration) (subject, body string) {
	subject = "Your verification code"
	body = fmt.Sprintf(
		"Your verification code is %s.\r\n\r\nIt expires in %d minutes. If you did not request it, you can ignore this email.\r\n",
		code, int(ttl.Minutes()))
	return subject, body
}
