package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.logger.Info("Email not sent (log transport)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

func (m *LogMailer) Transport() string { return TransportLog }
