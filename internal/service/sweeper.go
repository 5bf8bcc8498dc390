package service

import (
	"context"
	"time"

	"otp-auth-service/internal/events"
	"otp-auth-service/internal/repository"

	"go.uber.org/zap"
)

// SweepExpired removes expired challenges and prunes idle rate-limit
// windows. Returns the number of challenges removed.
func (s *OTPService) SweepExpired(ctx context.Context) (int, error) {
	removed, err := s.store.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		ev := events.Event{Type: events.TypeOTPSwept, Count: removed, OccurredAt: s.clock.Now()}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Failed to publish audit event", zap.String("type", ev.Type), zap.Error(err))
		}
	}

	if p, ok := s.limiter.(repository.Pruner); ok {
		if _, err := p.Prune(ctx); err != nil {
			s.logger.Warn("Failed to prune rate limit windows", zap.Error(err))
		}
	}
	return removed, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *OTPService) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("OTP sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("OTP sweeper stopped")
			return nil
		case <-ticker.C:
			removed, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error("OTP sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Debug("Expired OTPs swept", zap.Int("removed", removed))
			}
		}
	}
}
