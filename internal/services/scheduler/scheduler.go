// Package scheduler периодически удаляет просроченные токены сброса пароля.
// Просроченный токен и так не проходит проверку, очистка лишь убирает хэши из хранилища.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/lms-identity/internal/lib/sl"
)

type ResetTokenRepository interface {
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type SchedulerService struct {
	repo     ResetTokenRepository
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo ResetTokenRepository, log *slog.Logger, interval time.Duration) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// PurgeExpiredResetTokens выполняет очистку сразу и затем каждые interval, пока ctx не отменён.
func (s *SchedulerService) PurgeExpiredResetTokens(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Warn("reset token sweeper disabled")
		return
	}
	s.runPurgeExpiredResetTokens(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPurgeExpiredResetTokens(ctx)
		}
	}
}

func (s *SchedulerService) runPurgeExpiredResetTokens(ctx context.Context) {
	const op = "scheduler.PurgeExpiredResetTokens"
	n, err := s.repo.PurgeExpiredResetTokens(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("failed to purge expired reset tokens", slog.String("op", op), sl.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("expired reset tokens purged", slog.String("op", op), slog.Int64("count", n))
	}
}
