package session

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner is the part of Service the scheduler drives.
type Cleaner interface {
	CleanupExpiredSessions(ctx context.Context, timeout time.Duration) (int64, error)
}

// Scheduler runs session cleanup on a fixed interval until its context ends.
type Scheduler struct {
	cleaner  Cleaner
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(cleaner Cleaner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cleaner:  cleaner,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run performs one cleanup immediately, then one per tick. It returns when
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("session cleanup scheduler started",
		"interval", s.interval,
		"inactivity_timeout", s.timeout)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass; failures are logged and the next
// tick retries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	count, err := s.cleaner.CleanupExpiredSessions(ctx, s.timeout)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("session cleanup failed", "error", err)
		}
		return
	}
	if count > 0 {
		s.logger.Info("session cleanup finished", "expired", count)
	}
}
