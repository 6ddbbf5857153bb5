package service

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically removes expired records from the directory. Expiry is
// already enforced at query time; the reaper only reclaims storage.
type Reaper struct {
	logger   *slog.Logger
	repo     URLRepository
	interval time.Duration
}

func NewReaper(logger *slog.Logger, repo URLRepository, interval time.Duration) *Reaper {
	return &Reaper{
		logger:   logger,
		repo:     repo,
		interval: interval,
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("expiry reaper starting", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := r.repo.DeleteExpired(ctx)
			if err != nil {
				r.logger.Error("failed to delete expired urls", slog.Any("err", err))
				continue
			}

			if n > 0 {
				r.logger.Info("deleted expired urls", slog.Int64("count", n))
			}
		case <-ctx.Done():
			r.logger.Info("expiry reaper stopping")
			return
		}
	}
}
