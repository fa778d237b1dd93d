package worker

import (
	"context"
	"time"

	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/pkg/logger"
)

// ReclaimWorker returns in_progress actions whose claim lease expired back to
// pending, so work lost to a killed executor run is retried instead of stuck.
type ReclaimWorker struct {
	queue    repository.QueuedActionRepository
	lease    time.Duration
	interval time.Duration
	logger   *logger.Logger
}

func NewReclaimWorker(queue repository.QueuedActionRepository, lease, interval time.Duration, logger *logger.Logger) *ReclaimWorker {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReclaimWorker{
		queue:    queue,
		lease:    lease,
		interval: interval,
		logger:   logger,
	}
}

func (w *ReclaimWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := w.queue.ReclaimStale(ctx, w.lease)
			if err != nil {
				w.logger.Error(err, "failed to reclaim stale actions")
				continue
			}
			if reclaimed > 0 {
				w.logger.Warn("reclaimed stale in-progress actions", "count", reclaimed)
			}
		}
	}
}
