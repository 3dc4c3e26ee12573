package app

import (
	"context"
	"log/slog"
	"time"
)

const pruneJobTimeout = 5 * time.Minute

// PruneRepository deletes processed-order records older than a cutoff.
type PruneRepository interface {
	PruneProcessedOrders(ctx context.Context, appliedBefore time.Time) (int64, error)
}

// Jobs contains the logic for scheduled tasks.
type Jobs struct {
	repo      PruneRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobs creates a new Jobs runner. A non-positive retention disables pruning.
func NewJobs(repo PruneRepository, retention time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:      repo,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// PruneProcessedOrders removes dedupe records that are past the retention
// window. Shopify stops retrying a delivery after 48 hours, so records older
// than the window can no longer guard against a redelivery.
func (j *Jobs) PruneProcessedOrders() {
	if j.retention <= 0 {
		j.logger.Info("processed order pruning disabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pruneJobTimeout)
	defer cancel()

	cutoff := j.now().UTC().Add(-j.retention)
	j.logger.Info("starting processed order prune job", "cutoff", cutoff)

	deleted, err := j.repo.PruneProcessedOrders(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to prune processed orders", "error", err)
		return
	}

	j.logger.Info("processed order prune job finished", "deleted", deleted)
}
