/**
 * @description
 * Cron scheduler for ledger housekeeping jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron          *cron.Cron
	jobs          *Jobs
	logger        *slog.Logger
	pruneSchedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, pruneSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:          c,
		jobs:          jobs,
		logger:        logger,
		pruneSchedule: pruneSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler. An invalid schedule is
// returned so main can refuse to start.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.pruneSchedule, s.jobs.PruneProcessedOrders); err != nil {
		s.logger.Error("failed to schedule processed order prune job", "error", err)
		return err
	}
	s.logger.Info("scheduled processed order prune job", "schedule", s.pruneSchedule)

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
