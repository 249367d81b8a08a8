package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drivesync/logging"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work, normally a sync cycle.
type Job func(ctx context.Context) error

// NewSchedule returns a cron schedule for expr when it is set, otherwise a
// fixed delay of interval. Intervals are rounded to whole seconds.
func NewSchedule(interval time.Duration, expr string) (cron.Schedule, error) {
	if expr != "" {
		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", expr, err)
		}
		return schedule, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", interval)
	}
	return cron.Every(interval), nil
}

// Scheduler runs a job, waits for the next activation of its schedule, and
// repeats. Runs never overlap.
type Scheduler struct {
	schedule cron.Schedule
	job      Job
	logger   *slog.Logger
}

func NewScheduler(schedule cron.Schedule, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		logger:   logging.WithOperation(logger, "scheduler"),
	}
}

// Run blocks until ctx is cancelled. Job errors are logged and the loop
// carries on at the next activation.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.logger.Info("sync stopped")
			return nil
		}

		if err := s.job(ctx); err != nil {
			s.logger.Error("sync cycle failed", logging.Err(err))
		}

		next := s.schedule.Next(time.Now())
		s.logger.Info("next sync scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sync stopped")
			return nil
		case <-timer.C:
		}
	}
}
