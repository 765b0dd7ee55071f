// Package scheduler drives periodic rate aggregation for the daemon mode.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Task is one unit of scheduled work, the aggregation update in practice.
type Task func(ctx context.Context) error

// Scheduler repeatedly invokes a task at a fixed interval. Runs are
// sequential, a slow run delays the next tick instead of overlapping it.
type Scheduler struct {
	task     Task
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler over the task.
func New(task Task, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{task: task, interval: interval, logger: logger}
}

// Run executes the task immediately, then on every interval tick until the
// context is cancelled. A failed run is logged and the loop keeps going; only
// cancellation stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.task(ctx); err != nil {
		s.logger.Error("scheduled update failed", zap.Error(err))
	}
}
