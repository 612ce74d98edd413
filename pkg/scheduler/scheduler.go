package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/orchestrator"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

// Runner executes one restart cycle per trigger
type Runner interface {
	Run(ctx context.Context) (*types.RestartCycle, error)
}

// Scheduler fires the restart orchestrator once per fixed interval. Triggers
// are serialized: a tick arriving while a cycle is still running is skipped
// and logged, never run concurrently. A missed fire is not retried — the
// next tick is the recovery mechanism.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	stopCh   chan struct{}
}

// New creates a scheduler that triggers runner every interval
func New(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run loops until the context is cancelled or Stop is called
func (s *Scheduler) Run(ctx context.Context) {
	logger := log.WithComponent("scheduler")
	logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trigger(ctx)
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopped")
			return
		case <-s.stopCh:
			logger.Info().Msg("scheduler stopped")
			return
		}
	}
}

// Stop stops the scheduler loop
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// trigger fires one cycle, treating an in-flight cycle as a skip
func (s *Scheduler) trigger(ctx context.Context) {
	logger := log.WithComponent("scheduler")

	cycle, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrCycleInProgress):
		logger.Warn().Msg("trigger skipped: cycle still in progress")
	case err != nil:
		logger.Error().Err(err).Msg("scheduled cycle failed")
	default:
		logger.Info().
			Str("cycle_id", cycle.ID).
			Str("status", string(cycle.Status)).
			Msg("scheduled cycle completed")
	}
}
