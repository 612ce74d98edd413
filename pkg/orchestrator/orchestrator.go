package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/audit"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/metrics"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/runtime"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

// ErrCycleInProgress is returned when a restart cycle is already running.
// Invocations are idempotent in effect but never safe to overlap.
var ErrCycleInProgress = errors.New("restart cycle already in progress")

// CycleStore persists finished cycles
type CycleStore interface {
	SaveCycle(cycle *types.RestartCycle) error
}

// Config holds the orchestrator's step budgets
type Config struct {
	// Replicas is the configured replica count, checked during Verify
	Replicas int

	// StopTimeout bounds the teardown step
	StopTimeout time.Duration

	// BuildTimeout bounds the image rebuild and the replica launch steps
	BuildTimeout time.Duration

	// ReadyTimeout bounds the post-teardown resource-release poll
	ReadyTimeout time.Duration
}

// Orchestrator drives the restart state machine:
//
//	Idle → Stopping → Cleaning → Building → Starting → Verifying → Idle
//
// or → Failed from any non-idle state. Steps run strictly sequentially; the
// first failing step aborts the cycle with no rollback — the cluster is
// stateless and rebuildable, and the next scheduled cycle is the recovery
// mechanism.
type Orchestrator struct {
	rt       runtime.Runtime
	auditLog *audit.Logger
	store    CycleStore
	cfg      Config

	// runMu is the single-slot run lock; TryLock keeps overlapping triggers
	// out instead of queueing them
	runMu sync.Mutex
}

// New creates an orchestrator over the given cluster runtime. auditLog and
// store may be nil in tests.
func New(rt runtime.Runtime, auditLog *audit.Logger, store CycleStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		rt:       rt,
		auditLog: auditLog,
		store:    store,
		cfg:      cfg,
	}
}

// Run executes one full restart cycle. Returns ErrCycleInProgress without
// touching the cluster if another cycle holds the run lock. The returned
// cycle is complete and immutable; its error mirrors the cycle status.
func (o *Orchestrator) Run(ctx context.Context) (*types.RestartCycle, error) {
	if !o.runMu.TryLock() {
		o.audit("cycle trigger skipped: previous cycle still running")
		return nil, ErrCycleInProgress
	}
	defer o.runMu.Unlock()

	cycle := &types.RestartCycle{
		ID:        uuid.New().String(),
		StartTime: time.Now(),
	}
	logger := log.WithCycleID(cycle.ID)
	logger.Info().Msg("restart cycle started")
	o.auditf("cycle %s started", cycle.ID)

	steps := []struct {
		name types.StepName
		fn   func(context.Context) error
	}{
		{types.StepStop, o.stop},
		{types.StepClean, o.waitReleased},
		{types.StepBuild, o.build},
		{types.StepStart, o.start},
		{types.StepVerify, o.verify},
	}

	var failed bool
	for _, step := range steps {
		start := time.Now()
		err := step.fn(ctx)
		result := types.StepResult{
			Step:     step.name,
			Duration: time.Since(start),
		}
		metrics.StepDuration.WithLabelValues(string(step.name)).Observe(result.Duration.Seconds())

		if err != nil && step.name == types.StepVerify {
			// Verify is observational only: its outcome is recorded but
			// never decides the cycle
			result.Error = err.Error()
			logger.Warn().Err(err).Msg("verify step reported an error")
			o.auditf("cycle %s step %s: %v (observational)", cycle.ID, step.name, err)
			cycle.Steps = append(cycle.Steps, result)
			continue
		}

		if err != nil {
			result.Error = err.Error()
			cycle.Steps = append(cycle.Steps, result)
			logger.Error().Err(err).Str("step", string(step.name)).Msg("restart step failed")
			o.auditf("cycle %s step %s failed after %s: %v", cycle.ID, step.name, result.Duration.Round(time.Millisecond), err)
			failed = true
			break
		}

		cycle.Steps = append(cycle.Steps, result)
		logger.Info().
			Str("step", string(step.name)).
			Dur("duration", result.Duration).
			Msg("restart step completed")
		o.auditf("cycle %s step %s ok in %s", cycle.ID, step.name, result.Duration.Round(time.Millisecond))
	}

	cycle.EndTime = time.Now()
	if failed {
		cycle.Status = types.CycleFailed
	} else {
		cycle.Status = types.CycleSuccess
	}

	metrics.CyclesTotal.WithLabelValues(string(cycle.Status)).Inc()
	o.auditf("cycle %s finished: %s", cycle.ID, cycle.Status)

	if o.store != nil {
		if err := o.store.SaveCycle(cycle); err != nil {
			logger.Error().Err(err).Msg("failed to persist cycle record")
		}
	}

	if failed {
		last := cycle.Steps[len(cycle.Steps)-1]
		return cycle, fmt.Errorf("restart cycle failed at step %s: %s", last.Step, last.Error)
	}

	logger.Info().Dur("duration", cycle.EndTime.Sub(cycle.StartTime)).Msg("restart cycle succeeded")
	return cycle, nil
}

// stop tears down all replicas and their ephemeral storage. Destructive by
// design: cluster-local volumes are not preserved.
func (o *Orchestrator) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StopTimeout)
	defer cancel()
	return o.rt.Down(ctx)
}

// waitReleased polls until the runtime reports no running replicas, bounded
// by ReadyTimeout. This replaces a fixed settle delay: it neither races on
// too little time nor wastes wall clock on too much.
func (o *Orchestrator) waitReleased(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ReadyTimeout)
	defer cancel()

	check := func() error {
		running, err := o.rt.Ps(ctx)
		if err != nil {
			return err
		}
		if len(running) > 0 {
			return fmt.Errorf("%d replicas still running", len(running))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
	), ctx)

	if err := backoff.Retry(check, policy); err != nil {
		return fmt.Errorf("cluster resources not released within %s: %w", o.cfg.ReadyTimeout, err)
	}
	return nil
}

// build rebuilds container images from current source
func (o *Orchestrator) build(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BuildTimeout)
	defer cancel()
	return o.rt.Build(ctx)
}

// start launches the configured replica set
func (o *Orchestrator) start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BuildTimeout)
	defer cancel()
	return o.rt.Up(ctx)
}

// verify lists running replicas and samples recent output. Observational
// only: findings are logged and recorded, never used to fail the cycle.
func (o *Orchestrator) verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StopTimeout)
	defer cancel()

	running, err := o.rt.Ps(ctx)
	if err != nil {
		return fmt.Errorf("failed to list replicas: %w", err)
	}

	logger := log.WithComponent("orchestrator")

	o.auditf("verify: %d/%d replicas running", len(running), o.cfg.Replicas)
	if len(running) != o.cfg.Replicas {
		logger.Warn().
			Int("running", len(running)).
			Int("configured", o.cfg.Replicas).
			Msg("replica count does not match configuration")
	}

	tail, err := o.rt.Logs(ctx, 20)
	if err != nil {
		return fmt.Errorf("failed to sample replica logs: %w", err)
	}
	logger.Debug().Str("tail", tail).Msg("sampled replica output")

	return nil
}

func (o *Orchestrator) audit(msg string) {
	if o.auditLog != nil {
		_ = o.auditLog.Event("orchestrator", msg)
	}
}

func (o *Orchestrator) auditf(format string, args ...interface{}) {
	if o.auditLog != nil {
		_ = o.auditLog.Eventf("orchestrator", format, args...)
	}
}
