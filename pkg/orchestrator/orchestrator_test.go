package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

// fakeRuntime scripts step outcomes for the state machine
type fakeRuntime struct {
	mu sync.Mutex

	downErr  error
	buildErr error
	upErr    error
	psErr    error
	logsErr  error

	running []string
	calls   []string

	// blockDown holds Down until released, to exercise the run lock
	blockDown chan struct{}
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRuntime) Down(ctx context.Context) error {
	f.record("down")
	if f.blockDown != nil {
		<-f.blockDown
	}
	return f.downErr
}

func (f *fakeRuntime) Build(ctx context.Context) error {
	f.record("build")
	return f.buildErr
}

func (f *fakeRuntime) Up(ctx context.Context) error {
	f.record("up")
	return f.upErr
}

func (f *fakeRuntime) Ps(ctx context.Context) ([]string, error) {
	f.record("ps")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, f.psErr
}

func (f *fakeRuntime) Logs(ctx context.Context, tailLines int) (string, error) {
	f.record("logs")
	return "replica output", f.logsErr
}

func testConfig() Config {
	return Config{
		Replicas:     3,
		StopTimeout:  time.Second,
		BuildTimeout: time.Second,
		ReadyTimeout: time.Second,
	}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	rt := &fakeRuntime{}
	orch := New(rt, nil, nil, testConfig())

	cycle, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.CycleSuccess, cycle.Status)
	require.Len(t, cycle.Steps, 5)
	for i, name := range types.StepOrder {
		assert.Equal(t, name, cycle.Steps[i].Step)
		assert.True(t, cycle.Steps[i].Ok())
	}
	assert.False(t, cycle.EndTime.Before(cycle.StartTime))
}

func TestRun_StopFailureAbortsImmediately(t *testing.T) {
	rt := &fakeRuntime{downErr: errors.New("compose down exploded")}
	orch := New(rt, nil, nil, testConfig())

	cycle, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, types.CycleFailed, cycle.Status)
	require.Len(t, cycle.Steps, 1)
	assert.Equal(t, types.StepStop, cycle.Steps[0].Step)
	assert.Contains(t, cycle.Steps[0].Error, "compose down exploded")
	assert.NotContains(t, rt.calls, "build")
	assert.NotContains(t, rt.calls, "up")
}

func TestRun_BuildFailureSkipsStart(t *testing.T) {
	rt := &fakeRuntime{buildErr: errors.New("malformed build input")}
	orch := New(rt, nil, nil, testConfig())

	cycle, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, types.CycleFailed, cycle.Status)

	// Recorded steps are a strict prefix: stop, clean, build — never start
	require.Len(t, cycle.Steps, 3)
	assert.Equal(t, types.StepBuild, cycle.Steps[2].Step)
	assert.False(t, cycle.Steps[2].Ok())
	assert.NotContains(t, rt.calls, "up")
}

func TestRun_VerifyErrorDoesNotFailCycle(t *testing.T) {
	rt := &fakeRuntime{logsErr: errors.New("log stream unavailable")}
	orch := New(rt, nil, nil, testConfig())

	cycle, err := orch.Run(context.Background())
	require.NoError(t, err, "verify is observational only")

	assert.Equal(t, types.CycleSuccess, cycle.Status)
	require.Len(t, cycle.Steps, 5)
	last := cycle.Steps[4]
	assert.Equal(t, types.StepVerify, last.Step)
	assert.Contains(t, last.Error, "log stream unavailable")
}

func TestRun_ReadyTimeoutFailsDeterministically(t *testing.T) {
	rt := &fakeRuntime{running: []string{"api-1"}}
	cfg := testConfig()
	cfg.ReadyTimeout = 150 * time.Millisecond
	orch := New(rt, nil, nil, cfg)

	start := time.Now()
	cycle, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, types.CycleFailed, cycle.Status)
	require.Len(t, cycle.Steps, 2)
	assert.Equal(t, types.StepClean, cycle.Steps[1].Step)
	assert.Contains(t, cycle.Steps[1].Error, "not released")
	assert.Less(t, time.Since(start), 5*time.Second, "timeout must be bounded")
}

func TestRun_OverlappingInvocationIsRejected(t *testing.T) {
	rt := &fakeRuntime{blockDown: make(chan struct{})}
	orch := New(rt, nil, nil, testConfig())

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = orch.Run(context.Background())
	}()

	// Wait for the first cycle to take the run lock
	require.Eventually(t, func() bool {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return len(rt.calls) > 0
	}, time.Second, 5*time.Millisecond)

	_, err := orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(rt.blockDown)
	<-firstDone
}

// savedCycles implements CycleStore
type savedCycles struct {
	mu     sync.Mutex
	cycles []*types.RestartCycle
}

func (s *savedCycles) SaveCycle(c *types.RestartCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, c)
	return nil
}

func TestRun_PersistsFinishedCycle(t *testing.T) {
	rt := &fakeRuntime{}
	saved := &savedCycles{}
	orch := New(rt, nil, saved, testConfig())

	cycle, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, saved.cycles, 1)
	assert.Equal(t, cycle.ID, saved.cycles[0].ID)
	assert.Equal(t, types.CycleSuccess, saved.cycles[0].Status)
}
