package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/orchestrator"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

// countingRunner counts invocations and can simulate a busy orchestrator
type countingRunner struct {
	mu       sync.Mutex
	runs     int
	skips    int
	inFlight int32
	blockFor time.Duration
	overlaps int32
}

func (r *countingRunner) Run(ctx context.Context) (*types.RestartCycle, error) {
	if !atomic.CompareAndSwapInt32(&r.inFlight, 0, 1) {
		atomic.AddInt32(&r.overlaps, 1)
		r.mu.Lock()
		r.skips++
		r.mu.Unlock()
		return nil, orchestrator.ErrCycleInProgress
	}
	defer atomic.StoreInt32(&r.inFlight, 0)

	if r.blockFor > 0 {
		time.Sleep(r.blockFor)
	}

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	return &types.RestartCycle{
		ID:        "cycle",
		Status:    types.CycleSuccess,
		StartTime: time.Now(),
		EndTime:   time.Now(),
	}, nil
}

func (r *countingRunner) counts() (runs, skips int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, r.skips
}

func TestScheduler_FiresOncePerInterval(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	runs, _ := runner.counts()
	require.GreaterOrEqual(t, runs, 3, "expected several ticks")
	assert.LessOrEqual(t, runs, 8, "must not fire more than once per interval")
	assert.Zero(t, atomic.LoadInt32(&runner.overlaps), "invocations must never overlap")
}

func TestScheduler_StopEndsLoop(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_SlowCycleDelaysNextTrigger(t *testing.T) {
	// Each cycle outlives the interval; the synchronous trigger loop means
	// ticks that land mid-cycle coalesce instead of overlapping
	runner := &countingRunner{blockFor: 60 * time.Millisecond}
	s := New(runner, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	runs, _ := runner.counts()
	assert.Zero(t, atomic.LoadInt32(&runner.overlaps), "invocations must never overlap")
	assert.LessOrEqual(t, runs, 6)
}
