package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/probe"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

func testPolicy() probe.Policy {
	return probe.Policy{MaxFails: 3, FailTimeout: 30 * time.Second}
}

func TestPool_RoundRobinOverHealthy(t *testing.T) {
	p := New(testPolicy(), []string{"a:1", "b:1", "c:1"})

	seen := make(map[string]int)
	for i := 0; i < 9; i++ {
		_, addr, err := p.Select()
		require.NoError(t, err)
		seen[addr]++
	}

	// Every healthy replica gets an equal share; nobody starves
	assert.Equal(t, 3, seen["a:1"])
	assert.Equal(t, 3, seen["b:1"])
	assert.Equal(t, 3, seen["c:1"])
}

func TestPool_NeverRoutesToUnhealthy(t *testing.T) {
	p := New(testPolicy(), []string{"a:1", "b:1", "c:1"})

	// Push replica b over the failure threshold
	var bID string
	for _, r := range p.Snapshot() {
		if r.Address == "b:1" {
			bID = r.ID
		}
	}
	for i := 0; i < 3; i++ {
		p.ReportFailure(bID, "route")
	}

	for i := 0; i < 20; i++ {
		_, addr, err := p.Select()
		require.NoError(t, err)
		assert.NotEqual(t, "b:1", addr, "unhealthy replica must be excluded from selection")
	}
}

func TestPool_AllUnhealthyFailsFast(t *testing.T) {
	p := New(testPolicy(), []string{"a:1"})

	id := p.Snapshot()[0].ID
	for i := 0; i < 3; i++ {
		p.ReportFailure(id, "probe")
	}

	_, _, err := p.Select()
	assert.ErrorIs(t, err, ErrNoHealthyReplicas)
}

func TestPool_EmptyPoolFailsFast(t *testing.T) {
	p := New(testPolicy(), nil)
	_, _, err := p.Select()
	assert.ErrorIs(t, err, ErrNoHealthyReplicas)
}

func TestPool_SuccessRestoresRouting(t *testing.T) {
	p := New(testPolicy(), []string{"a:1"})
	id := p.Snapshot()[0].ID

	for i := 0; i < 3; i++ {
		p.ReportFailure(id, "route")
	}
	_, _, err := p.Select()
	require.ErrorIs(t, err, ErrNoHealthyReplicas)

	p.ReportSuccess(id)
	_, addr, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "a:1", addr)
}

func TestPool_SetReplicasDiscardsHealthState(t *testing.T) {
	p := New(testPolicy(), []string{"a:1"})
	oldID := p.Snapshot()[0].ID
	for i := 0; i < 3; i++ {
		p.ReportFailure(oldID, "route")
	}
	require.Equal(t, 0, p.HealthyCount())

	// A new cycle brings fresh replicas with fresh identities
	p.SetReplicas([]string{"a:1", "b:1"})

	assert.Equal(t, 2, p.HealthyCount())
	for _, r := range p.Snapshot() {
		assert.NotEqual(t, oldID, r.ID, "identities change across cycles")
		assert.Equal(t, types.ReplicaHealthy, r.State)
		assert.Equal(t, 0, r.ConsecutiveFailures)
	}
}

func TestPool_ConcurrentReports(t *testing.T) {
	p := New(testPolicy(), []string{"a:1", "b:1", "c:1"})
	ids := make([]string, 0, 3)
	for _, r := range p.Snapshot() {
		ids = append(ids, r.ID)
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				id := ids[(i+j)%len(ids)]
				if j%2 == 0 {
					p.ReportFailure(id, "route")
				} else {
					p.ReportSuccess(id)
				}
				_, _, _ = p.Select()
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
