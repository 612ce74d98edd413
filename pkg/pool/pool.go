package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/metrics"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/probe"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

// ErrNoHealthyReplicas is returned when every replica is excluded from
// selection. Callers fail fast rather than queue.
var ErrNoHealthyReplicas = errors.New("no healthy replicas available")

// replica pairs a replica's identity with its failure accounting
type replica struct {
	id      string
	address string
	tracker *probe.Tracker
}

// Pool tracks the health of the replica set and selects among healthy
// replicas round-robin. The pool only observes and routes; it never creates
// or destroys replicas.
type Pool struct {
	mu       sync.Mutex
	replicas []*replica
	next     int
	policy   probe.Policy
}

// New creates a pool with the given routing policy and initial replica
// addresses
func New(policy probe.Policy, addresses []string) *Pool {
	p := &Pool{policy: policy}
	p.SetReplicas(addresses)
	return p
}

// SetReplicas replaces the replica set, discarding all prior health state.
// Called when a new restart cycle brings fresh replicas online; identities
// change across cycles.
func (p *Pool) SetReplicas(addresses []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.replicas = make([]*replica, 0, len(addresses))
	for _, addr := range addresses {
		p.replicas = append(p.replicas, &replica{
			id:      uuid.New().String(),
			address: addr,
			tracker: probe.NewTracker(p.policy),
		})
	}
	p.next = 0
	p.updateHealthyGaugeLocked()
}

// Select returns the address and identity of the next healthy replica.
// Selection is round-robin over the healthy subset so no healthy replica is
// starved.
func (p *Pool) Select() (id, address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.replicas)
	if n == 0 {
		return "", "", ErrNoHealthyReplicas
	}

	for i := 0; i < n; i++ {
		r := p.replicas[p.next%n]
		p.next = (p.next + 1) % n
		if r.tracker.Healthy() {
			return r.id, r.address, nil
		}
	}
	return "", "", ErrNoHealthyReplicas
}

// ReportSuccess records a successful attempt against the replica, resetting
// its failure streak
func (p *Pool) ReportSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.findLocked(id); r != nil {
		r.tracker.RecordSuccess()
		p.updateHealthyGaugeLocked()
	}
}

// ReportFailure records a failed attempt against the replica. source is
// "route" for passive routing failures and "probe" for active probes.
func (p *Pool) ReportFailure(id, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.findLocked(id)
	if r == nil {
		return
	}

	metrics.ReplicaFailuresTotal.WithLabelValues(r.address, source).Inc()
	if r.tracker.RecordFailure() {
		logger := log.WithComponent("pool")
		logger.Warn().
			Str("replica", r.address).
			Str("source", source).
			Msg("replica marked unhealthy")
	}
	p.updateHealthyGaugeLocked()
}

// Snapshot returns the current replica records for observability
func (p *Pool) Snapshot() []types.Replica {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.Replica, 0, len(p.replicas))
	for _, r := range p.replicas {
		state := types.ReplicaHealthy
		if !r.tracker.Healthy() {
			state = types.ReplicaUnhealthy
		}
		out = append(out, types.Replica{
			ID:                  r.id,
			Address:             r.address,
			State:               state,
			ConsecutiveFailures: r.tracker.Failures(),
		})
	}
	return out
}

// HealthyCount returns the number of replicas eligible for routing
func (p *Pool) HealthyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthyCountLocked()
}

func (p *Pool) healthyCountLocked() int {
	n := 0
	for _, r := range p.replicas {
		if r.tracker.Healthy() {
			n++
		}
	}
	return n
}

func (p *Pool) findLocked(id string) *replica {
	for _, r := range p.replicas {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (p *Pool) updateHealthyGaugeLocked() {
	metrics.ReplicasHealthy.Set(float64(p.healthyCountLocked()))
}

// String describes the pool for logs
func (p *Pool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("pool[%d replicas, %d healthy]", len(p.replicas), p.healthyCountLocked())
}
