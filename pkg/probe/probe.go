package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Result represents the outcome of a single liveness probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface liveness probes implement
type Checker interface {
	Check(ctx context.Context) Result
}

// HTTPChecker probes a replica's /health endpoint
type HTTPChecker struct {
	// URL is the full probe URL (e.g. "http://127.0.0.1:8100/health")
	URL string

	// Client is the HTTP client to use; its timeout is the liveness budget
	Client *http.Client
}

// NewHTTPChecker creates a checker against the given URL with a short
// liveness timeout
func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		URL: url,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Check performs one probe
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 400

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Policy is the failure-counting policy shared by passive routing failures
// and active probes.
type Policy struct {
	// MaxFails is the consecutive-failure threshold before marking unhealthy
	MaxFails int

	// FailTimeout is the rolling window within which failures must
	// accumulate; a failure older than this no longer counts toward the
	// streak
	FailTimeout time.Duration
}

// DefaultPolicy returns the stock routing policy
func DefaultPolicy() Policy {
	return Policy{
		MaxFails:    3,
		FailTimeout: 30 * time.Second,
	}
}

// Tracker accumulates probe and routing outcomes for one replica and decides
// its health state. Safe for concurrent use; failure counters are the only
// shared mutable state in the routing path.
type Tracker struct {
	mu sync.Mutex

	policy      Policy
	failures    int
	lastFailure time.Time
	healthy     bool
	now         func() time.Time
}

// NewTracker creates a tracker that starts healthy
func NewTracker(policy Policy) *Tracker {
	return &Tracker{
		policy:  policy,
		healthy: true,
		now:     time.Now,
	}
}

// Healthy reports whether the replica is currently eligible for routing
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.healthy
}

// Failures returns the current consecutive-failure count
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// RecordSuccess resets the failure streak and restores eligibility
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	t.healthy = true
}

// RecordFailure counts one failed attempt. The streak restarts when the
// previous failure fell outside the rolling window. Returns true if this
// failure transitioned the replica to unhealthy.
func (t *Tracker) RecordFailure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.failures > 0 && now.Sub(t.lastFailure) > t.policy.FailTimeout {
		t.failures = 0
	}
	t.failures++
	t.lastFailure = now

	if t.failures >= t.policy.MaxFails && t.healthy {
		t.healthy = false
		return true
	}
	return false
}
