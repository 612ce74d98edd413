package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPChecker_HealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL, 2*time.Second)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestHTTPChecker_UnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL, 2*time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_UnreachableEndpoint(t *testing.T) {
	// Port from a closed listener: connection refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	checker := NewHTTPChecker(url, 500*time.Millisecond)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("Expected unhealthy for unreachable endpoint")
	}
}

func TestTracker_UnhealthyAfterMaxFails(t *testing.T) {
	tr := NewTracker(Policy{MaxFails: 3, FailTimeout: 30 * time.Second})

	if !tr.Healthy() {
		t.Fatal("Expected new tracker to start healthy")
	}

	transitioned := false
	for i := 0; i < 3; i++ {
		transitioned = tr.RecordFailure()
	}

	if !transitioned {
		t.Error("Expected third failure to report the transition")
	}
	if tr.Healthy() {
		t.Error("Expected unhealthy after 3 consecutive failures")
	}
}

func TestTracker_SingleSuccessResets(t *testing.T) {
	tr := NewTracker(Policy{MaxFails: 3, FailTimeout: 30 * time.Second})

	tr.RecordFailure()
	tr.RecordFailure()
	tr.RecordSuccess()

	if tr.Failures() != 0 {
		t.Errorf("Expected failure count 0 after success, got %d", tr.Failures())
	}

	// The streak starts over: two more failures must not trip the threshold
	tr.RecordFailure()
	tr.RecordFailure()
	if !tr.Healthy() {
		t.Error("Expected healthy: streak was reset by success")
	}
}

func TestTracker_SuccessRestoresEligibility(t *testing.T) {
	tr := NewTracker(Policy{MaxFails: 2, FailTimeout: 30 * time.Second})

	tr.RecordFailure()
	tr.RecordFailure()
	if tr.Healthy() {
		t.Fatal("Expected unhealthy")
	}

	tr.RecordSuccess()
	if !tr.Healthy() {
		t.Error("Expected healthy again after a successful probe")
	}
}

func TestTracker_StaleFailuresFallOutOfWindow(t *testing.T) {
	tr := NewTracker(Policy{MaxFails: 3, FailTimeout: 30 * time.Second})

	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.RecordFailure()
	tr.RecordFailure()

	// Next failure lands well outside the rolling window
	current = current.Add(31 * time.Second)
	tr.RecordFailure()

	if !tr.Healthy() {
		t.Error("Expected healthy: earlier failures fell outside the window")
	}
	if tr.Failures() != 1 {
		t.Errorf("Expected streak of 1, got %d", tr.Failures())
	}

	// Two more inside the window now trip the threshold
	current = current.Add(time.Second)
	tr.RecordFailure()
	current = current.Add(time.Second)
	tr.RecordFailure()
	if tr.Healthy() {
		t.Error("Expected unhealthy after 3 failures inside the window")
	}
}
