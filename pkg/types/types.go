package types

import (
	"time"
)

// StepName identifies one step of a restart cycle
type StepName string

const (
	StepStop   StepName = "stop"
	StepClean  StepName = "clean"
	StepBuild  StepName = "build"
	StepStart  StepName = "start"
	StepVerify StepName = "verify"
)

// StepOrder is the canonical order of restart cycle steps.
// A cycle's recorded steps are always a strict prefix of this sequence.
var StepOrder = []StepName{StepStop, StepClean, StepBuild, StepStart, StepVerify}

// CycleStatus represents the overall outcome of a restart cycle
type CycleStatus string

const (
	CycleSuccess CycleStatus = "success"
	CycleFailed  CycleStatus = "failed"
)

// StepResult records the outcome of a single cycle step
type StepResult struct {
	Step     StepName      `json:"step"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Ok reports whether the step completed without error
func (r StepResult) Ok() bool {
	return r.Error == ""
}

// RestartCycle is the immutable record of one full teardown-rebuild-start
// execution. It is created when the orchestrator is invoked and never
// mutated after completion.
type RestartCycle struct {
	ID        string       `json:"id"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Steps     []StepResult `json:"steps"`
	Status    CycleStatus  `json:"status"`
}

// ReplicaState represents the routing eligibility of a replica
type ReplicaState string

const (
	ReplicaHealthy   ReplicaState = "healthy"
	ReplicaUnhealthy ReplicaState = "unhealthy"
)

// Replica is one running instance of the downstream valuation service.
// Identity changes across restart cycles; old records are discarded, not
// reused.
type Replica struct {
	ID      string       `json:"id"`
	Address string       `json:"address"`
	State   ReplicaState `json:"state"`

	// ConsecutiveFailures counts failed attempts since the last success
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

// ValuationRequest is the body of POST /valuate-property on the downstream
// service
type ValuationRequest struct {
	APN    string `json:"apn"`
	County string `json:"county"`
	State  string `json:"state"`
}

// ValuationSummary is the subset of the downstream response the harness
// needs to classify a target as passing
type ValuationSummary struct {
	TargetProperty    string   `json:"target_property"`
	TargetAcreage     float64  `json:"target_acreage"`
	EstimatedValueAvg *float64 `json:"estimated_value_avg"`
	ComparableCount   int      `json:"comparable_count"`
}

// TargetResult is one harness measurement for a single target identifier
type TargetResult struct {
	Target   string            `json:"target"`
	Latency  time.Duration     `json:"latency"`
	Status   int               `json:"http_status"`
	Summary  *ValuationSummary `json:"summary,omitempty"`
	RawError string            `json:"raw_error,omitempty"`
}

// Passed reports whether the target counts as a pass: an HTTP success with a
// parseable summary
func (r TargetResult) Passed() bool {
	return r.Status >= 200 && r.Status < 300 && r.Summary != nil && r.RawError == ""
}

// ValidationRun aggregates one harness invocation. It is ephemeral and
// exists only for the duration of the invocation.
type ValidationRun struct {
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Results   []TargetResult `json:"results"`
}

// Passes returns the number of passing targets
func (v *ValidationRun) Passes() int {
	n := 0
	for _, r := range v.Results {
		if r.Passed() {
			n++
		}
	}
	return n
}

// Failures returns the number of failing targets
func (v *ValidationRun) Failures() int {
	return len(v.Results) - v.Passes()
}
