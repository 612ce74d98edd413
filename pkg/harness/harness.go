package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/audit"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/types"
)

// Config holds harness invocation settings
type Config struct {
	// BaseURL is the upstream pool's public entry point
	BaseURL string

	// Concurrency bounds fan-out; one worker per slot rather than one task
	// per target, so the harness cannot overload the cluster it validates
	Concurrency int

	// TaskTimeout bounds each per-target request; a single unresponsive
	// target cannot stall the aggregation
	TaskTimeout time.Duration
}

// Harness issues one valuation request per target concurrently against the
// upstream pool and classifies each as pass or fail. Each target's result
// is independent: one failure never aborts or alters another's result.
type Harness struct {
	cfg      Config
	client   *http.Client
	auditLog *audit.Logger
}

// New creates a harness. auditLog may be nil.
func New(cfg Config, auditLog *audit.Logger) *Harness {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	return &Harness{
		cfg:      cfg,
		auditLog: auditLog,
		client: &http.Client{
			// Per-request deadlines come from the task context
			Timeout: 0,
		},
	}
}

// Run fans the targets out over the worker pool and joins on completion of
// all tasks. Always produces exactly one result per target, in input order.
func (h *Harness) Run(ctx context.Context, targets []types.ValuationRequest) *types.ValidationRun {
	run := &types.ValidationRun{
		StartTime: time.Now(),
		Results:   make([]types.TargetResult, len(targets)),
	}

	logger := log.WithComponent("harness")
	logger.Info().
		Int("targets", len(targets)).
		Int("concurrency", h.cfg.Concurrency).
		Msg("validation run started")

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < h.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				run.Results[i] = h.check(ctx, targets[i])
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	run.EndTime = time.Now()

	if h.auditLog != nil {
		_ = h.auditLog.Eventf("harness", "validation run: %d pass, %d fail, %d total in %s",
			run.Passes(), run.Failures(), len(run.Results), run.EndTime.Sub(run.StartTime).Round(time.Millisecond))
	}

	return run
}

// check issues one valuation request and classifies the outcome
func (h *Harness) check(ctx context.Context, target types.ValuationRequest) types.TargetResult {
	result := types.TargetResult{Target: target.APN}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.TaskTimeout)
	defer cancel()

	body, err := json.Marshal(target)
	if err != nil {
		result.RawError = fmt.Sprintf("failed to encode request: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.cfg.BaseURL+"/valuate-property", bytes.NewReader(body))
	if err != nil {
		result.RawError = fmt.Sprintf("failed to create request: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.RawError = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.RawError = fmt.Sprintf("failed to read response: %v", err)
		return result
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.RawError = truncate(string(data), 200)
		return result
	}

	var summary types.ValuationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		result.RawError = fmt.Sprintf("unparseable body: %v", err)
		return result
	}
	if summary.TargetProperty == "" {
		result.RawError = "response missing target_property"
		return result
	}

	result.Summary = &summary
	return result
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
