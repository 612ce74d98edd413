package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/probe"
)

// Prober actively checks each replica's /health endpoint on a fixed cadence
// and feeds the results into the same failure policy the proxy uses for
// routing failures. Without it, an unhealthy replica would only recover by
// receiving live traffic.
type Prober struct {
	pool     *Pool
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewProber creates a prober against the pool with the liveness-class
// timeout budget
func NewProber(p *Pool, interval, timeout time.Duration) *Prober {
	return &Prober{
		pool:     p,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the probe loop
func (pr *Prober) Start() {
	pr.wg.Add(1)
	go pr.run()
}

// Stop stops the probe loop and waits for in-flight probes
func (pr *Prober) Stop() {
	close(pr.stopCh)
	pr.wg.Wait()
}

func (pr *Prober) run() {
	defer pr.wg.Done()

	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pr.probeAll()
		case <-pr.stopCh:
			return
		}
	}
}

// probeAll checks every replica concurrently and reports each outcome
func (pr *Prober) probeAll() {
	replicas := pr.pool.Snapshot()

	var wg sync.WaitGroup
	for _, r := range replicas {
		wg.Add(1)
		go func(id, address string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), pr.timeout)
			defer cancel()

			checker := probe.NewHTTPChecker(fmt.Sprintf("http://%s/health", address), pr.timeout)
			result := checker.Check(ctx)
			if result.Healthy {
				pr.pool.ReportSuccess(id)
			} else {
				logger := log.WithComponent("prober")
				logger.Debug().
					Str("replica", address).
					Str("reason", result.Message).
					Msg("probe failed")
				pr.pool.ReportFailure(id, "probe")
			}
		}(r.ID, r.Address)
	}
	wg.Wait()
}
