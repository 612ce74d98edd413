package pool

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/kingsdgreat/sundial-evaluation-api/pkg/log"
	"github.com/kingsdgreat/sundial-evaluation-api/pkg/metrics"
)

// Traffic classes. Liveness probes get a short budget and no buffering;
// general requests get minutes-scale budgets to accommodate slow downstream
// valuation work.
const (
	classLiveness = "liveness"
	classGeneral  = "general"
)

// ServerConfig holds the externally configurable routing knobs
type ServerConfig struct {
	ListenAddr      string
	LivenessTimeout time.Duration
	GeneralTimeout  time.Duration
	MaxBodyBytes    int64

	// RateLimit caps general-class requests per client IP per minute;
	// 0 disables limiting
	RateLimit int
}

// Server fronts the replica set with a load-balancing reverse proxy plus
// admin endpoints for pool state and metrics.
type Server struct {
	pool       *Pool
	cfg        ServerConfig
	httpServer *http.Server

	livenessTransport http.RoundTripper
	generalTransport  http.RoundTripper
}

// NewServer creates the proxy server over the given pool
func NewServer(p *Pool, cfg ServerConfig) *Server {
	s := &Server{
		pool: p,
		cfg:  cfg,
		livenessTransport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.LivenessTimeout,
			}).DialContext,
			ResponseHeaderTimeout: cfg.LivenessTimeout,
			DisableCompression:    true,
			MaxIdleConnsPerHost:   4,
		},
		generalTransport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: cfg.GeneralTimeout,
			MaxIdleConnsPerHost:   16,
		},
	}

	r := chi.NewRouter()

	// Admin surface
	r.Get("/healthz", s.handlePoolHealth)
	r.Get("/replicas", s.handleReplicas)
	r.Handle("/metrics", metrics.Handler())

	// Liveness class: forwarded with the short budget, unbuffered
	r.Get("/health", s.handleProxy(classLiveness))

	// General class: everything else, buffered with a body ceiling
	general := chi.NewRouter()
	if cfg.RateLimit > 0 {
		general.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}
	general.Handle("/*", s.handleProxy(classGeneral))
	r.Mount("/", general)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  cfg.GeneralTimeout,
		WriteTimeout: cfg.GeneralTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start serves until the context is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	logger := log.WithComponent("pool")
	logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("upstream pool listening")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("pool server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down upstream pool")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleProxy selects a healthy replica and forwards the request to it.
// A routing failure is counted against the replica and surfaced to the
// caller; it never aborts anything cluster-wide.
func (s *Server) handleProxy(class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id, address, err := s.pool.Select()
		if err != nil {
			// All replicas unhealthy: fail fast, never queue
			metrics.PoolRequestsTotal.WithLabelValues(class, "502").Inc()
			http.Error(w, "no healthy replicas", http.StatusBadGateway)
			return
		}

		if class == classGeneral && s.cfg.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}

		target := &url.URL{Scheme: "http", Host: address}
		proxy := httputil.NewSingleHostReverseProxy(target)

		switch class {
		case classLiveness:
			proxy.Transport = s.livenessTransport
			proxy.FlushInterval = -1 // no buffering
		default:
			proxy.Transport = s.generalTransport
		}

		originalDirector := proxy.Director
		proxy.Director = func(req *http.Request) {
			originalDirector(req)
			req.Header.Set("X-Forwarded-For", r.RemoteAddr)
			req.Header.Set("X-Forwarded-Proto", "http")
			req.Header.Set("X-Forwarded-Host", r.Host)
		}

		var failed bool
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			failed = true
			logger := log.WithComponent("pool")

			// An oversized client body trips the ceiling mid-copy. That is
			// a client fault, not a replica fault: answer 413 and leave the
			// replica's failure count alone.
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				logger.Warn().
					Str("class", class).
					Int64("limit", maxBytesErr.Limit).
					Msg("request body exceeds ceiling")
				metrics.PoolRequestsTotal.WithLabelValues(class, "413").Inc()
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			logger.Error().
				Err(err).
				Str("replica", address).
				Str("class", class).
				Msg("proxy error")
			s.pool.ReportFailure(id, "route")
			metrics.PoolRequestsTotal.WithLabelValues(class, "502").Inc()
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		proxy.ServeHTTP(rec, r)

		if !failed {
			// The replica answered; even a downstream 5xx means it is alive
			s.pool.ReportSuccess(id)
			metrics.PoolRequestsTotal.WithLabelValues(class, strconv.Itoa(rec.status)).Inc()
		}
		metrics.PoolRequestDuration.WithLabelValues(class).Observe(time.Since(start).Seconds())
	}
}

// handlePoolHealth reports the pool's own health: degraded when any replica
// is out, unhealthy when none remain
func (s *Server) handlePoolHealth(w http.ResponseWriter, r *http.Request) {
	replicas := s.pool.Snapshot()
	healthy := s.pool.HealthyCount()

	status := "healthy"
	code := http.StatusOK
	switch {
	case healthy == 0:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(replicas):
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   status,
		"healthy":  healthy,
		"replicas": len(replicas),
	})
}

// handleReplicas dumps the current replica records
func (s *Server) handleReplicas(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.pool.Snapshot())
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer, so
// unbuffered flushing on the liveness class still works through the recorder
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
