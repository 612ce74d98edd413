package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for the lifecycle tooling. Every knob
// that shapes routing or orchestration behavior lives here rather than in
// code.
type Config struct {
	// Cluster settings
	Cluster ClusterConfig `yaml:"cluster"`

	// Pool settings for the load-balancing proxy
	Pool PoolConfig `yaml:"pool"`

	// Scheduler settings
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Audit log settings
	Audit AuditConfig `yaml:"audit"`

	// Harness settings
	Harness HarnessConfig `yaml:"harness"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// ClusterConfig describes the compose-managed replica cluster the
// orchestrator drives.
type ClusterConfig struct {
	// ProjectDir is the directory holding the compose definition
	ProjectDir string `yaml:"project_dir"`

	// Replicas is the configured replica count
	Replicas int `yaml:"replicas"`

	// BasePort is the host port of the first replica; replica i listens on
	// BasePort+i
	BasePort int `yaml:"base_port"`

	// StopTimeout bounds the teardown step
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// BuildTimeout bounds the rebuild-and-start step
	BuildTimeout time.Duration `yaml:"build_timeout"`

	// ReadyTimeout bounds the post-teardown readiness poll
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// StoreDir is where cycle history is persisted
	StoreDir string `yaml:"store_dir"`
}

// PoolConfig holds upstream pool routing policy.
type PoolConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// MaxFails is the consecutive-failure threshold before a replica is
	// marked unhealthy
	MaxFails int `yaml:"max_fails"`

	// FailTimeout is the rolling window within which MaxFails failures must
	// accumulate
	FailTimeout time.Duration `yaml:"fail_timeout"`

	// ProbeInterval is the active health probe cadence
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// Liveness class: short budgets, no buffering
	LivenessTimeout time.Duration `yaml:"liveness_timeout"`

	// General class: long budgets for slow downstream work
	GeneralTimeout time.Duration `yaml:"general_timeout"`

	// MaxBodyBytes caps buffered request bodies on the general class
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RateLimit is the per-client request ceiling per minute on the general
	// class; 0 disables limiting
	RateLimit int `yaml:"rate_limit"`
}

// SchedulerConfig holds the restart schedule.
type SchedulerConfig struct {
	// Interval between orchestrator invocations
	Interval time.Duration `yaml:"interval"`
}

// AuditConfig holds audit log placement and retention.
type AuditConfig struct {
	Path string `yaml:"path"`

	// MaxGenerations is the number of compressed rotations retained
	MaxGenerations int `yaml:"max_generations"`
}

// HarnessConfig holds validation harness defaults.
type HarnessConfig struct {
	BaseURL string `yaml:"base_url"`

	// Concurrency bounds harness fan-out
	Concurrency int `yaml:"concurrency"`

	// TaskTimeout bounds each per-target request
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			ProjectDir:   ".",
			Replicas:     3,
			BasePort:     8100,
			StopTimeout:  60 * time.Second,
			BuildTimeout: 120 * time.Second,
			ReadyTimeout: 90 * time.Second,
			StoreDir:     "/var/lib/sundial",
		},
		Pool: PoolConfig{
			ListenAddr:      ":8080",
			MaxFails:        3,
			FailTimeout:     30 * time.Second,
			ProbeInterval:   10 * time.Second,
			LivenessTimeout: 2 * time.Second,
			GeneralTimeout:  5 * time.Minute,
			MaxBodyBytes:    10 << 20,
			RateLimit:       30,
		},
		Scheduler: SchedulerConfig{
			Interval: 6 * time.Hour,
		},
		Audit: AuditConfig{
			Path:           "/var/log/sundial/audit.log",
			MaxGenerations: 7,
		},
		Harness: HarnessConfig{
			BaseURL:     "http://127.0.0.1:8080",
			Concurrency: 5,
			TaskTimeout: 2 * time.Minute,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path, falling back to defaults for absent
// fields, then applies SUNDIAL_* environment overrides. An empty path skips
// the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides config fields from the environment
func applyEnv(cfg *Config) {
	if v := os.Getenv("SUNDIAL_PROJECT_DIR"); v != "" {
		cfg.Cluster.ProjectDir = v
	}
	if v := os.Getenv("SUNDIAL_REPLICAS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.Replicas = n
		}
	}
	if v := os.Getenv("SUNDIAL_LISTEN_ADDR"); v != "" {
		cfg.Pool.ListenAddr = v
	}
	if v := os.Getenv("SUNDIAL_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("SUNDIAL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Interval = d
		}
	}
	if v := os.Getenv("SUNDIAL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the configuration for values that would make the control
// loop misbehave rather than fail outright.
func (c *Config) Validate() error {
	if c.Cluster.Replicas < 1 {
		return fmt.Errorf("cluster.replicas must be >= 1, got %d", c.Cluster.Replicas)
	}
	if c.Pool.MaxFails < 1 {
		return fmt.Errorf("pool.max_fails must be >= 1, got %d", c.Pool.MaxFails)
	}
	if c.Pool.FailTimeout <= 0 {
		return fmt.Errorf("pool.fail_timeout must be positive, got %s", c.Pool.FailTimeout)
	}
	if c.Pool.MaxBodyBytes <= 0 {
		return fmt.Errorf("pool.max_body_bytes must be positive, got %d", c.Pool.MaxBodyBytes)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Audit.MaxGenerations < 1 {
		return fmt.Errorf("audit.max_generations must be >= 1, got %d", c.Audit.MaxGenerations)
	}
	if c.Harness.Concurrency < 1 {
		return fmt.Errorf("harness.concurrency must be >= 1, got %d", c.Harness.Concurrency)
	}
	return nil
}

// ReplicaAddresses derives the host-port address list for the configured
// replica count.
func (c *Config) ReplicaAddresses() []string {
	addrs := make([]string, 0, c.Cluster.Replicas)
	for i := 0; i < c.Cluster.Replicas; i++ {
		addrs = append(addrs, fmt.Sprintf("127.0.0.1:%d", c.Cluster.BasePort+i))
	}
	return addrs
}
