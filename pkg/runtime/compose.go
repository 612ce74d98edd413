package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runtime abstracts the container-runtime invocations the orchestrator
// drives. The restart state machine depends only on this interface, so the
// underlying mechanism (compose CLI today) can change without touching the
// lifecycle logic.
type Runtime interface {
	// Down tears down all running replicas and releases their ephemeral
	// storage. Destructive: cluster-local volumes are removed.
	Down(ctx context.Context) error

	// Build rebuilds container images from current source.
	Build(ctx context.Context) error

	// Up launches the configured replica set detached.
	Up(ctx context.Context) error

	// Ps lists the names of currently running replicas.
	Ps(ctx context.Context) ([]string, error)

	// Logs samples recent output across the replica set.
	Logs(ctx context.Context, tailLines int) (string, error)
}

// ComposeRuntime drives the replica cluster through the docker compose CLI
type ComposeRuntime struct {
	// ProjectDir is the directory holding the compose definition
	ProjectDir string

	// Bin is the container CLI binary (default "docker")
	Bin string
}

// NewComposeRuntime creates a runtime bound to the given compose project.
// It fails fast if the project directory does not exist, so a missing
// cluster definition aborts before any mutation.
func NewComposeRuntime(projectDir string) (*ComposeRuntime, error) {
	info, err := os.Stat(projectDir)
	if err != nil {
		return nil, fmt.Errorf("compose project dir %s: %w", projectDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("compose project dir %s is not a directory", projectDir)
	}

	return &ComposeRuntime{
		ProjectDir: projectDir,
		Bin:        "docker",
	}, nil
}

// Down stops and removes all containers together with their volumes
func (r *ComposeRuntime) Down(ctx context.Context) error {
	_, err := r.run(ctx, "compose", "down", "-v")
	return err
}

// Build rebuilds images from current source
func (r *ComposeRuntime) Build(ctx context.Context) error {
	_, err := r.run(ctx, "compose", "build")
	return err
}

// Up starts the replica set detached
func (r *ComposeRuntime) Up(ctx context.Context) error {
	_, err := r.run(ctx, "compose", "up", "-d")
	return err
}

// Ps returns the names of running replicas
func (r *ComposeRuntime) Ps(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "compose", "ps", "--services", "--status", "running")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Logs samples the most recent output across the replica set
func (r *ComposeRuntime) Logs(ctx context.Context, tailLines int) (string, error) {
	return r.run(ctx, "compose", "logs", "--no-color", "--tail", fmt.Sprintf("%d", tailLines))
}

// run executes one compose invocation in the project directory
func (r *ComposeRuntime) run(ctx context.Context, args ...string) (string, error) {
	bin := r.Bin
	if bin == "" {
		bin = "docker"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.ProjectDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return string(out), fmt.Errorf("%s %s timed out: %w", bin, strings.Join(args, " "), ctx.Err())
		}
		return string(out), fmt.Errorf("%s %s: %w: %s", bin, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
