// Package sandbox builds and runs a single constrained Docker
// container invocation per code execution, capturing its output and
// enforcing resource limits, network isolation, and a wall-clock
// timeout.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/logging"
)

// Limits is the fixed record of resource constraints applied to one
// sandbox invocation (spec.md §4.3).
type Limits struct {
	MemoryMB  int64
	CPUs      float64
	PidsLimit int64
	Timeout   time.Duration
}

// Result is what a sandbox invocation reports back to the worker
// pool for outcome classification (spec.md §4.5).
type Result struct {
	Stdout   string
	Stderr   string
	ExitOk   bool
	TimedOut bool
	Duration time.Duration
}

// Config configures the Driver.
type Config struct {
	// DockerSocket is exported to the docker CLI via DOCKER_HOST.
	DockerSocket string

	// DefaultLimits apply when a call does not specify an override.
	DefaultLimits Limits

	// PackageCache optionally bind-mounts shared, per-language
	// package-manager caches alongside the code volume. Nil disables
	// the feature.
	PackageCache *PackageCacheManager
}

// DefaultConfig returns the defaults named in spec.md §4.3 and §6.
func DefaultConfig() Config {
	return Config{
		DockerSocket: "/var/run/docker.sock",
		DefaultLimits: Limits{
			MemoryMB:  256,
			CPUs:      0.5,
			PidsLimit: 100,
			Timeout:   15 * time.Second,
		},
	}
}

// Driver runs sandboxed container invocations via the `docker` CLI.
type Driver struct {
	cfg Config
}

// New returns a Driver. It does not verify Docker is reachable; the
// lifecycle supervisor is responsible for any startup health check.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// Run spawns a one-shot container that runs command through a shell
// (so `&&` behaves as expected), mounts codeDir read-write at /code,
// applies limits, and disables networking. It enforces limits.Timeout
// as a hard wall-clock deadline: on timeout the container is killed
// and an error wrapping apierr.ErrTimeout is returned.
func (d *Driver) Run(ctx context.Context, image, command, codeDir string, limits Limits) (Result, error) {
	if limits.Timeout <= 0 {
		limits.Timeout = d.cfg.DefaultLimits.Timeout
	}
	if limits.MemoryMB <= 0 {
		limits.MemoryMB = d.cfg.DefaultLimits.MemoryMB
	}
	if limits.CPUs <= 0 {
		limits.CPUs = d.cfg.DefaultLimits.CPUs
	}
	if limits.PidsLimit <= 0 {
		limits.PidsLimit = d.cfg.DefaultLimits.PidsLimit
	}

	containerName := "coderunner-" + uuid.New().String()[:12]

	runCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	args := d.buildArgs(containerName, image, command, codeDir, limits)

	cmd := osexec.CommandContext(runCtx, "docker", args...)
	cmd.Env = append(os.Environ(), "DOCKER_HOST=unix://"+d.cfg.DockerSocket)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: 1024 * 1024}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: 1024 * 1024}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		go d.forceRemove(containerName)
		return result, fmt.Errorf("%w: Timeout after %d seconds", apierr.ErrTimeout, int(limits.Timeout.Seconds()))

	case runErr != nil:
		if _, ok := runErr.(*osexec.ExitError); ok {
			// The sandboxed program exited non-zero; this is a
			// classification concern, not a driver failure.
			return result, nil
		}
		return result, fmt.Errorf("%w: %v", apierr.ErrSandbox, runErr)

	default:
		result.ExitOk = true
		return result, nil
	}
}

func (d *Driver) buildArgs(containerName, image, command, codeDir string, limits Limits) []string {
	args := []string{
		"run", "--rm",
		"--name", containerName,
		"--memory", fmt.Sprintf("%dm", limits.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", limits.MemoryMB),
		"--cpus", fmt.Sprintf("%.2f", limits.CPUs),
		"--pids-limit", fmt.Sprintf("%d", limits.PidsLimit),
		"--network=none",
		"-v", fmt.Sprintf("%s:/code", codeDir),
		"-w", "/code",
	}

	if d.cfg.PackageCache != nil {
		args = append(args, d.cfg.PackageCache.MountArgs(image)...)
	}

	args = append(args, image, "sh", "-c", command)
	return args
}

// forceRemove kills and removes a container that overran its timeout.
// docker run --rm already schedules removal on exit, but a SIGKILLed
// container sometimes needs an explicit `docker rm -f` nudge.
func (d *Driver) forceRemove(containerName string) {
	cmd := osexec.Command("docker", "rm", "-f", containerName)
	cmd.Env = append(os.Environ(), "DOCKER_HOST=unix://"+d.cfg.DockerSocket)
	if err := cmd.Run(); err != nil {
		logging.S().Debugw("sandbox: force-remove container failed (likely already gone)",
			"container", containerName, "error", err)
	}
}

// limitedWriter wraps a writer and silently discards data past limit,
// so a runaway program can never exhaust driver memory.
type limitedWriter struct {
	w       *bytes.Buffer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.limit {
		return len(p), nil
	}
	total := len(p)
	remaining := lw.limit - lw.written
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return n, err
	}
	return total, nil
}

// Probe reports whether the docker CLI can reach a daemon, used by
// the lifecycle supervisor's startup check.
func (d *Driver) Probe(ctx context.Context) error {
	cmd := osexec.CommandContext(ctx, "docker", "info")
	cmd.Env = append(os.Environ(), "DOCKER_HOST=unix://"+d.cfg.DockerSocket)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: docker daemon unreachable: %v", apierr.ErrSandbox, err)
	}
	return nil
}

// ContainerPath joins the fixed in-container workdir with a file's
// base name, since the host artifact directory is always mounted at
// /code regardless of its host-side path.
func ContainerPath(baseName string) string {
	return "/code/" + strings.TrimPrefix(baseName, "/")
}
