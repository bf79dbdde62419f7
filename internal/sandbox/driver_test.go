package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoDocker skips the test if Docker is not available, matching
// the pattern used throughout the teacher's execution package tests.
func skipIfNoDocker(t *testing.T) {
	t.Helper()
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("Docker not available, skipping sandbox driver tests")
	}
}

func TestBuildArgsAppliesResourceLimitsAndNetworkIsolation(t *testing.T) {
	d := New(DefaultConfig())

	args := d.buildArgs("coderunner-test", "python:3.12-slim", "python3 /code/a.py", "/tmp/workdir", Limits{
		MemoryMB:  256,
		CPUs:      0.5,
		PidsLimit: 100,
		Timeout:   15 * time.Second,
	})

	assert.Contains(t, args, "--network=none")
	assert.Contains(t, args, "256m")
	assert.Contains(t, args, "0.50")
	assert.Contains(t, args, "100")
	assert.Contains(t, args, "/tmp/workdir:/code")
	assert.Contains(t, args, "python:3.12-slim")

	// The command must be passed through a shell so `&&` behaves.
	last3 := args[len(args)-3:]
	assert.Equal(t, []string{"sh", "-c", "python3 /code/a.py"}, last3)
}

func TestBuildArgsMountsPackageCacheWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PackageCache = NewPackageCacheManager(t.TempDir(), true)
	d := New(cfg)

	args := d.buildArgs("coderunner-test", "python:3.12-slim", "python3 /code/a.py", "/tmp/workdir", cfg.DefaultLimits)

	found := false
	for _, a := range args {
		if a != "" && a[len(a)-3:] == ":ro" {
			found = true
		}
	}
	assert.True(t, found, "expected a read-only cache mount flag")
}

func TestRunReturnsTimeoutErrorOnDeadlineExceeded(t *testing.T) {
	skipIfNoDocker(t)

	d := New(DefaultConfig())

	result, err := d.Run(context.Background(), "python:3.12-slim",
		"python3 -c \"import time; time.sleep(30)\"", t.TempDir(), Limits{
			MemoryMB:  256,
			CPUs:      0.5,
			PidsLimit: 50,
			Timeout:   1 * time.Second,
		})

	require.Error(t, err)
	assert.True(t, result.TimedOut)
}

func TestRunCapturesStdoutOnSuccess(t *testing.T) {
	skipIfNoDocker(t)

	d := New(DefaultConfig())

	result, err := d.Run(context.Background(), "python:3.12-slim",
		"python3 -c \"print('hello')\"", t.TempDir(), DefaultConfig().DefaultLimits)

	require.NoError(t, err)
	assert.True(t, result.ExitOk)
	assert.Equal(t, "hello\n", result.Stdout)
}

func TestRunDisablesNetworkAccess(t *testing.T) {
	skipIfNoDocker(t)

	d := New(DefaultConfig())

	result, err := d.Run(context.Background(), "python:3.12-slim",
		"python3 -c \"import socket; socket.create_connection(('8.8.8.8', 53), timeout=3)\"",
		t.TempDir(), DefaultConfig().DefaultLimits)

	require.NoError(t, err)
	assert.False(t, result.ExitOk, "outbound connection should fail with --network=none")
}
