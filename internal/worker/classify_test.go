package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/sandbox"
)

func TestClassifySuccessWithEmptyStderr(t *testing.T) {
	d := catalog.Descriptor{Tag: "python", TreatStderrAsFailure: false}
	result := sandbox.Result{ExitOk: true, Stdout: "hello\n"}

	out := classify(d, result, nil)

	assert.True(t, out.success)
	assert.Equal(t, "hello\n", out.output)
}

func TestClassifySuccessWithStderrWhenNotTreatedAsFailure(t *testing.T) {
	d := catalog.Descriptor{Tag: "python", TreatStderrAsFailure: false}
	result := sandbox.Result{ExitOk: true, Stdout: "ok\n", Stderr: "DeprecationWarning: ..."}

	out := classify(d, result, nil)

	assert.True(t, out.success)
	assert.Equal(t, "ok\n", out.output)
}

func TestClassifyFailureWithStderrWhenTreatedAsFailure(t *testing.T) {
	d := catalog.Descriptor{Tag: "c", TreatStderrAsFailure: true}
	result := sandbox.Result{ExitOk: true, Stdout: "", Stderr: "warning: unused variable 'x'"}

	out := classify(d, result, nil)

	assert.False(t, out.success)
	assert.Contains(t, out.reason, "unused variable")
}

func TestClassifyNonZeroExitIsFailureRegardlessOfStderrPolicy(t *testing.T) {
	d := catalog.Descriptor{Tag: "python", TreatStderrAsFailure: false}
	result := sandbox.Result{ExitOk: false, Stderr: "Traceback (most recent call last):"}

	out := classify(d, result, nil)

	assert.False(t, out.success)
	assert.Contains(t, out.reason, "Traceback")
}

func TestClassifyTimeoutIsAlwaysFailure(t *testing.T) {
	d := catalog.Descriptor{Tag: "python", TreatStderrAsFailure: false}
	result := sandbox.Result{TimedOut: true}
	driverErr := apierr.ErrTimeout

	out := classify(d, result, driverErr)

	assert.False(t, out.success)
	assert.Contains(t, out.reason, "timeout")
}

func TestClassifySandboxErrorIsFailure(t *testing.T) {
	d := catalog.Descriptor{Tag: "python", TreatStderrAsFailure: false}
	result := sandbox.Result{}
	driverErr := apierr.ErrSandbox

	out := classify(d, result, driverErr)

	assert.False(t, out.success)
	assert.Contains(t, out.reason, "sandbox")
}
