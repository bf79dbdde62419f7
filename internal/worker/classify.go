package worker

import (
	"errors"
	"fmt"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/sandbox"
)

// outcome is the result of classifying one sandbox invocation against
// the table in spec.md §4.5.
type outcome struct {
	success bool
	output  string // stdout, when success
	reason  string // failure reason, when not success
}

// classify applies spec.md §4.5's classification table. driverErr is
// whatever the sandbox driver's Run returned alongside result.
func classify(d catalog.Descriptor, result sandbox.Result, driverErr error) outcome {
	if driverErr != nil {
		if errors.Is(driverErr, apierr.ErrTimeout) {
			return outcome{reason: driverErr.Error()}
		}
		// SandboxError: runtime refused to start, or another
		// non-classification failure. Surface driver error plus
		// whatever stderr was captured before it failed.
		reason := driverErr.Error()
		if result.Stderr != "" {
			reason = fmt.Sprintf("%s\n%s", reason, result.Stderr)
		}
		return outcome{reason: reason}
	}

	if !result.ExitOk {
		reason := "process exited non-zero"
		if result.Stderr != "" {
			reason = fmt.Sprintf("%s\n%s", reason, result.Stderr)
		}
		return outcome{reason: reason}
	}

	if result.Stderr == "" {
		return outcome{success: true, output: result.Stdout}
	}

	if !d.TreatStderrAsFailure {
		// stderr is discarded from the transport result but still
		// logged by the caller; success either way.
		return outcome{success: true, output: result.Stdout}
	}

	return outcome{reason: "Execution potentially failed. Stderr:\n" + result.Stderr}
}
