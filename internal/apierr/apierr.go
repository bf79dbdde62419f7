// Package apierr gives each failure kind from the error handling
// design a sentinel so callers can classify with errors.Is instead of
// matching on message strings.
package apierr

import "errors"

// Sentinel errors, one per taxonomy kind. Wrap with fmt.Errorf("...: %w", Err*)
// to preserve the kind while adding context.
var (
	// ErrValidation covers malformed requests and unknown languages.
	// Never enqueued; surfaced as a 4xx at the API layer.
	ErrValidation = errors.New("validation error")

	// ErrEnqueue covers a broker that refused a submit at admission time.
	ErrEnqueue = errors.New("enqueue error")

	// ErrNotFound covers an unknown job id.
	ErrNotFound = errors.New("not found")

	// ErrWorkspace covers a failure to materialize source on disk.
	ErrWorkspace = errors.New("workspace error")

	// ErrSandbox covers a runtime that refused to start a container.
	ErrSandbox = errors.New("sandbox error")

	// ErrCompileOrRuntime covers a non-zero exit, or stderr under the
	// treat-stderr-as-failure policy.
	ErrCompileOrRuntime = errors.New("compile or runtime error")

	// ErrTimeout covers a sandbox invocation that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Is reports whether err is (or wraps) target, i.e. a thin re-export of
// errors.Is kept here so call sites only need to import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
