package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrToolUnavailable indicates the relay script or its runtime could not be found.
	ErrToolUnavailable = errors.New("relay tool unavailable")

	// ErrInvocationFailed indicates the relay process exited non-zero.
	ErrInvocationFailed = errors.New("relay invocation failed")

	// ErrMalformedResponse indicates the relay exited cleanly but stdout was not JSON.
	ErrMalformedResponse = errors.New("relay returned malformed response")

	// ErrInvocationTimeout indicates the relay did not finish within the configured timeout.
	ErrInvocationTimeout = errors.New("relay invocation timed out")
)

// InvocationFailedError carries the captured output of a failed relay process.
type InvocationFailedError struct {
	Tool     string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *InvocationFailedError) Error() string {
	return fmt.Sprintf("relay tool %s exited with code %d: %s", e.Tool, e.ExitCode, truncate(e.Stderr, 512))
}

// Is reports whether target is ErrInvocationFailed.
func (e *InvocationFailedError) Is(target error) bool {
	return target == ErrInvocationFailed
}

// MalformedResponseError carries the raw stdout of a relay process that did not emit JSON.
type MalformedResponseError struct {
	Tool string
	Raw  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("relay tool %s returned non-JSON output: %q", e.Tool, truncate(e.Raw, 256))
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
