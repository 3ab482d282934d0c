package supervisor

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrJobInProgress = errors.New("job already running")
	ErrCancelled     = errors.New("job cancelled")
	ErrShuttingDown  = errors.New("supervisor is shutting down")
)

// SpawnError means the process could not be started at all.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError is a nonzero exit. Stderr holds the tail of the captured stderr.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}

type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job timed out after %s", e.Timeout)
}
