package scans

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates an unknown job ID.
var ErrNotFound = errors.New("scan job not found")

// ErrValidation is the base error for malformed or contradictory requests.
var ErrValidation = errors.New("invalid scan request")

// ErrCancelled marks a job that was stopped by an explicit cancel.
var ErrCancelled = errors.New("scan cancelled")

// ValidationError wraps ErrValidation with a reason so handlers can match
// it with errors.Is while keeping the message.
func ValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// SubprocessError carries the scanner's exit code and the tail of its
// captured output. The scanner's own text is the most actionable diagnostic
// available, so it is surfaced verbatim.
type SubprocessError struct {
	ExitCode int
	Tail     []string
}

func (e *SubprocessError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("scan failed (exit code %d)", e.ExitCode)
	}
	return fmt.Sprintf("scan failed (exit code %d). Last output:\n%s",
		e.ExitCode, strings.Join(e.Tail, "\n"))
}
