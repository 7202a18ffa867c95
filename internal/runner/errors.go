package runner

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("runner is closed")

// RunError wraps errors with the context of the run that produced them.
type RunError struct {
	RunID string
	Op    string // the operation that failed
	Err   error
}

func (e *RunError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("run %s: %s: %s", e.RunID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
