package campaign

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking.
var (
	ErrInvalidProgram = errors.New("program failed validation")
	ErrNoParameters   = errors.New("program declares no parameters")
)

// BatchError aggregates per-batch execution failures. The failed runs
// are still recorded in the store; the error reports the tally.
type BatchError struct {
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d runs failed", e.Failed, e.Total)
}
