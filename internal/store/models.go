package store

import (
	"time"

	"simsweep/internal/params"
)

// Failure kinds recorded on failed runs.
const (
	FailureExit    = "exit"    // nonzero exit status
	FailureTimeout = "timeout" // killed after exceeding the run timeout
	FailureSpawn   = "spawn"   // process could not be started
)

// RunRecord is the immutable outcome of one (combination, seed)
// execution. Identity for deduplication is the (combination, seed)
// pair; ID names the per-run output directory.
type RunRecord struct {
	ID          string
	Combination params.Combination
	Seed        int64
	ExitCode    int
	Failed      bool
	FailureKind string // one of the Failure* constants, empty on success
	Stdout      string
	Stderr      string
	Duration    time.Duration
	OutputFiles []string // paths relative to the run's output directory
	CreatedAt   time.Time
}

// Metadata identifies the campaign a store belongs to. A store created
// with one identity refuses to load under another.
type Metadata struct {
	ProgramName string
	Fingerprint string
	Parameters  []string // declared parameter names, in order
	SeedArg     string   // argument used to pass the seed to the program
	CreatedAt   time.Time
}
