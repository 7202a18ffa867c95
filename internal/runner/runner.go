// Package runner executes simulation work items as isolated child
// processes under a bounded worker pool, capturing output and
// producing immutable run records.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"simsweep/internal/monitor"
	"simsweep/internal/params"
	"simsweep/internal/store"
)

// WorkItem is one (combination, seed) execution to perform.
type WorkItem struct {
	Combination params.Combination
	Seed        int64
}

// Progress receives (completed, total) after each terminal outcome.
type Progress func(completed, total int)

// Sink receives terminal run records. The store satisfies it.
type Sink interface {
	Append(ctx context.Context, rec *store.RunRecord) error
}

// Options configures a Runner.
type Options struct {
	Program    string        // path to the external executable
	SeedArg    string        // argument name carrying the seed
	OutputRoot string        // per-run output directories are created under here
	Workers    int           // parallel child processes; default 1
	Timeout    time.Duration // per-run budget; 0 means no limit
	Command    CommandFunc   // invocation rendering; DefaultCommand when nil
	Metrics    *monitor.Metrics
	Tracer     *monitor.Tracer
}

// killWaitDelay bounds how long Wait may block on still-open output
// pipes once the run's context is done.
const killWaitDelay = 5 * time.Second

// Runner executes work items with bounded parallelism. Each submitted
// item yields exactly one terminal outcome: a successful record, a
// failure-tagged record, or a cancellation.
type Runner struct {
	opts   Options
	sem    chan struct{} // concurrency limiter
	active atomic.Int64
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New creates a Runner. OutputRoot must be settable; it is created on
// first use.
func New(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Command == nil {
		opts.Command = DefaultCommand
	}
	if opts.Tracer == nil {
		opts.Tracer = monitor.NewTracer()
	}
	return &Runner{
		opts: opts,
		sem:  make(chan struct{}, opts.Workers),
	}
}

// ActiveCount returns the number of currently executing runs.
func (r *Runner) ActiveCount() int64 {
	return r.active.Load()
}

// Close marks the runner closed and waits for in-flight runs to drain.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}

// BatchResult summarizes one batch submission.
type BatchResult struct {
	Total     int
	Completed int // terminal outcomes recorded, failed runs included
	Failed    int // recorded runs tagged as failed
}

// RunBatch executes all items, appending each terminal record to sink
// and reporting progress after every outcome. It blocks until all
// items finish or ctx is canceled; on cancellation in-flight children
// are killed, unstarted items are abandoned, and records appended so
// far remain valid.
func (r *Runner) RunBatch(ctx context.Context, items []WorkItem, sink Sink, progress Progress) (BatchResult, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return BatchResult{}, ErrClosed
	}
	r.mu.Unlock()

	total := len(items)
	if r.opts.Metrics != nil {
		r.opts.Metrics.BatchSize.Observe(float64(total))
	}

	batchCtx, span := r.opts.Tracer.StartSpan(ctx, "batch", monitor.AttrBatchTotal.Int(total))
	defer span.End()

	var (
		mu        sync.Mutex
		completed int
		failed    int
		firstErr  error
	)

	var wg sync.WaitGroup
	for _, item := range items {
		select {
		case r.sem <- struct{}{}:
		case <-batchCtx.Done():
			wg.Wait()
			return BatchResult{Total: total, Completed: completed, Failed: failed}, batchCtx.Err()
		}

		wg.Add(1)
		r.wg.Add(1)
		go func(item WorkItem) {
			defer wg.Done()
			defer r.wg.Done()
			defer func() { <-r.sem }()

			rec, err := r.Execute(batchCtx, item)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			// A run that reached its terminal outcome is persisted even
			// if the batch was canceled in the meantime.
			if appendErr := sink.Append(context.WithoutCancel(batchCtx), rec); appendErr != nil {
				if firstErr == nil {
					firstErr = appendErr
				}
				return
			}
			completed++
			if rec.Failed {
				failed++
			}
			if progress != nil {
				progress(completed, total)
			}
		}(item)
	}

	wg.Wait()

	res := BatchResult{Total: total, Completed: completed, Failed: failed}
	if firstErr != nil {
		return res, firstErr
	}
	if err := batchCtx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// Execute runs one work item to its terminal outcome. Program failures
// (nonzero exit, timeout) are not errors: they yield a failure-tagged
// record. The returned error is reserved for infrastructure problems
// and cancellation, in which case no record is produced.
func (r *Runner) Execute(ctx context.Context, item WorkItem) (*store.RunRecord, error) {
	runID := uuid.New().String()

	logger := log.With().
		Str("run_id", runID).
		Str("combination", item.Combination.String()).
		Int64("seed", item.Seed).
		Logger()

	ctx, span := r.opts.Tracer.StartSpan(ctx, "run",
		monitor.AttrRunID.String(runID),
		monitor.AttrCombination.String(item.Combination.Key()),
		monitor.AttrSeed.Int64(item.Seed),
	)
	defer span.End()

	r.active.Add(1)
	if r.opts.Metrics != nil {
		r.opts.Metrics.ActiveRuns.Inc()
	}
	defer func() {
		r.active.Add(-1)
		if r.opts.Metrics != nil {
			r.opts.Metrics.ActiveRuns.Dec()
		}
	}()

	outDir := filepath.Join(r.opts.OutputRoot, runID)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, &RunError{RunID: runID, Op: "create_output_dir", Err: err}
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if r.opts.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	argv := r.opts.Command(r.opts.Program, item.Combination, r.opts.SeedArg, item.Seed)

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...) // #nosec G204 -- argv rendered from the campaign's validated program and parameters
	cmd.Dir = outDir

	// Simulation drivers routinely fork helpers that inherit the output
	// pipes. Kill the whole process group on timeout or cancellation,
	// and bound Wait with WaitDelay so a straggler holding a pipe cannot
	// hang the worker.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug().Strs("argv", argv).Msg("starting simulation run")
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	rec := &store.RunRecord{
		ID:          runID,
		Combination: item.Combination,
		Seed:        item.Seed,
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		Duration:    duration,
		CreatedAt:   time.Now().UTC(),
	}

	switch {
	case runErr == nil:
		rec.ExitCode = 0

	case execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		logger.Warn().Dur("timeout", r.opts.Timeout).Msg("run timed out, process killed")
		rec.ExitCode = -1
		rec.Failed = true
		rec.FailureKind = store.FailureTimeout

	case ctx.Err() != nil:
		// Caller aborted the batch; the child has been killed and no
		// record is produced for this item.
		logger.Warn().Msg("run canceled")
		return nil, ctx.Err()

	default:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			rec.ExitCode = exitErr.ExitCode()
			rec.Failed = true
			rec.FailureKind = store.FailureExit
			logger.Warn().Int("exit_code", rec.ExitCode).Msg("run exited nonzero")
		} else {
			rec.ExitCode = -1
			rec.Failed = true
			rec.FailureKind = store.FailureSpawn
			rec.Stderr = runErr.Error()
			logger.Error().Err(runErr).Msg("run could not be started")
		}
	}

	files, err := collectOutputFiles(outDir)
	if err != nil {
		return nil, &RunError{RunID: runID, Op: "collect_output_files", Err: err}
	}
	rec.OutputFiles = files

	status := "completed"
	if rec.Failed {
		status = rec.FailureKind
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRun(status, duration.Seconds(), len(rec.Stdout))
	}
	span.SetAttributes(monitor.AttrExitCode.Int(rec.ExitCode))

	logger.Info().
		Int("exit_code", rec.ExitCode).
		Bool("failed", rec.Failed).
		Dur("duration", duration).
		Int("output_files", len(files)).
		Msg("run completed")

	return rec, nil
}

// OutputDir returns the output directory for a run ID.
func (r *Runner) OutputDir(runID string) string {
	return filepath.Join(r.opts.OutputRoot, runID)
}

func collectOutputFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking output dir: %w", err)
	}
	return files, nil
}
