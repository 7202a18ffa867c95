// Package campaign composes the parameter space, scheduler, execution
// engine, and result store behind a single caller-facing facade.
package campaign

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"simsweep/internal/export"
	"simsweep/internal/monitor"
	"simsweep/internal/params"
	"simsweep/internal/program"
	"simsweep/internal/runner"
	"simsweep/internal/store"
)

// DefaultSeedArg is the argument the external program receives its
// seed through unless the campaign configures another.
const DefaultSeedArg = "--RngRun"

// Config binds a campaign to a program and a storage location.
type Config struct {
	ProgramPath string
	ProgramName string
	StorageDir  string
	SeedArg     string             // default DefaultSeedArg
	Workers     int                // parallel runs; default 1
	Timeout     time.Duration      // per-run budget; 0 means none
	Command     runner.CommandFunc // invocation rendering override
	Metrics     *monitor.Metrics
	Progress    runner.Progress // observer for batch progress
}

// Campaign is one (program, fingerprint, storage) binding plus its
// growing result set. Immutable after creation except for the results.
type Campaign struct {
	cfg    Config
	meta   store.Metadata
	store  *store.Store
	runner *runner.Runner
}

// CreateOrLoad validates the program, fingerprints it, probes its
// declared parameters, and opens the result store. Loading an existing
// store with a different program name or fingerprint fails.
func CreateOrLoad(ctx context.Context, cfg Config) (*Campaign, error) {
	if !program.IsValid(cfg.ProgramPath) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProgram, cfg.ProgramPath)
	}
	if cfg.SeedArg == "" {
		cfg.SeedArg = DefaultSeedArg
	}

	fingerprint, err := program.Fingerprint(cfg.ProgramPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting program: %w", err)
	}

	declared, err := program.Parameters(ctx, cfg.ProgramPath)
	if err != nil {
		return nil, err
	}
	if len(declared) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParameters, cfg.ProgramPath)
	}
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	st, err := store.Open(ctx, cfg.StorageDir, store.Metadata{
		ProgramName: cfg.ProgramName,
		Fingerprint: fingerprint,
		Parameters:  names,
		SeedArg:     cfg.SeedArg,
	})
	if err != nil {
		return nil, err
	}

	run := runner.New(runner.Options{
		Program:    cfg.ProgramPath,
		SeedArg:    st.Metadata().SeedArg,
		OutputRoot: filepath.Join(cfg.StorageDir, "runs"),
		Workers:    cfg.Workers,
		Timeout:    cfg.Timeout,
		Command:    cfg.Command,
		Metrics:    cfg.Metrics,
	})

	log.Info().
		Str("program", cfg.ProgramName).
		Str("fingerprint", fingerprint).
		Strs("parameters", names).
		Msg("campaign ready")

	return &Campaign{cfg: cfg, meta: st.Metadata(), store: st, runner: run}, nil
}

// Close releases the runner and the store.
func (c *Campaign) Close() error {
	if err := c.runner.Close(); err != nil {
		return err
	}
	return c.store.Close()
}

// Metadata returns the campaign identity.
func (c *Campaign) Metadata() store.Metadata { return c.meta }

// Combination builds a validated combination over the campaign's
// declared parameter names.
func (c *Campaign) Combination(values map[string]params.Value) (params.Combination, error) {
	return params.NewCombination(c.meta.Parameters, values)
}

// RunMissing executes only the work needed to reach runs records per
// combination. Already-satisfied combinations produce no executions,
// so a repeated call is a no-op. Execution failures are recorded and
// reported through a *BatchError once the batch finishes.
func (c *Campaign) RunMissing(ctx context.Context, combos []params.Combination, runs int) (runner.BatchResult, error) {
	if err := c.validateCombos(combos); err != nil {
		return runner.BatchResult{}, err
	}
	items, err := ScheduleMissing(ctx, c.store, combos, runs)
	if err != nil {
		return runner.BatchResult{}, err
	}
	return c.runBatch(ctx, items)
}

// Run forces execution of the combinations, bypassing the diff. With
// explicit seeds every combination runs once per seed; otherwise runs
// fresh seeds are allocated per combination.
func (c *Campaign) Run(ctx context.Context, combos []params.Combination, seeds []int64, runs int) (runner.BatchResult, error) {
	if err := c.validateCombos(combos); err != nil {
		return runner.BatchResult{}, err
	}
	var items []runner.WorkItem
	if len(seeds) > 0 {
		items = ScheduleAt(combos, seeds)
	} else {
		var err error
		items, err = ScheduleForced(ctx, c.store, combos, runs)
		if err != nil {
			return runner.BatchResult{}, err
		}
	}
	return c.runBatch(ctx, items)
}

// validateCombos rebuilds every combination against the campaign's
// declared parameter names, rejecting unknown or missing ones before
// any execution starts.
func (c *Campaign) validateCombos(combos []params.Combination) error {
	for _, combo := range combos {
		if _, err := params.NewCombination(c.meta.Parameters, combo.ToMap()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Campaign) runBatch(ctx context.Context, items []runner.WorkItem) (runner.BatchResult, error) {
	if len(items) == 0 {
		log.Info().Msg("nothing to run, result set already satisfies the request")
		return runner.BatchResult{}, nil
	}

	log.Info().Int("items", len(items)).Msg("executing batch")
	res, err := c.runner.RunBatch(ctx, items, c.store, c.cfg.Progress)
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, &BatchError{Failed: res.Failed, Total: res.Total}
	}
	return res, nil
}

// Query returns all records matching the partial combination.
func (c *Campaign) Query(ctx context.Context, partial map[string]params.Value) ([]store.RunRecord, error) {
	return c.store.Query(ctx, partial)
}

// Count returns the number of records for an exact combination.
func (c *Campaign) Count(ctx context.Context, combo params.Combination) (int, error) {
	return c.store.Count(ctx, combo)
}

// ExportArray reshapes the result set into a dense array over grid
// plus a trailing run axis of size runs.
func (c *Campaign) ExportArray(ctx context.Context, grid *params.Space, runs int, extract export.Extractor) (*export.Array, error) {
	return export.Export(ctx, c.store, grid, runs, extract)
}
