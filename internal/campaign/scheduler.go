package campaign

import (
	"context"
	"fmt"

	"simsweep/internal/params"
	"simsweep/internal/runner"
)

// SeedSource is the read-only view of the result store the scheduler
// diffs against. The seed history doubles as the existing-run count.
type SeedSource interface {
	Seeds(ctx context.Context, combo params.Combination) ([]int64, error)
}

// ScheduleMissing computes the minimal additional work: for each
// combination, max(0, runs-existing) items at fresh seeds. Seeds are
// allocated per combination, monotonically above every seed already
// recorded, so reruns never collide. Failed runs count as existing.
func ScheduleMissing(ctx context.Context, src SeedSource, combos []params.Combination, runs int) ([]runner.WorkItem, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be >= 1, got %d", runs)
	}

	var items []runner.WorkItem
	for _, combo := range combos {
		existing, err := src.Seeds(ctx, combo)
		if err != nil {
			return nil, err
		}
		needed := runs - len(existing)
		if needed <= 0 {
			continue
		}
		next := nextSeed(existing)
		for i := 0; i < needed; i++ {
			items = append(items, runner.WorkItem{Combination: combo, Seed: next + int64(i)})
		}
	}
	return items, nil
}

// ScheduleForced allocates runs fresh seeds per combination without
// diffing against existing counts.
func ScheduleForced(ctx context.Context, src SeedSource, combos []params.Combination, runs int) ([]runner.WorkItem, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be >= 1, got %d", runs)
	}

	var items []runner.WorkItem
	for _, combo := range combos {
		existing, err := src.Seeds(ctx, combo)
		if err != nil {
			return nil, err
		}
		next := nextSeed(existing)
		for i := 0; i < runs; i++ {
			items = append(items, runner.WorkItem{Combination: combo, Seed: next + int64(i)})
		}
	}
	return items, nil
}

// ScheduleAt pairs every combination with every explicit seed.
func ScheduleAt(combos []params.Combination, seeds []int64) []runner.WorkItem {
	items := make([]runner.WorkItem, 0, len(combos)*len(seeds))
	for _, combo := range combos {
		for _, seed := range seeds {
			items = append(items, runner.WorkItem{Combination: combo, Seed: seed})
		}
	}
	return items
}

// nextSeed returns the smallest seed strictly greater than every
// recorded seed, starting at 0 for an empty history. Input is sorted
// ascending (the store returns it that way).
func nextSeed(existing []int64) int64 {
	if len(existing) == 0 {
		return 0
	}
	return existing[len(existing)-1] + 1
}
