package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"simsweep/internal/params"
	"simsweep/internal/store"
)

// ErrEmptyGrid is returned when the grid has no parameters.
var ErrEmptyGrid = errors.New("export grid is empty")

// Extractor maps a run record to a scalar. Returning an error marks
// the record's cell missing without aborting the export; whether a
// failed run still yields a value is the extractor's decision.
type Extractor func(rec store.RunRecord) (float64, error)

// Source is the read side of the result store the exporter consumes.
type Source interface {
	Query(ctx context.Context, partial map[string]params.Value) ([]store.RunRecord, error)
}

// RunAxisName names the trailing run-index axis.
const RunAxisName = "run"

// Export builds a dense array over grid's varying parameters plus a
// trailing run axis of size runs. For each grid cell it takes up to
// runs matching records ordered by seed ascending and applies extract
// to each; unfilled slots and extraction failures hold the missing
// marker.
func Export(ctx context.Context, src Source, grid *params.Space, runs int, extract Extractor) (*Array, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be >= 1, got %d", runs)
	}
	names := grid.Names()
	if len(names) == 0 {
		return nil, ErrEmptyGrid
	}

	varying := grid.Varying()
	fixed := make(map[string]params.Value)
	for _, name := range names {
		vals := grid.Values(name)
		if len(vals) == 0 {
			return nil, fmt.Errorf("grid parameter %q has no values", name)
		}
		if len(vals) == 1 {
			fixed[name] = vals[0]
		}
	}

	axes := make([]Axis, 0, len(varying)+1)
	for _, name := range varying {
		vals := grid.Values(name)
		labels := make([]string, len(vals))
		for i, v := range vals {
			labels[i] = v.String()
		}
		axes = append(axes, Axis{Name: name, Labels: labels})
	}
	runLabels := make([]string, runs)
	for i := range runLabels {
		runLabels[i] = strconv.Itoa(i)
	}
	axes = append(axes, Axis{Name: RunAxisName, Labels: runLabels})

	arr := newArray(axes)

	// Walk every varying-coordinate tuple; the run axis is filled from
	// the cell's records.
	idx := make([]int, len(varying))
	for {
		partial := make(map[string]params.Value, len(fixed)+len(varying))
		for k, v := range fixed {
			partial[k] = v
		}
		for i, name := range varying {
			partial[name] = grid.Values(name)[idx[i]]
		}

		recs, err := src.Query(ctx, partial)
		if err != nil {
			return nil, fmt.Errorf("querying cell %v: %w", partial, err)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Seed < recs[j].Seed })
		if len(recs) > runs {
			recs = recs[:runs]
		}

		cell := make([]int, len(varying)+1)
		copy(cell, idx)
		for slot, rec := range recs {
			cell[len(varying)] = slot
			v, err := extract(rec)
			if err != nil {
				log.Debug().Str("run_id", rec.ID).Err(err).Msg("extraction failed, cell marked missing")
				continue // cell already holds the missing marker
			}
			if err := arr.set(cell, v); err != nil {
				return nil, err
			}
		}

		// Odometer over varying axes, last fastest.
		if len(varying) == 0 {
			break
		}
		i := len(idx) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(grid.Values(varying[i])) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}

	return arr, nil
}
