package export

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// CellStats summarizes one grid cell across the run axis.
type CellStats struct {
	Coords  []string // axis labels identifying the cell, in axis order
	Count   int      // non-missing observations
	Mean    float64
	StdDev  float64 // missing marker when fewer than two observations
	Missing int
}

// Summarize reduces the trailing run axis to per-cell statistics.
// Missing slots are skipped; a cell with zero observations reports a
// missing mean.
func Summarize(a *Array) ([]CellStats, error) {
	axes := a.Axes()
	if len(axes) == 0 || axes[len(axes)-1].Name != RunAxisName {
		return nil, fmt.Errorf("array has no trailing %q axis", RunAxisName)
	}
	runs := len(axes[len(axes)-1].Labels)
	cells := a.Len() / runs

	out := make([]CellStats, 0, cells)
	for cell := 0; cell < cells; cell++ {
		base := cell * runs
		obs := make([]float64, 0, runs)
		for slot := 0; slot < runs; slot++ {
			if v := a.data[base+slot]; !IsMissing(v) {
				obs = append(obs, v)
			}
		}

		idx := a.coords(base)
		coords := make([]string, len(axes)-1)
		for i := 0; i < len(axes)-1; i++ {
			coords[i] = axes[i].Labels[idx[i]]
		}

		st := CellStats{Coords: coords, Count: len(obs), Missing: runs - len(obs)}
		if len(obs) > 0 {
			st.Mean = stat.Mean(obs, nil)
		} else {
			st.Mean = Missing
		}
		if len(obs) > 1 {
			st.StdDev = stat.StdDev(obs, nil)
		} else {
			st.StdDev = Missing
		}
		out = append(out, st)
	}
	return out, nil
}
