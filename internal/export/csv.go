package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV flattens the array to long-form CSV: one row per cell with
// the axis labels as leading columns and the value (empty for missing)
// last.
func WriteCSV(w io.Writer, a *Array) error {
	cw := csv.NewWriter(w)

	axes := a.Axes()
	header := make([]string, 0, len(axes)+1)
	for _, ax := range axes {
		header = append(header, ax.Name)
	}
	header = append(header, "value")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	row := make([]string, len(axes)+1)
	for off, v := range a.data {
		idx := a.coords(off)
		for i, ax := range axes {
			row[i] = ax.Labels[idx[i]]
		}
		if IsMissing(v) {
			row[len(axes)] = ""
		} else {
			row[len(axes)] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
