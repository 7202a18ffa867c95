// Package export reshapes a campaign's sparse, unordered result set
// into dense coordinate-indexed arrays for analysis.
package export

import (
	"fmt"
	"math"
)

// Missing is the marker placed at grid cells with no corresponding run
// record or with an extraction failure.
var Missing = math.NaN()

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Axis is one dimension of a dense array: a parameter name and the
// ordered labels of its coordinates. The trailing run axis is named
// "run" with labels "0".."runs-1".
type Axis struct {
	Name   string
	Labels []string
}

// Array is a dense multi-dimensional array backed by a flat slice with
// row-major stride arithmetic; the last axis varies fastest.
type Array struct {
	axes    []Axis
	strides []int
	data    []float64
}

func newArray(axes []Axis) *Array {
	strides := make([]int, len(axes))
	size := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[i] = size
		size *= len(axes[i].Labels)
	}
	data := make([]float64, size)
	for i := range data {
		data[i] = Missing
	}
	return &Array{axes: axes, strides: strides, data: data}
}

// Axes returns the array's dimensions in order.
func (a *Array) Axes() []Axis {
	out := make([]Axis, len(a.axes))
	copy(out, a.axes)
	return out
}

// Shape returns the length of each axis.
func (a *Array) Shape() []int {
	shape := make([]int, len(a.axes))
	for i, ax := range a.axes {
		shape[i] = len(ax.Labels)
	}
	return shape
}

// Len returns the total number of cells.
func (a *Array) Len() int { return len(a.data) }

func (a *Array) offset(idx []int) (int, error) {
	if len(idx) != len(a.axes) {
		return 0, fmt.Errorf("index has %d coordinates, array has %d axes", len(idx), len(a.axes))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= len(a.axes[i].Labels) {
			return 0, fmt.Errorf("coordinate %d out of range for axis %q (size %d)", v, a.axes[i].Name, len(a.axes[i].Labels))
		}
		off += v * a.strides[i]
	}
	return off, nil
}

// At returns the value at the given coordinates.
func (a *Array) At(idx ...int) (float64, error) {
	off, err := a.offset(idx)
	if err != nil {
		return 0, err
	}
	return a.data[off], nil
}

func (a *Array) set(idx []int, v float64) error {
	off, err := a.offset(idx)
	if err != nil {
		return err
	}
	a.data[off] = v
	return nil
}

// MissingCount returns the number of cells holding the missing marker.
func (a *Array) MissingCount() int {
	n := 0
	for _, v := range a.data {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

// Data returns a copy of the flat backing slice in row-major order.
func (a *Array) Data() []float64 {
	out := make([]float64, len(a.data))
	copy(out, a.data)
	return out
}

// coords expands a flat offset back into per-axis coordinates.
func (a *Array) coords(off int) []int {
	idx := make([]int, len(a.axes))
	for i, stride := range a.strides {
		idx[i] = off / stride
		off %= stride
	}
	return idx
}
