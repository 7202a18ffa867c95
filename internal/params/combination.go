package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for combination validation.
var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrMissingParameter = errors.New("missing parameter")
)

// Combination is one concrete assignment of values to every declared
// parameter name. It is immutable after construction.
type Combination struct {
	names  []string // declared order
	values map[string]Value
}

// NewCombination validates values against the declared parameter names.
// Every declared name must be assigned and no extra names may appear.
// The declared slice fixes the iteration order.
func NewCombination(declared []string, values map[string]Value) (Combination, error) {
	for name := range values {
		found := false
		for _, d := range declared {
			if d == name {
				found = true
				break
			}
		}
		if !found {
			return Combination{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
	}
	for _, d := range declared {
		if _, ok := values[d]; !ok {
			return Combination{}, fmt.Errorf("%w: %q", ErrMissingParameter, d)
		}
	}

	names := make([]string, len(declared))
	copy(names, declared)
	vals := make(map[string]Value, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return Combination{names: names, values: vals}, nil
}

// Names returns the declared parameter names in order.
func (c Combination) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Get returns the value bound to name.
func (c Combination) Get(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Len returns the number of parameters.
func (c Combination) Len() int { return len(c.names) }

// Key returns the canonical identity of the combination: parameter
// names sorted lexically, rendered as name=value pairs. Two
// combinations over the same values produce the same key regardless of
// declared order.
func (c Combination) Key() string {
	names := make([]string, len(c.names))
	copy(names, c.names)
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.values[name].String())
	}
	return b.String()
}

// String renders the combination in declared order for logs.
func (c Combination) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.values[name].String())
	}
	b.WriteByte('}')
	return b.String()
}

// Matches reports whether every key/value in partial is present in the
// combination. Keys absent from partial are wildcards.
func (c Combination) Matches(partial map[string]Value) bool {
	for name, want := range partial {
		got, ok := c.values[name]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// ToMap returns a copy of the underlying assignment.
func (c Combination) ToMap() map[string]Value {
	out := make(map[string]Value, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
