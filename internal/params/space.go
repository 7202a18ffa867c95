package params

// Space is an ordered mapping from parameter name to the sequence of
// values it sweeps over. Single-valued parameters are sequences of
// length one.
type Space struct {
	names  []string
	values map[string][]Value
}

// NewSpace returns an empty parameter space.
func NewSpace() *Space {
	return &Space{values: make(map[string][]Value)}
}

// Add appends a parameter axis. Re-adding a name replaces its values
// but keeps its original position.
func (s *Space) Add(name string, values ...Value) *Space {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	vals := make([]Value, len(values))
	copy(vals, values)
	s.values[name] = vals
	return s
}

// Names returns the parameter names in insertion order.
func (s *Space) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Values returns the value sequence for name.
func (s *Space) Values(name string) []Value {
	vals := s.values[name]
	out := make([]Value, len(vals))
	copy(out, vals)
	return out
}

// Varying returns the names whose sequences have more than one value,
// in insertion order. These are the axes of an exported array.
func (s *Space) Varying() []string {
	var out []string
	for _, name := range s.names {
		if len(s.values[name]) > 1 {
			out = append(out, name)
		}
	}
	return out
}

// Size returns the number of combinations Expand produces.
func (s *Space) Size() int {
	if len(s.names) == 0 {
		return 0
	}
	n := 1
	for _, name := range s.names {
		n *= len(s.values[name])
	}
	return n
}

// Expand produces the full cartesian product of the space in a
// deterministic order: the first parameter varies slowest, each
// sequence in its given order. Any empty sequence makes the product
// empty.
func (s *Space) Expand() []Combination {
	if len(s.names) == 0 {
		return nil
	}
	for _, name := range s.names {
		if len(s.values[name]) == 0 {
			return nil
		}
	}

	combos := make([]Combination, 0, s.Size())
	idx := make([]int, len(s.names))
	for {
		assignment := make(map[string]Value, len(s.names))
		for i, name := range s.names {
			assignment[name] = s.values[name][idx[i]]
		}
		// Names come from the space itself, so validation cannot fail.
		combo, _ := NewCombination(s.names, assignment)
		combos = append(combos, combo)

		// Odometer increment, last axis fastest.
		i := len(idx) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(s.values[s.names[i]]) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return combos
		}
	}
}
