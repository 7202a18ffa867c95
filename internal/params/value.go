// Package params models simulation parameters: typed scalar values,
// validated parameter combinations, and cartesian expansion of a
// parameter space into concrete combinations.
package params

import (
	"fmt"
	"strconv"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged union over the scalar types a simulation parameter
// may take. The zero Value is the integer 0.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the concrete type tag.
func (v Value) Kind() Kind { return v.kind }

// String renders the value the way it is passed to the external program
// and used in canonical combination keys.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Equal reports whether two values are interchangeable: same kind and
// content, or the same number across the int and float kinds. Numeric
// values that compare equal also render to the same canonical key.
func (v Value) Equal(o Value) bool {
	if v == o {
		return true
	}
	vf, vok := v.Float64()
	of, ook := o.Float64()
	return vok && ook && vf == of
}

// Int64 returns the integer content, or false if the value is not an int.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float64 returns the numeric content as a float64. Ints convert; other
// kinds report false.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// FromAny converts a dynamically typed scalar (as produced by YAML or
// JSON decoding) into a Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported parameter value type %T", raw)
	}
}

// MarshalYAML renders the value as its underlying scalar.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindBool:
		return v.b, nil
	default:
		return v.s, nil
	}
}
