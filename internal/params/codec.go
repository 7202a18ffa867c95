package params

import (
	"fmt"
	"strconv"
)

// Encode splits a value into its kind tag and rendered content for
// persistence. Decode reverses it.
func (v Value) Encode() (kind, raw string) {
	return v.kind.String(), v.String()
}

// Decode reconstructs a Value from its persisted kind tag and rendered
// content.
func Decode(kind, raw string) (Value, error) {
	switch kind {
	case "int":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("decoding int value %q: %w", raw, err)
		}
		return Int(i), nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("decoding float value %q: %w", raw, err)
		}
		return Float(f), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("decoding bool value %q: %w", raw, err)
		}
		return Bool(b), nil
	case "string":
		return String(raw), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}
