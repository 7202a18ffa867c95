package params

import "testing"

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", Int(42), "42"},
		{"negative int", Int(-7), "-7"},
		{"float", Float(2.5), "2.5"},
		{"float integral", Float(3), "3"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"string", String("ideal"), "ideal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueKinds(t *testing.T) {
	if Int(1).Kind() != KindInt {
		t.Error("Int kind mismatch")
	}
	if Float(1).Kind() != KindFloat {
		t.Error("Float kind mismatch")
	}
	if Bool(true).Kind() != KindBool {
		t.Error("Bool kind mismatch")
	}
	if String("x").Kind() != KindString {
		t.Error("String kind mismatch")
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same int", Int(3), Int(3), true},
		{"different int", Int(3), Int(4), false},
		{"int vs same-number float", Int(10), Float(10), true},
		{"int vs other float", Int(10), Float(10.5), false},
		{"bool vs int", Bool(true), Int(1), false},
		{"string vs int", String("1"), Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValueFloat64(t *testing.T) {
	if f, ok := Int(3).Float64(); !ok || f != 3 {
		t.Errorf("Int(3).Float64() = %v, %v", f, ok)
	}
	if f, ok := Float(1.5).Float64(); !ok || f != 1.5 {
		t.Errorf("Float(1.5).Float64() = %v, %v", f, ok)
	}
	if _, ok := String("x").Float64(); ok {
		t.Error("String Float64 should report false")
	}
	if _, ok := Bool(true).Float64(); ok {
		t.Error("Bool Float64 should report false")
	}
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Value
	}{
		{"int", int(5), Int(5)},
		{"int64", int64(9), Int(9)},
		{"float64", 0.25, Float(0.25)},
		{"bool", true, Bool(true)},
		{"string", "abc", String("abc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.raw)
			if err != nil {
				t.Fatalf("FromAny: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("FromAny(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if _, err := FromAny([]int{1}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
