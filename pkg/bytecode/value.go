package bytecode

import (
	"math"
	"strconv"
)

// Value is a fixed-size numeric word: an int64 or a float64.
type Value struct {
	IsFloat bool    `cbor:"1,keyasint,omitempty" json:"float,omitempty"`
	I       int64   `cbor:"2,keyasint,omitempty" json:"i,omitempty"`
	F       float64 `cbor:"3,keyasint,omitempty" json:"f,omitempty"`
}

// Int returns an integer word.
func Int(v int64) Value { return Value{I: v} }

// Float returns a float word.
func Float(v float64) Value { return Value{IsFloat: true, F: v} }

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// AsFloat widens the word to float64.
func (v Value) AsFloat() float64 {
	if v.IsFloat {
		return v.F
	}
	return float64(v.I)
}

// Truthy reports whether the word is non-zero.
func (v Value) Truthy() bool {
	if v.IsFloat {
		return v.F != 0
	}
	return v.I != 0
}

// Equal compares numerically, promoting ints to float when the kinds differ.
func (v Value) Equal(o Value) bool {
	if !v.IsFloat && !o.IsFloat {
		return v.I == o.I
	}
	return v.AsFloat() == o.AsFloat()
}

func (v Value) String() string {
	if !v.IsFloat {
		return strconv.FormatInt(v.I, 10)
	}
	if math.IsInf(v.F, 0) || math.IsNaN(v.F) {
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v.F, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' {
			return s
		}
	}
	return s + ".0"
}
