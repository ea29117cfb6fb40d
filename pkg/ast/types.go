// Package ast defines the normalized tree: the restricted, validated program
// representation produced by the reducer and consumed by symbol resolution
// and code generation.
package ast

import (
	"fmt"
	"strconv"
)

// Type is a static type annotation.
type Type uint8

const (
	Int Type = iota + 1
	Float
	NoneType // legal only as a function return type
)

// ParseType maps an annotation name to a Type.
func ParseType(name string) (Type, bool) {
	switch name {
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "NoneType", "None":
		return NoneType, true
	}
	return 0, false
}

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case NoneType:
		return "NoneType"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Op identifies a binary, comparison, boolean or unary operator. The names
// follow the generic grammar's operator node names.
type Op uint8

const (
	// Arithmetic
	Add Op = iota + 1
	Sub
	Mult
	Div
	FloorDiv
	Mod
	Pow
	LShift
	RShift
	BitOr
	BitXor
	BitAnd
	MatMult

	// Comparison
	Eq
	NotEq
	Lt
	LtE
	Gt
	GtE

	// Boolean
	And
	Or

	// Unary
	Invert
	Not
	UAdd
	USub
)

var opNames = map[Op]string{
	Add: "Add", Sub: "Sub", Mult: "Mult", Div: "Div", FloorDiv: "FloorDiv",
	Mod: "Mod", Pow: "Pow", LShift: "LShift", RShift: "RShift", BitOr: "BitOr",
	BitXor: "BitXor", BitAnd: "BitAnd", MatMult: "MatMult",
	Eq: "Eq", NotEq: "NotEq", Lt: "Lt", LtE: "LtE", Gt: "Gt", GtE: "GtE",
	And: "And", Or: "Or",
	Invert: "Invert", Not: "Not", UAdd: "UAdd", USub: "USub",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

// ParseOp maps a grammar operator name to an Op.
func ParseOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// IsComparison reports whether o is one of the six orderings.
func (o Op) IsComparison() bool { return o >= Eq && o <= GtE }

// IsBoolean reports whether o is And or Or.
func (o Op) IsBoolean() bool { return o == And || o == Or }

// IsUnary reports whether o is a unary operator.
func (o Op) IsUnary() bool { return o >= Invert && o <= USub }

// Number is a numeric literal: exactly one of an int64 or a float64.
type Number struct {
	IsFloat bool
	I       int64
	F       float64
}

// IntNumber returns an integer literal.
func IntNumber(v int64) Number { return Number{I: v} }

// FloatNumber returns a float literal.
func FloatNumber(v float64) Number { return Number{IsFloat: true, F: v} }

// Type returns Int or Float.
func (n Number) Type() Type {
	if n.IsFloat {
		return Float
	}
	return Int
}

func (n Number) String() string {
	if n.IsFloat {
		return strconv.FormatFloat(n.F, 'g', -1, 64)
	}
	return strconv.FormatInt(n.I, 10)
}
