// Package value implements coledb's tagged-union runtime value and its
// total order, equality, and hashing rules (spec §3).
package value

import (
	"fmt"
	"math"
)

// Kind tags the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindFloat
	KindInteger
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindFloat:
		return "float"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is coledb's runtime value: Null, Bool, Integer (int64), Float
// (float64), or String. Exactly one of the typed fields is meaningful,
// selected by Kind; this mirrors the Rust source's tagged enum without
// needing an interface{} box per value.
type Value struct {
	Kind Kind
	Bool bool
	I    int64
	F    float64
	S    string
}

func Null() Value           { return Value{Kind: KindNull} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Integer(i int64) Value { return Value{Kind: KindInteger, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func String(s string) Value { return Value{Kind: KindString, S: s} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Datatype reports the column type this value would satisfy, or false
// for Null (which satisfies any nullable column).
func (v Value) Datatype() (ColumnType, bool) {
	switch v.Kind {
	case KindBool:
		return TypeBool, true
	case KindFloat:
		return TypeFloat, true
	case KindInteger:
		return TypeInteger, true
	case KindString:
		return TypeString, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindInteger:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%v", v.F)
	case KindString:
		return v.S
	default:
		return "?"
	}
}

// asFloat widens Integer to Float; used for cross-numeric comparison.
func (v Value) asFloat() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}

// Equal implements `=` semantics including Integer/Float widening. It
// does not itself propagate Null — callers evaluating SQL `=` handle
// that by checking IsNull before calling Equal.
func (v Value) Equal(other Value) bool {
	if v.Kind == KindNull || other.Kind == KindNull {
		return false
	}
	if (v.Kind == KindInteger || v.Kind == KindFloat) && (other.Kind == KindInteger || other.Kind == KindFloat) {
		a, _ := v.asFloat()
		b, _ := other.asFloat()
		return a == b
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindString:
		return v.S == other.S
	default:
		return false
	}
}

// IdenticalEqual is `==` on the tagged representation itself: used for
// hashing/index-key identity, where two NaN floats compare equal (their
// bit patterns are identical) even though SQL `=` would say otherwise.
func (v Value) IdenticalEqual(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInteger:
		return v.I == other.I
	case KindFloat:
		return math.Float64bits(v.F) == math.Float64bits(other.F)
	case KindString:
		return v.S == other.S
	default:
		return false
	}
}

// HashKey returns a comparable Go value suitable as a map key, such that
// two Values that are IdenticalEqual produce the same HashKey. Floats
// hash by bit pattern so NaN hashes to itself.
func (v Value) HashKey() any {
	switch v.Kind {
	case KindNull:
		return struct{ k Kind }{KindNull}
	case KindBool:
		return struct {
			k Kind
			b bool
		}{KindBool, v.Bool}
	case KindInteger:
		return struct {
			k Kind
			i int64
		}{KindInteger, v.I}
	case KindFloat:
		return struct {
			k Kind
			bits uint64
		}{KindFloat, math.Float64bits(v.F)}
	case KindString:
		return struct {
			k Kind
			s string
		}{KindString, v.S}
	default:
		return nil
	}
}

// Compare returns -1, 0, or 1 per the total order of §3: Null < anything;
// within a type the natural order; across Integer/Float, numeric value
// after widening; across unrelated types, Kind order.
func Compare(a, b Value) int {
	if a.Kind == KindNull && b.Kind == KindNull {
		return 0
	}
	if a.Kind == KindNull {
		return -1
	}
	if b.Kind == KindNull {
		return 1
	}
	if (a.Kind == KindInteger || a.Kind == KindFloat) && (b.Kind == KindInteger || b.Kind == KindFloat) {
		af, _ := a.asFloat()
		bf, _ := b.asFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case KindString:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b under Compare.
func Less(a, b Value) bool { return Compare(a, b) < 0 }
