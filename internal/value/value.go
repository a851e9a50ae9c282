// Package value implements the tagged runtime value used by the VM and the
// trait engine. Integer literals become FLOAT after the load; INT exists
// only as a parse-time kind for the AST, never as a runtime tag produced by
// ordinary arithmetic.
package value

import (
	"fmt"

	"seni/internal/words"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindLong
	KindName
	KindColour
	KindVector
	KindVoid
	KindFnRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindBool:
		return "BOOLEAN"
	case KindLong:
		return "LONG"
	case KindName:
		return "NAME"
	case KindColour:
		return "COLOUR"
	case KindVector:
		return "VECTOR"
	case KindVoid:
		return "VOID"
	case KindFnRef:
		return "FN_REF"
	default:
		return "UNKNOWN"
	}
}

// ColourFormat tags the colour space a COLOUR's four floats are stored in.
type ColourFormat uint8

const (
	RGB ColourFormat = iota
	HSL
	LAB
	HSV
)

// Cell is the handle to a heap-allocated VECTOR list node. It is an index
// into a Heap's arena, never a raw pointer, so VECTOR values stay plain
// data and copyable.
type Cell int32

const NilCell Cell = -1

// Value is the tagged union of every runtime type. COLOUR and 2D values
// (the two dominant compound types) are stored inline in F to avoid heap
// traffic; only VECTOR element cells live on the heap.
//
// 2D values are represented as KindVector with Head == NilCell and the pair
// stored directly in F[0], F[1] — this is the "unboxed 2D pair" of the
// source material; IsPair reports the distinction.
type Value struct {
	Kind   Kind
	F      [4]float64 // COLOUR: 4 channel floats; 2D: F[0],F[1] = x,y
	Format ColourFormat
	Iname  words.Iname
	Long   int64
	Head   Cell // VECTOR: head of the heap list; NilCell for an empty vector or a 2D pair
	Pair   bool // true when this VECTOR-kind value is the unboxed 2D pair
}

func Int(n int64) Value   { return Value{Kind: KindInt, F: [4]float64{float64(n)}} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: [4]float64{f}} }
func Bool(b bool) Value {
	v := Value{Kind: KindBool}
	if b {
		v.F[0] = 1
	}
	return v
}
func Long(n int64) Value { return Value{Kind: KindLong, Long: n} }
func Name(i words.Iname) Value { return Value{Kind: KindName, Iname: i} }
func Void() Value { return Value{Kind: KindVoid} }

// FnRef builds a first-class reference to a top-level function, produced by
// `address-of` and consumed by the indirect CALL_F/CALL_F_0/STORE_F family.
func FnRef(fnIndex int) Value { return Value{Kind: KindFnRef, Long: int64(fnIndex)} }

func (v Value) AsFnIndex() int { return int(v.Long) }

func Colour(format ColourFormat, a, b, c, d float64) Value {
	return Value{Kind: KindColour, Format: format, F: [4]float64{a, b, c, d}}
}

// Pair2D builds the unboxed 2D value produced by SQUISH2.
func Pair2D(x, y float64) Value {
	return Value{Kind: KindVector, Pair: true, Head: NilCell, F: [4]float64{x, y}}
}

// EmptyVector builds the empty vector a non-2D vector literal is loaded as
// (a LOAD CONST) before its elements are APPENDed.
func EmptyVector() Value {
	return Value{Kind: KindVector, Head: NilCell}
}

func (v Value) IsFloat() bool  { return v.Kind == KindFloat }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsVector() bool { return v.Kind == KindVector && !v.Pair }
func (v Value) IsPair() bool   { return v.Kind == KindVector && v.Pair }

func (v Value) AsFloat() float64 {
	return v.F[0]
}

func (v Value) AsBool() bool {
	return v.F[0] != 0
}

func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.F[0] != 0
	case KindVoid:
		return false
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", int64(v.F[0]))
	case KindFloat:
		return fmt.Sprintf("%g", v.F[0])
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindLong:
		return fmt.Sprintf("%d", v.Long)
	case KindName:
		return fmt.Sprintf("iname(%d)", v.Iname)
	case KindColour:
		return fmt.Sprintf("colour(%d; %g,%g,%g,%g)", v.Format, v.F[0], v.F[1], v.F[2], v.F[3])
	case KindVector:
		if v.Pair {
			return fmt.Sprintf("2d(%g,%g)", v.F[0], v.F[1])
		}
		return fmt.Sprintf("vector(head=%d)", v.Head)
	case KindVoid:
		return "void"
	case KindFnRef:
		return fmt.Sprintf("fn_ref(%d)", v.Long)
	default:
		return "?"
	}
}
