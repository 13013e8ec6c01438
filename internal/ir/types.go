package ir

import (
	"fmt"
	"math"
)

// Type is a logical parameter or return type as seen by clients of a
// handle. Each Type erases to one BasicType; reference types of every
// kind collapse to Any.
type Type uint8

const (
	Any Type = iota
	Bool
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int
	Uint
	Int64
	Uint64
	Float32
	Float64
	Void
)

var typeNames = [...]string{
	Any:     "any",
	Bool:    "bool",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int:     "int",
	Uint:    "uint",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Void:    "void",
}

// typeAliases maps alternate spellings accepted by ParseType.
var typeAliases = map[string]Type{
	"byte": Uint8,
	"rune": Int32,
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType parses a type name as rendered by String.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	if t, ok := typeAliases[s]; ok {
		return t, nil
	}
	return 0, NewContractError("parse type", fmt.Sprintf("unknown type %q", s))
}

// Basic returns the basic type this logical type erases to.
func (t Type) Basic() BasicType {
	switch t {
	case Bool, Int8, Uint8, Int16, Uint16, Int32:
		return I
	case Uint32, Int, Uint, Int64, Uint64:
		return J
	case Float32:
		return F
	case Float64:
		return D
	case Void:
		return V
	default:
		return L
	}
}

// TypeOf returns the logical type of a Go value. Values whose dynamic
// type is not a recognized primitive are Any.
func TypeOf(v any) Type {
	switch v.(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int:
		return Int
	case uint:
		return Uint
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		return Any
	}
}

// Widen converts a logical value of type t into its erased storage form.
//
// The value's dynamic type must be exactly t (Any accepts every value).
// A mismatch is a contract violation; nothing is coerced.
func Widen(t Type, v any) (any, error) {
	if t == Any {
		return v, nil
	}
	if t == Void {
		return nil, NewContractError("widen", "void values cannot be stored")
	}
	if got := TypeOf(v); got != t {
		return nil, NewContractError("widen", fmt.Sprintf("value %v of type %T does not match %s", v, v, t))
	}
	switch x := v.(type) {
	case bool:
		if x {
			return int32(1), nil
		}
		return int32(0), nil
	case int8:
		return int32(x), nil
	case uint8:
		return int32(x), nil
	case int16:
		return int32(x), nil
	case uint16:
		return int32(x), nil
	case int32:
		return x, nil
	case uint32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case int64:
		return x, nil
	case uint64:
		return int64(x), nil
	case float32:
		return x, nil
	case float64:
		return x, nil
	}
	return nil, NewInternalError("widen", fmt.Sprintf("no erasure for %s", t))
}

// Narrow restores the logical width of an erased value of type t.
// An erased value of the wrong Go representation is an internal error:
// erased values are only ever produced by Widen or by typed storage.
func Narrow(t Type, e any) (any, error) {
	b := t.Basic()
	if !IsErased(b, e) {
		return nil, NewInternalError("narrow", fmt.Sprintf("erased value %v (%T) is not a %s", e, e, b))
	}
	switch t {
	case Any:
		return e, nil
	case Void:
		return nil, nil
	case Bool:
		return e.(int32)&1 != 0, nil
	case Int8:
		return int8(e.(int32)), nil
	case Uint8:
		return uint8(e.(int32)), nil
	case Int16:
		return int16(e.(int32)), nil
	case Uint16:
		return uint16(e.(int32)), nil
	case Int32:
		return e.(int32), nil
	case Uint32:
		return uint32(e.(int64) & math.MaxUint32), nil
	case Int:
		return int(e.(int64)), nil
	case Uint:
		return uint(e.(int64)), nil
	case Int64:
		return e.(int64), nil
	case Uint64:
		return uint64(e.(int64)), nil
	case Float32:
		return e.(float32), nil
	case Float64:
		return e.(float64), nil
	}
	return nil, NewInternalError("narrow", fmt.Sprintf("unknown type %s", t))
}
