package ir

import "fmt"

// BasicType is the erased storage category of a value.
//
// The order is significant: it indexes per-type tables such as the
// species extension cache.
type BasicType uint8

const (
	L BasicType = iota // reference
	I                  // 32-bit int
	J                  // 64-bit int
	F                  // 32-bit float
	D                  // 64-bit float
	V                  // void
)

const (
	// ArgTypeLimit is the number of basic types that can be stored in a
	// field or passed as an argument (all but V).
	ArgTypeLimit = int(V)

	// TypeLimit is the total number of basic types.
	TypeLimit = int(V) + 1
)

const basicChars = "LIJFDV"

// AllBasicTypes lists every basic type in declaration order.
var AllBasicTypes = []BasicType{L, I, J, F, D, V}

// ArgBasicTypes lists the storable basic types in declaration order.
var ArgBasicTypes = []BasicType{L, I, J, F, D}

// Char returns the single-character code of the basic type.
func (t BasicType) Char() byte {
	if int(t) >= TypeLimit {
		return '?'
	}
	return basicChars[t]
}

// String implements fmt.Stringer.
func (t BasicType) String() string {
	return string(t.Char())
}

// IsArg reports whether values of this type can be stored or passed.
func (t BasicType) IsArg() bool {
	return int(t) < ArgTypeLimit
}

// BasicTypeFromChar is the inverse of Char.
func BasicTypeFromChar(c byte) (BasicType, error) {
	for i := 0; i < TypeLimit; i++ {
		if basicChars[i] == c {
			return BasicType(i), nil
		}
	}
	return 0, NewContractError("basic type", fmt.Sprintf("unrecognized basic type code %q", c))
}

// Classify returns the basic type a value erases to.
// Classify is total: values of any unrecognized Go type are references.
func Classify(v any) BasicType {
	return TypeOf(v).Basic()
}

// ZeroValue returns the erased zero value for a basic type.
// V and L both yield nil.
func ZeroValue(t BasicType) any {
	switch t {
	case I:
		return int32(0)
	case J:
		return int64(0)
	case F:
		return float32(0)
	case D:
		return float64(0)
	default:
		return nil
	}
}

// IsErased reports whether v has the Go representation used to store
// basic type t. References accept any value.
func IsErased(t BasicType, v any) bool {
	switch t {
	case L:
		return true
	case I:
		_, ok := v.(int32)
		return ok
	case J:
		_, ok := v.(int64)
		return ok
	case F:
		_, ok := v.(float32)
		return ok
	case D:
		_, ok := v.(float64)
		return ok
	default:
		return v == nil
	}
}

// BasicSignature renders an erased call shape, e.g. "LI_J" for
// (reference, int32) -> int64 and "_V" for () -> void.
func BasicSignature(params []BasicType, ret BasicType) string {
	buf := make([]byte, 0, len(params)+2)
	for _, p := range params {
		buf = append(buf, p.Char())
	}
	buf = append(buf, '_', ret.Char())
	return string(buf)
}
