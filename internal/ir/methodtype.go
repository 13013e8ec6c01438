package ir

import (
	"fmt"
	"strings"
)

// MethodType is the externally visible call signature of a handle,
// independent of the erased storage shape of its bound data.
//
// MethodType values are immutable; every method that changes the shape
// returns a new value.
type MethodType struct {
	params []Type
	ret    Type
}

// NewMethodType creates a call signature. Void is rejected as a
// parameter type.
func NewMethodType(ret Type, params ...Type) (MethodType, error) {
	for i, p := range params {
		if p == Void {
			return MethodType{}, NewContractError("method type", fmt.Sprintf("parameter %d cannot be void", i))
		}
	}
	return MethodType{params: append([]Type(nil), params...), ret: ret}, nil
}

// MustMethodType is like NewMethodType but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMethodType(ret Type, params ...Type) MethodType {
	mt, err := NewMethodType(ret, params...)
	if err != nil {
		panic(err)
	}
	return mt
}

// ParseMethodType parses the form produced by String, e.g. "(int32,any)int64".
func ParseMethodType(s string) (MethodType, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return MethodType{}, NewContractError("parse method type", fmt.Sprintf("%q: missing '('", s))
	}
	closing := strings.IndexByte(s, ')')
	if closing < 0 {
		return MethodType{}, NewContractError("parse method type", fmt.Sprintf("%q: missing ')'", s))
	}

	var params []Type
	if inner := strings.TrimSpace(s[1:closing]); inner != "" {
		for _, part := range strings.Split(inner, ",") {
			t, err := ParseType(strings.TrimSpace(part))
			if err != nil {
				return MethodType{}, err
			}
			params = append(params, t)
		}
	}

	ret, err := ParseType(strings.TrimSpace(s[closing+1:]))
	if err != nil {
		return MethodType{}, err
	}
	return NewMethodType(ret, params...)
}

// ParamCount returns the number of parameters.
func (mt MethodType) ParamCount() int {
	return len(mt.params)
}

// Param returns the type of parameter i.
func (mt MethodType) Param(i int) Type {
	return mt.params[i]
}

// Params returns a copy of the parameter types.
func (mt MethodType) Params() []Type {
	return append([]Type(nil), mt.params...)
}

// Return returns the return type.
func (mt MethodType) Return() Type {
	return mt.ret
}

// DropParameter returns the signature with parameter pos removed.
func (mt MethodType) DropParameter(pos int) (MethodType, error) {
	if pos < 0 || pos >= len(mt.params) {
		return MethodType{}, NewContractError("drop parameter", fmt.Sprintf("position %d out of range for %s", pos, mt))
	}
	params := make([]Type, 0, len(mt.params)-1)
	params = append(params, mt.params[:pos]...)
	params = append(params, mt.params[pos+1:]...)
	return MethodType{params: params, ret: mt.ret}, nil
}

// BasicParams returns the erased parameter types.
func (mt MethodType) BasicParams() []BasicType {
	out := make([]BasicType, len(mt.params))
	for i, p := range mt.params {
		out[i] = p.Basic()
	}
	return out
}

// BasicReturn returns the erased return type.
func (mt MethodType) BasicReturn() BasicType {
	return mt.ret.Basic()
}

// BasicSignature renders the erased call shape (see the package-level
// BasicSignature).
func (mt MethodType) BasicSignature() string {
	return BasicSignature(mt.BasicParams(), mt.BasicReturn())
}

// Equal reports whether two signatures are identical.
func (mt MethodType) Equal(other MethodType) bool {
	if mt.ret != other.ret || len(mt.params) != len(other.params) {
		return false
	}
	for i := range mt.params {
		if mt.params[i] != other.params[i] {
			return false
		}
	}
	return true
}

// String renders the signature, e.g. "(int32,any)int64".
func (mt MethodType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range mt.params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(mt.ret.String())
	return b.String()
}
