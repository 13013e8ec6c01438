package lform

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/species"
)

// Invocable is anything a pipeline can call with erased arguments.
type Invocable interface {
	InvokeBasic(args ...any) (any, error)
}

// Receiver is a receiver backed by a bound-argument record.
type Receiver interface {
	BoundRecord() *species.Record
}

// Delegator is a receiver that forwards to another invocable.
type Delegator interface {
	Target() Invocable
}

// Op identifies the operation a Function performs.
type Op uint8

const (
	// OpGetter reads one field of the receiver's bound record.
	OpGetter Op = iota
	// OpInvokeBasic calls its first argument with the rest.
	OpInvokeBasic
	// OpGetTarget reads the target of a delegating receiver.
	OpGetTarget
	// OpIdentity returns its argument.
	OpIdentity
	// OpZero returns the zero value of a basic type.
	OpZero
)

var opNames = [...]string{
	OpGetter:      "getter",
	OpInvokeBasic: "invokeBasic",
	OpGetTarget:   "getTarget",
	OpIdentity:    "identity",
	OpZero:        "zero",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Function is one operation of a pipeline form. Functions are values;
// two functions with the same fields behave identically.
type Function struct {
	op      Op
	species *species.SpeciesData // OpGetter
	field   int                  // OpGetter
	params  []ir.BasicType       // OpInvokeBasic, callee first
	typ     ir.BasicType         // result type
}

// Getter returns the function reading field i of a record of species s.
func Getter(s *species.SpeciesData, i int) Function {
	return Function{op: OpGetter, species: s, field: i, typ: s.FieldType(i)}
}

// InvokeBasic returns the function calling an invocable of the given
// erased signature. params includes the callee itself as a reference.
func InvokeBasic(params []ir.BasicType, ret ir.BasicType) Function {
	return Function{op: OpInvokeBasic, params: append([]ir.BasicType(nil), params...), typ: ret}
}

// GetTarget returns the function reading a delegating receiver's target.
func GetTarget() Function {
	return Function{op: OpGetTarget, typ: ir.L}
}

// IdentityOf returns the identity function on t.
func IdentityOf(t ir.BasicType) Function {
	return Function{op: OpIdentity, typ: t}
}

// ZeroOf returns the constant zero function of t.
func ZeroOf(t ir.BasicType) Function {
	return Function{op: OpZero, typ: t}
}

// Op returns the operation.
func (fn Function) Op() Op { return fn.op }

// Species returns the record species read by a getter.
func (fn Function) Species() *species.SpeciesData { return fn.species }

// Field returns the field index read by a getter.
func (fn Function) Field() int { return fn.field }

// Type returns the basic type the function produces.
func (fn Function) Type() ir.BasicType { return fn.typ }

// ParamTypes returns the basic types the function consumes.
func (fn Function) ParamTypes() []ir.BasicType {
	switch fn.op {
	case OpGetter, OpGetTarget:
		return []ir.BasicType{ir.L}
	case OpInvokeBasic:
		return append([]ir.BasicType(nil), fn.params...)
	case OpIdentity:
		return []ir.BasicType{fn.typ}
	default:
		return nil
	}
}

// Signature renders the erased call shape of an invokeBasic, e.g. "LI_J".
func (fn Function) Signature() string {
	return ir.BasicSignature(fn.ParamTypes(), fn.typ)
}

// String renders the function for keys and listings.
func (fn Function) String() string {
	switch fn.op {
	case OpGetter:
		return fmt.Sprintf("getter<%s:%d>", fn.species.Key(), fn.field)
	case OpInvokeBasic:
		return fmt.Sprintf("invokeBasic<%s>", fn.Signature())
	case OpGetTarget:
		return "getTarget"
	default:
		return fmt.Sprintf("%s<%s>", fn.op, fn.typ)
	}
}

// Apply evaluates the function on already-computed argument values.
func (fn Function) Apply(args []any) (any, error) {
	switch fn.op {
	case OpGetter:
		rec, err := RecordOf(args[0])
		if err != nil {
			return nil, err
		}
		if rec.Species().Key() != fn.species.Key() {
			return nil, &ir.Error{
				Kind:    ir.KindInternal,
				Op:      "apply getter",
				Key:     fn.species.Key(),
				Message: fmt.Sprintf("receiver record has species %q", rec.Species().Key()),
			}
		}
		return rec.Species().Getter(fn.field)(rec), nil

	case OpInvokeBasic:
		callee, ok := args[0].(Invocable)
		if !ok {
			return nil, ir.NewContractError("apply invokeBasic", fmt.Sprintf("callee %T is not invocable", args[0]))
		}
		out, err := callee.InvokeBasic(args[1:]...)
		if err != nil {
			return nil, err
		}
		if !ir.IsErased(fn.typ, out) {
			return nil, ir.NewContractError("apply invokeBasic", fmt.Sprintf("callee returned %T, want %s", out, fn.typ))
		}
		return out, nil

	case OpGetTarget:
		d, ok := args[0].(Delegator)
		if !ok {
			return nil, ir.NewInternalError("apply getTarget", fmt.Sprintf("receiver %T does not delegate", args[0]))
		}
		return d.Target(), nil

	case OpIdentity:
		return args[0], nil

	case OpZero:
		return ir.ZeroValue(fn.typ), nil
	}
	return nil, ir.NewInternalError("apply", fmt.Sprintf("unknown op %s", fn.op))
}

// RecordOf extracts the bound record from a receiver value.
func RecordOf(v any) (*species.Record, error) {
	switch r := v.(type) {
	case *species.Record:
		return r, nil
	case Receiver:
		return r.BoundRecord(), nil
	}
	return nil, ir.NewInternalError("receiver record", fmt.Sprintf("receiver %T holds no bound record", v))
}

// describe returns the canonical description used in form keys.
func (fn Function) describe() map[string]any {
	d := map[string]any{
		"op":   fn.op.String(),
		"type": fn.typ.String(),
	}
	switch fn.op {
	case OpGetter:
		d["species"] = fn.species.Key()
		d["field"] = fn.field
	case OpInvokeBasic:
		d["sig"] = fn.Signature()
	}
	return d
}
