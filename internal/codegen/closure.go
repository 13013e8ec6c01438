package codegen

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/species"
)

// DefaultNameLimit bounds the number of names in a form the closure
// backend will compile.
const DefaultNameLimit = 255

// ClosureBackend compiles a form into a chain of precomputed closures,
// one per expression, specialized on the erased types of the form.
type ClosureBackend struct {
	limit int
}

// NewClosureBackend creates a closure backend. A limit of zero or less
// selects DefaultNameLimit.
func NewClosureBackend(limit int) *ClosureBackend {
	if limit <= 0 {
		limit = DefaultNameLimit
	}
	return &ClosureBackend{limit: limit}
}

// Name implements Backend.
func (b *ClosureBackend) Name() string { return "closure" }

type step struct {
	out  int
	args []int
	run  func(args []any) (any, error)
}

// Generate implements Backend.
func (b *ClosureBackend) Generate(name string, f *lform.Form) (*Unit, error) {
	if f.Len() > b.limit {
		return nil, fmt.Errorf("form has %d names, limit is %d", f.Len(), b.limit)
	}

	steps := make([]step, 0, f.ExpressionCount())
	for i := f.Arity(); i < f.Len(); i++ {
		n := f.Name(i)
		steps = append(steps, step{out: i, args: n.Args, run: specialize(*n.Fn)})
	}

	width, result := f.Len(), f.Result()
	inv := func(args []any) (any, error) {
		if err := f.CheckArgs("invoke unit", args); err != nil {
			return nil, err
		}
		values := make([]any, width)
		copy(values, args)
		var scratch [8]any
		for _, s := range steps {
			in := scratch[:0]
			for _, a := range s.args {
				in = append(in, values[a])
			}
			v, err := s.run(in)
			if err != nil {
				return nil, err
			}
			values[s.out] = v
		}
		if result < 0 {
			return nil, nil
		}
		return values[result], nil
	}

	u := newUnit(b.Name(), name, f)
	u.Invoker = inv
	return u, nil
}

// specialize resolves everything about fn that does not depend on the
// argument values.
func specialize(fn lform.Function) func(args []any) (any, error) {
	switch fn.Op() {
	case lform.OpGetter:
		// Units are shared by every registry using the bridge, so the
		// receiver's layout is matched by key, not by identity.
		s, get := fn.Species(), fn.Species().Getter(fn.Field())
		return func(args []any) (any, error) {
			rec, err := lform.RecordOf(args[0])
			if err != nil {
				return nil, err
			}
			if rs := rec.Species(); rs != s {
				if rs.Key() != s.Key() {
					return nil, mismatchedRecord(s, rec)
				}
				return rs.Getter(fn.Field())(rec), nil
			}
			return get(rec), nil
		}
	case lform.OpIdentity:
		return func(args []any) (any, error) { return args[0], nil }
	case lform.OpZero:
		z := ir.ZeroValue(fn.Type())
		return func([]any) (any, error) { return z, nil }
	default:
		return fn.Apply
	}
}

func mismatchedRecord(want *species.SpeciesData, rec *species.Record) error {
	return &ir.Error{
		Kind:    ir.KindInternal,
		Op:      "invoke unit",
		Key:     want.Key(),
		Message: fmt.Sprintf("receiver record has species %q", rec.Species().Key()),
	}
}
