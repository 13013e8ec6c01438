package lform

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
)

type transformKey struct {
	pos int
	typ ir.BasicType
}

// BindArgument returns the form that behaves like f with visible parameter
// pos (counting from zero after the receiver) replaced by a new last field
// of type t in the receiver's record.
//
// The edit is pure: f is unchanged. Existing getters move to the extended
// species, the removed parameter is replaced by a getter of the new field,
// and later parameters shift down by one. Results are memoized per
// (f, pos, t) in f's transform cache and interned in the catalog.
func (c *Catalog) BindArgument(f *Form, pos int, t ir.BasicType) (*Form, error) {
	p := pos + 1
	if pos < 0 || p >= f.arity {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "bind argument",
			Key:     f.BasicSignature(),
			Message: fmt.Sprintf("position %d out of range for %d parameters", pos, f.arity-1),
		}
	}
	if got := f.names[p].Type; got != t {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "bind argument",
			Key:     f.BasicSignature(),
			Message: fmt.Sprintf("parameter %d is %s, cannot bind %s", pos, got, t),
		}
	}

	tk := transformKey{pos: pos, typ: t}
	if v, ok := f.transforms.Load(tk); ok {
		return v.(*Form), nil
	}

	edited, err := c.bindArgument(f, p, t)
	if err != nil {
		return nil, err
	}
	edited = c.Intern(edited)
	actual, _ := f.transforms.LoadOrStore(tk, edited)
	return actual.(*Form), nil
}

func (c *Catalog) bindArgument(f *Form, p int, t ir.BasicType) (*Form, error) {
	for _, n := range f.names[f.arity:] {
		if n.Fn.Op() == OpGetTarget {
			return nil, ir.NewInternalError("bind argument", fmt.Sprintf("%s form has a delegating receiver", f.kind))
		}
	}

	base := f.constraint
	if base == nil {
		base = c.registry.Top()
	}
	ext, err := base.ExtendWith(t)
	if err != nil {
		return nil, err
	}

	newArity := f.arity - 1
	remap := make([]int, len(f.names))
	for i := range f.names {
		switch {
		case i < p:
			remap[i] = i
		case i == p:
			remap[i] = newArity
		case i < f.arity:
			remap[i] = i - 1
		default:
			remap[i] = i
		}
	}

	params := make([]ir.BasicType, 0, newArity)
	for i := 0; i < f.arity; i++ {
		if i != p {
			params = append(params, f.names[i].Type)
		}
	}

	exprs := make([]Name, 0, f.ExpressionCount()+1)
	exprs = append(exprs, Expr(Getter(ext, ext.FieldCount()-1), 0))
	for _, n := range f.names[f.arity:] {
		fn := *n.Fn
		if fn.Op() == OpGetter {
			fn = Getter(ext, fn.Field())
		}
		args := make([]int, len(n.Args))
		for j, a := range n.Args {
			args[j] = remap[a]
		}
		exprs = append(exprs, Expr(fn, args...))
	}

	result := -1
	if f.result >= 0 {
		result = remap[f.result]
	}
	return New(KindBound, params, exprs, result, ext)
}
