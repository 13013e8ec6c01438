package lform

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/species"
)

// Name is one slot of a form: a parameter when Fn is nil, otherwise an
// expression applying Fn to the names listed in Args.
type Name struct {
	Type ir.BasicType
	Fn   *Function
	Args []int
}

// IsParam reports whether the name is a parameter.
func (n Name) IsParam() bool { return n.Fn == nil }

// Expr builds an expression name.
func Expr(fn Function, args ...int) Name {
	return Name{Type: fn.Type(), Fn: &fn, Args: args}
}

// Form is an immutable pipeline program.
//
// INVARIANTS:
//   - names[0] is the receiver parameter and has type L
//   - parameters precede expressions
//   - expression arguments only reference earlier names
//   - every getter reads the constraint species
//   - result is -1 exactly when the form returns void
type Form struct {
	kind       Kind
	arity      int
	names      []Name
	result     int
	constraint *species.SpeciesData
	key        string
	digest     string

	invocations  atomic.Int64
	compiled     atomic.Pointer[Invoker]
	uncompilable atomic.Bool
	transforms   sync.Map // transformKey -> *Form
}

// New validates and builds a form. params are the parameter basic types,
// receiver first; exprs are appended after them and numbered from
// len(params). A structurally malformed program is an internal error:
// forms are only built by the engine itself.
func New(kind Kind, params []ir.BasicType, exprs []Name, result int, constraint *species.SpeciesData) (*Form, error) {
	f := &Form{
		kind:       kind,
		arity:      len(params),
		result:     result,
		constraint: constraint,
	}
	if !kind.Valid() {
		return nil, malformed(kind, "unknown kind")
	}
	if len(params) == 0 || params[0] != ir.L {
		return nil, malformed(kind, "receiver parameter must be L")
	}

	f.names = make([]Name, 0, len(params)+len(exprs))
	for i, t := range params {
		if !t.IsArg() {
			return nil, malformed(kind, fmt.Sprintf("parameter %d has type %s", i, t))
		}
		f.names = append(f.names, Name{Type: t})
	}
	for _, e := range exprs {
		idx := len(f.names)
		if err := f.checkExpr(idx, e); err != nil {
			return nil, err
		}
		fn := *e.Fn
		f.names = append(f.names, Name{Type: e.Type, Fn: &fn, Args: append([]int(nil), e.Args...)})
	}

	if result < -1 || result >= len(f.names) {
		return nil, malformed(kind, fmt.Sprintf("result %d out of range", result))
	}
	if result >= 0 && f.names[result].Type == ir.V {
		return nil, malformed(kind, "void result must be -1")
	}

	key, err := ir.MarshalCanonical(f.describe())
	if err != nil {
		return nil, ir.NewInternalError("build form", err.Error())
	}
	f.key = string(key)
	f.digest = ir.Digest(ir.DomainForm, key)
	return f, nil
}

func (f *Form) checkExpr(idx int, e Name) error {
	if e.Fn == nil {
		return malformed(f.kind, fmt.Sprintf("name %d: parameter after expression", idx))
	}
	if e.Type != e.Fn.Type() {
		return malformed(f.kind, fmt.Sprintf("name %d: type %s, function produces %s", idx, e.Type, e.Fn.Type()))
	}
	want := e.Fn.ParamTypes()
	if len(e.Args) != len(want) {
		return malformed(f.kind, fmt.Sprintf("name %d: %s takes %d arguments, got %d", idx, e.Fn, len(want), len(e.Args)))
	}
	for j, a := range e.Args {
		if a < 0 || a >= idx {
			return malformed(f.kind, fmt.Sprintf("name %d: argument %d references name %d", idx, j, a))
		}
		if f.names[a].Type != want[j] {
			return malformed(f.kind, fmt.Sprintf("name %d: argument %d is %s, want %s", idx, j, f.names[a].Type, want[j]))
		}
	}
	if e.Fn.Op() == OpGetter {
		if e.Args[0] != 0 {
			return malformed(f.kind, fmt.Sprintf("name %d: getter must read the receiver", idx))
		}
		if e.Fn.Species() != f.constraint {
			return malformed(f.kind, fmt.Sprintf("name %d: getter reads species %q outside the constraint", idx, e.Fn.Species().Key()))
		}
	}
	return nil
}

func malformed(kind Kind, msg string) error {
	return ir.NewInternalError("build form", fmt.Sprintf("%s: %s", kind, msg))
}

func (f *Form) describe() map[string]any {
	params := make([]ir.BasicType, f.arity)
	for i := range params {
		params[i] = f.names[i].Type
	}
	exprs := make([]any, 0, len(f.names)-f.arity)
	for _, n := range f.names[f.arity:] {
		args := make([]any, len(n.Args))
		for j, a := range n.Args {
			args[j] = a
		}
		exprs = append(exprs, map[string]any{"fn": n.Fn.describe(), "args": args})
	}
	return map[string]any{
		"kind":       string(f.kind),
		"params":     ir.KeyOf(params),
		"constraint": f.constraintKey(),
		"exprs":      exprs,
		"result":     f.result,
	}
}

func (f *Form) constraintKey() string {
	if f.constraint == nil {
		return ""
	}
	return f.constraint.Key()
}

// Constraint returns the species backing the receiver, or nil.
// It implements species.Form.
func (f *Form) Constraint() *species.SpeciesData { return f.constraint }

// Kind returns the form's kind tag.
func (f *Form) Kind() Kind { return f.kind }

// Arity returns the number of parameters, receiver included.
func (f *Form) Arity() int { return f.arity }

// Len returns the number of names.
func (f *Form) Len() int { return len(f.names) }

// Name returns name i.
func (f *Form) Name(i int) Name { return f.names[i] }

// Result returns the index of the result name, or -1 for void.
func (f *Form) Result() int { return f.result }

// ExpressionCount returns the number of non-parameter names.
func (f *Form) ExpressionCount() int { return len(f.names) - f.arity }

// ParamTypes returns the parameter basic types, receiver first.
func (f *Form) ParamTypes() []ir.BasicType {
	out := make([]ir.BasicType, f.arity)
	for i := range out {
		out[i] = f.names[i].Type
	}
	return out
}

// ReturnType returns the result basic type.
func (f *Form) ReturnType() ir.BasicType {
	if f.result < 0 {
		return ir.V
	}
	return f.names[f.result].Type
}

// BasicSignature renders the erased call shape, receiver included.
func (f *Form) BasicSignature() string {
	return ir.BasicSignature(f.ParamTypes(), f.ReturnType())
}

// Key returns the canonical structural key.
func (f *Form) Key() string { return f.key }

// Digest returns the domain-separated hash of Key.
func (f *Form) Digest() string { return f.digest }

// ShapeKey renders the part of a unit name that distinguishes forms of
// one kind. Identity and zero forms are named by their return type,
// reinvokers and direct holders by constraint and signature, delegates,
// invokers and call sites by signature alone. Every other form carries a
// digest prefix since its expression sequence is not implied by its
// signature.
func (f *Form) ShapeKey() string {
	switch f.kind {
	case KindIdentity, KindZero:
		return f.ReturnType().String()
	case KindReinvoke, KindDirect:
		return f.constraintKey() + "_" + f.BasicSignature()
	case KindDelegate, KindInvoker, KindCallSite:
		return f.BasicSignature()
	default:
		return f.constraintKey() + "_" + f.BasicSignature() + "_" + f.digest[:12]
	}
}

// Invocations returns how many times Invoke has run the form.
func (f *Form) Invocations() int64 { return f.invocations.Load() }

// Compiled reports whether a compiled unit is installed.
func (f *Form) Compiled() bool { return f.compiled.Load() != nil }

// String renders the program, e.g.
//
//	bound=(a0:L,a1:I)=>{t2:J=getter<LJ:1>(a0);t3:J=invokeBasic<LJI_J>(t2,a1);t3}
func (f *Form) String() string {
	var b strings.Builder
	b.WriteString(string(f.kind))
	b.WriteString("=(")
	for i := 0; i < f.arity; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "a%d:%s", i, f.names[i].Type)
	}
	b.WriteString(")=>{")
	for i := f.arity; i < len(f.names); i++ {
		n := f.names[i]
		fmt.Fprintf(&b, "t%d:%s=%s(", i, n.Type, n.Fn)
		for j, a := range n.Args {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.label(a))
		}
		b.WriteString(");")
	}
	if f.result < 0 {
		b.WriteString("void}")
	} else {
		b.WriteString(f.label(f.result))
		b.WriteByte('}')
	}
	return b.String()
}

func (f *Form) label(i int) string {
	if i < f.arity {
		return fmt.Sprintf("a%d", i)
	}
	return fmt.Sprintf("t%d", i)
}
