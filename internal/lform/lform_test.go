package lform

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/species"
)

// funcTarget adapts a plain function to Invocable.
type funcTarget func(args ...any) (any, error)

func (f funcTarget) InvokeBasic(args ...any) (any, error) { return f(args...) }

var sum2 = funcTarget(func(args ...any) (any, error) {
	return args[0].(int64) + args[1].(int64), nil
})

// countingCompiler compiles by wrapping Interpret and counts requests.
type countingCompiler struct {
	calls atomic.Int64
}

func (c *countingCompiler) Compile(f *Form) (Invoker, error) {
	c.calls.Add(1)
	return f.Interpret, nil
}

// refusingCompiler rejects every form the way an exhausted backend does.
type refusingCompiler struct {
	calls atomic.Int64
}

func (c *refusingCompiler) Compile(f *Form) (Invoker, error) {
	c.calls.Add(1)
	return nil, ir.NewBackendError("compile", f.Key(), errors.New("form too large"))
}

func newCatalog() *Catalog {
	return NewCatalog(species.NewRegistry())
}

func directRecord(t *testing.T, c *Catalog, mt ir.MethodType, target Invocable) (*Form, *species.Record) {
	t.Helper()
	f, err := c.Direct(mt)
	require.NoError(t, err)
	l, err := c.Registry().Find("L")
	require.NoError(t, err)
	rec, err := l.Factory()(mt, f, target)
	require.NoError(t, err)
	return f, rec
}

func TestCatalog_BasicFormsAreMemoized(t *testing.T) {
	c := newCatalog()

	for _, bt := range ir.AllBasicTypes {
		z1, err := c.Zero(bt)
		require.NoError(t, err)
		z2, err := c.Zero(bt)
		require.NoError(t, err)
		assert.Same(t, z1, z2, "zero %s", bt)

		id1, err := c.Identity(bt)
		require.NoError(t, err)
		id2, err := c.Identity(bt)
		require.NoError(t, err)
		assert.Same(t, id1, id2, "identity %s", bt)
	}

	idV, err := c.Identity(ir.V)
	require.NoError(t, err)
	zV, err := c.Zero(ir.V)
	require.NoError(t, err)
	assert.Same(t, zV, idV)
	assert.Equal(t, -1, zV.Result())
}

func TestCatalog_BasicFormsInterpret(t *testing.T) {
	c := newCatalog()

	for _, bt := range ir.ArgBasicTypes {
		z, err := c.Zero(bt)
		require.NoError(t, err)
		got, err := z.Interpret([]any{nil})
		require.NoError(t, err)
		assert.Equal(t, ir.ZeroValue(bt), got)
	}

	id, err := c.Identity(ir.D)
	require.NoError(t, err)
	got, err := id.Interpret([]any{nil, 2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	zV, err := c.Zero(ir.V)
	require.NoError(t, err)
	got, err = zV.Interpret([]any{nil})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShapeKeys(t *testing.T) {
	c := newCatalog()
	mt := ir.MustMethodType(ir.Int64, ir.Int32)

	id, err := c.Identity(ir.I)
	require.NoError(t, err)
	assert.Equal(t, "I", id.ShapeKey())

	re, err := c.Reinvoker(mt)
	require.NoError(t, err)
	assert.Equal(t, "L_LI_J", re.ShapeKey())

	del, err := c.Delegate(mt)
	require.NoError(t, err)
	assert.Equal(t, "LI_J", del.ShapeKey())

	bound, err := c.BindArgument(re, 0, ir.I)
	require.NoError(t, err)
	assert.Equal(t, "LI_L_J_"+bound.Digest()[:12], bound.ShapeKey())
}

func TestFormString(t *testing.T) {
	c := newCatalog()
	re, err := c.Reinvoker(ir.MustMethodType(ir.Int64, ir.Int32))
	require.NoError(t, err)

	assert.Equal(t,
		"reinvoke=(a0:L,a1:I)=>{t2:L=getter<L:0>(a0);t3:J=invokeBasic<LI_J>(t2,a1);t3}",
		re.String())
}

func TestReinvokerAndDirectDifferOnlyByKind(t *testing.T) {
	c := newCatalog()
	mt := ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64)

	re, err := c.Reinvoker(mt)
	require.NoError(t, err)
	dir, err := c.Direct(mt)
	require.NoError(t, err)

	assert.NotSame(t, re, dir)
	assert.NotEqual(t, re.Key(), dir.Key())
	assert.Equal(t, re.BasicSignature(), dir.BasicSignature())
}

func TestInvokerForm_CallsItsFirstArgument(t *testing.T) {
	c := newCatalog()
	mt := ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64)
	f, err := c.Invoker(mt)
	require.NoError(t, err)
	again, err := c.Invoker(mt)
	require.NoError(t, err)
	assert.Same(t, f, again)

	assert.Equal(t, KindInvoker, f.Kind())
	assert.Equal(t, "LLJJ_J", f.ShapeKey())
	assert.Nil(t, f.Constraint())

	got, err := f.Interpret([]any{nil, sum2, int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	_, err = f.Interpret([]any{nil, "x", int64(2), int64(3)})
	assert.True(t, ir.IsContractError(err))
}

func TestCallSiteForm_NamedApartFromDelegate(t *testing.T) {
	c := newCatalog()
	mt := ir.MustMethodType(ir.Any, ir.Any)
	cs, err := c.CallSite(mt)
	require.NoError(t, err)
	d, err := c.Delegate(mt)
	require.NoError(t, err)

	assert.NotSame(t, cs, d)
	assert.NotEqual(t, cs.Key(), d.Key())
	assert.Equal(t, d.ShapeKey(), cs.ShapeKey())
	assert.Equal(t, KindCallSite, cs.Kind())
}

func TestDirectForm_CallsBoundTarget(t *testing.T) {
	c := newCatalog()
	f, rec := directRecord(t, c, ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64), sum2)

	got, err := f.Interpret([]any{rec, int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestBindArgument_ReplacesParameterWithField(t *testing.T) {
	c := newCatalog()
	mt := ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64)
	f, rec := directRecord(t, c, mt, sum2)

	bound, err := c.BindArgument(f, 0, ir.J)
	require.NoError(t, err)

	assert.Equal(t, KindBound, bound.Kind())
	assert.Equal(t, "LJ", bound.Constraint().Key())
	assert.Equal(t, 2, bound.Arity())
	assert.Equal(t, f.ExpressionCount()+1, bound.ExpressionCount())
	assert.Equal(t, "LJ_J", bound.BasicSignature())

	mt2, err := mt.DropParameter(0)
	require.NoError(t, err)
	rec2, err := rec.CopyWithExtend(mt2, bound, ir.J, int64(40))
	require.NoError(t, err)

	got, err := bound.Interpret([]any{rec2, int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	// f itself is untouched.
	got, err = f.Interpret([]any{rec, int64(1), int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestBindArgument_RenumbersLaterParameters(t *testing.T) {
	c := newCatalog()
	sub := funcTarget(func(args ...any) (any, error) {
		return args[0].(int64) - args[1].(int64), nil
	})
	mt := ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64)
	f, rec := directRecord(t, c, mt, sub)

	// Bind the second operand, leaving the first as the only parameter.
	bound, err := c.BindArgument(f, 1, ir.J)
	require.NoError(t, err)

	mt2, err := mt.DropParameter(1)
	require.NoError(t, err)
	rec2, err := rec.CopyWithExtend(mt2, bound, ir.J, int64(10))
	require.NoError(t, err)

	got, err := bound.Interpret([]any{rec2, int64(50)})
	require.NoError(t, err)
	assert.Equal(t, int64(40), got)
}

func TestBindArgument_TransformCache(t *testing.T) {
	c := newCatalog()
	f, err := c.Direct(ir.MustMethodType(ir.Any, ir.Any, ir.Int32))
	require.NoError(t, err)

	a, err := c.BindArgument(f, 1, ir.I)
	require.NoError(t, err)
	b, err := c.BindArgument(f, 1, ir.I)
	require.NoError(t, err)
	assert.Same(t, a, b)

	got, ok := c.Lookup(a.Key())
	require.True(t, ok)
	assert.Same(t, a, got, "edited forms are interned")
}

func TestBindArgument_ContractViolations(t *testing.T) {
	c := newCatalog()
	f, err := c.Direct(ir.MustMethodType(ir.Any, ir.Int32))
	require.NoError(t, err)

	_, err = c.BindArgument(f, 0, ir.J)
	assert.True(t, ir.IsContractError(err), "type mismatch")

	_, err = c.BindArgument(f, 1, ir.I)
	assert.True(t, ir.IsContractError(err), "position past the end")

	_, err = c.BindArgument(f, -1, ir.I)
	assert.True(t, ir.IsContractError(err), "negative position")
}

func TestBindArgument_RejectsDelegateForms(t *testing.T) {
	c := newCatalog()
	del, err := c.Delegate(ir.MustMethodType(ir.Any, ir.Any))
	require.NoError(t, err)

	_, err = c.BindArgument(del, 0, ir.L)
	assert.True(t, ir.IsInternalError(err))
}

func TestBindArgument_OnIdentity(t *testing.T) {
	c := newCatalog()
	id, err := c.Identity(ir.I)
	require.NoError(t, err)

	bound, err := c.BindArgument(id, 0, ir.I)
	require.NoError(t, err)
	assert.Equal(t, "I", bound.Constraint().Key())

	i, err := c.Registry().Find("I")
	require.NoError(t, err)
	rec, err := i.Factory()(ir.MustMethodType(ir.Int32), bound, int32(7))
	require.NoError(t, err)

	got, err := bound.Interpret([]any{rec})
	require.NoError(t, err)
	assert.Equal(t, int32(7), got)
}

func TestNew_RejectsMalformedPrograms(t *testing.T) {
	r := species.NewRegistry()
	l, err := r.Find("L")
	require.NoError(t, err)

	tests := []struct {
		name       string
		params     []ir.BasicType
		exprs      []Name
		result     int
		constraint *species.SpeciesData
	}{
		{"no receiver", nil, nil, -1, nil},
		{"non-reference receiver", []ir.BasicType{ir.I}, nil, 0, nil},
		{"void parameter", []ir.BasicType{ir.L, ir.V}, nil, 0, nil},
		{"forward reference", []ir.BasicType{ir.L}, []Name{Expr(IdentityOf(ir.L), 1)}, 1, nil},
		{"argument type mismatch", []ir.BasicType{ir.L, ir.I}, []Name{Expr(IdentityOf(ir.J), 1)}, 2, nil},
		{"getter outside constraint", []ir.BasicType{ir.L}, []Name{Expr(Getter(l, 0), 0)}, 1, nil},
		{"getter not on receiver", []ir.BasicType{ir.L, ir.L}, []Name{Expr(Getter(l, 0), 1)}, 2, l},
		{"result out of range", []ir.BasicType{ir.L}, nil, 3, nil},
		{"void result index", []ir.BasicType{ir.L}, []Name{Expr(ZeroOf(ir.V))}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(KindInvoke, tt.params, tt.exprs, tt.result, tt.constraint)
			require.Error(t, err)
			assert.True(t, ir.IsInternalError(err))
		})
	}
}

func TestNew_StructuralIdentity(t *testing.T) {
	build := func() *Form {
		f, err := New(KindInvoke, []ir.BasicType{ir.L, ir.J}, []Name{Expr(IdentityOf(ir.J), 1)}, 2, nil)
		require.NoError(t, err)
		return f
	}
	a, b := build(), build()

	assert.NotSame(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 64)

	c := newCatalog()
	assert.Same(t, a, c.Intern(a))
	assert.Same(t, a, c.Intern(b))
	assert.Equal(t, 1, c.Len())

	got, ok := c.Lookup(a.Key())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestGetter_RejectsForeignRecord(t *testing.T) {
	c := newCatalog()
	f, _ := directRecord(t, c, ir.MustMethodType(ir.Int64, ir.Int64, ir.Int64), sum2)

	i, err := c.Registry().Find("I")
	require.NoError(t, err)
	id, err := c.Identity(ir.I)
	require.NoError(t, err)
	bound, err := c.BindArgument(id, 0, ir.I)
	require.NoError(t, err)
	foreign, err := i.Factory()(ir.MustMethodType(ir.Int32), bound, int32(1))
	require.NoError(t, err)

	_, err = f.Interpret([]any{foreign, int64(1), int64(2)})
	assert.True(t, ir.IsInternalError(err))
}

func TestInterpret_ArityMismatch(t *testing.T) {
	c := newCatalog()
	id, err := c.Identity(ir.L)
	require.NoError(t, err)

	_, err = id.Interpret([]any{nil})
	assert.True(t, ir.IsContractError(err))
}

func TestInvoke_CompilesAfterThreshold(t *testing.T) {
	c := newCatalog()
	id, err := c.Identity(ir.J)
	require.NoError(t, err)
	comp := &countingCompiler{}

	for i := 0; i < 2; i++ {
		got, err := id.Invoke(comp, 2, []any{nil, int64(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}
	assert.False(t, id.Compiled())
	assert.Equal(t, int64(0), comp.calls.Load())

	for i := 0; i < 5; i++ {
		_, err := id.Invoke(comp, 2, []any{nil, int64(i)})
		require.NoError(t, err)
	}
	assert.True(t, id.Compiled())
	assert.Equal(t, int64(1), comp.calls.Load())
	assert.Equal(t, int64(3), id.Invocations(), "compiled calls bypass the counter")
}

func TestInvoke_NegativeThresholdNeverCompiles(t *testing.T) {
	c := newCatalog()
	z, err := c.Zero(ir.F)
	require.NoError(t, err)
	comp := &countingCompiler{}

	for i := 0; i < 10; i++ {
		_, err := z.Invoke(comp, -1, []any{nil})
		require.NoError(t, err)
	}
	assert.False(t, z.Compiled())
	assert.Equal(t, int64(0), comp.calls.Load())
}

func TestInvoke_BackendRefusalFallsBackToInterpretation(t *testing.T) {
	c := newCatalog()
	id, err := c.Identity(ir.J)
	require.NoError(t, err)
	comp := &refusingCompiler{}

	for i := 0; i < 3; i++ {
		got, err := id.Invoke(comp, 0, []any{nil, int64(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}
	assert.True(t, id.Uncompilable())
	assert.False(t, id.Compiled())
	assert.Equal(t, int64(1), comp.calls.Load(), "a refused form is not offered again")
}

func TestInvoke_RejectsMistypedArguments(t *testing.T) {
	c := newCatalog()
	id, err := c.Identity(ir.I)
	require.NoError(t, err)
	comp := &countingCompiler{}

	_, err = id.Invoke(comp, 0, []any{nil, int64(1)})
	assert.True(t, ir.IsContractError(err))
	_, err = id.Interpret([]any{nil, "1"})
	assert.True(t, ir.IsContractError(err))
	assert.Equal(t, int64(0), comp.calls.Load())
}

func TestInvokeBasic_RejectsMistypedTargetResult(t *testing.T) {
	c := newCatalog()
	bad := funcTarget(func(args ...any) (any, error) { return "not an int", nil })
	f, rec := directRecord(t, c, ir.MustMethodType(ir.Int32), bad)

	_, err := f.Interpret([]any{rec})
	assert.True(t, ir.IsContractError(err))
}
