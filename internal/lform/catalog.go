package lform

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/species"
)

// Catalog interns forms and memoizes the recurring small shapes:
// identity and zero forms per basic type, and the single-field reinvoker,
// direct and delegate forms per erased signature.
//
// Thread-safety model: every method is safe from any goroutine. Concurrent
// builders of the same shape may each construct a candidate; exactly one
// is interned and returned to all of them.
type Catalog struct {
	registry *species.Registry
	forms    sync.Map // canonical key -> *Form
	shapes   sync.Map // kind + ":" + erased signature -> *Form
	count    atomic.Int64
}

// NewCatalog creates a catalog over the given species registry.
func NewCatalog(r *species.Registry) *Catalog {
	return &Catalog{registry: r}
}

// Registry returns the species registry backing bound forms.
func (c *Catalog) Registry() *species.Registry { return c.registry }

// Len returns the number of interned forms.
func (c *Catalog) Len() int { return int(c.count.Load()) }

// Intern returns the catalog's instance of a form structurally equal to f,
// publishing f if it is the first.
func (c *Catalog) Intern(f *Form) *Form {
	actual, loaded := c.forms.LoadOrStore(f.key, f)
	if !loaded {
		c.count.Add(1)
	}
	return actual.(*Form)
}

// Lookup returns the interned form with the given canonical key.
func (c *Catalog) Lookup(key string) (*Form, bool) {
	v, ok := c.forms.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Form), true
}

func (c *Catalog) memo(kind Kind, sig string, build func() (*Form, error)) (*Form, error) {
	k := string(kind) + ":" + sig
	if v, ok := c.shapes.Load(k); ok {
		return v.(*Form), nil
	}
	f, err := build()
	if err != nil {
		return nil, err
	}
	f = c.Intern(f)
	actual, _ := c.shapes.LoadOrStore(k, f)
	return actual.(*Form), nil
}

// Identity returns the form (L,t)t that returns its argument. The identity
// of void takes nothing and is the zero form of void.
func (c *Catalog) Identity(t ir.BasicType) (*Form, error) {
	if t == ir.V {
		return c.Zero(ir.V)
	}
	return c.memo(KindIdentity, t.String(), func() (*Form, error) {
		return New(KindIdentity,
			[]ir.BasicType{ir.L, t},
			[]Name{Expr(IdentityOf(t), 1)},
			2, c.registry.Top())
	})
}

// Zero returns the form (L)t producing the zero value of t.
func (c *Catalog) Zero(t ir.BasicType) (*Form, error) {
	return c.memo(KindZero, t.String(), func() (*Form, error) {
		result := 1
		if t == ir.V {
			result = -1
		}
		return New(KindZero,
			[]ir.BasicType{ir.L},
			[]Name{Expr(ZeroOf(t))},
			result, c.registry.Top())
	})
}

// Reinvoker returns the form that calls the handle bound in field 0 of
// its receiver with the remaining arguments.
func (c *Catalog) Reinvoker(mt ir.MethodType) (*Form, error) {
	return c.holder(KindReinvoke, mt)
}

// Direct returns the form that calls the target function bound in field 0
// of its receiver with the remaining arguments.
func (c *Catalog) Direct(mt ir.MethodType) (*Form, error) {
	return c.holder(KindDirect, mt)
}

func (c *Catalog) holder(kind Kind, mt ir.MethodType) (*Form, error) {
	params := append([]ir.BasicType{ir.L}, mt.BasicParams()...)
	ret := mt.BasicReturn()
	return c.memo(kind, ir.BasicSignature(params, ret), func() (*Form, error) {
		l, err := c.registry.Find("L")
		if err != nil {
			return nil, err
		}
		target := len(params)
		exprs := []Name{
			Expr(Getter(l, 0), 0),
			Expr(InvokeBasic(params, ret), forward(target, len(params))...),
		}
		return New(kind, params, exprs, resultOf(ret, target+1), l)
	})
}

// Delegate returns the form that asks its receiver for a target and calls
// it with the remaining arguments.
func (c *Catalog) Delegate(mt ir.MethodType) (*Form, error) {
	return c.targeted(KindDelegate, mt)
}

// CallSite returns the form that reads the current target of a call site
// receiver and calls it with the remaining arguments. It differs from the
// delegate form only in kind, so call site units are named apart.
func (c *Catalog) CallSite(mt ir.MethodType) (*Form, error) {
	return c.targeted(KindCallSite, mt)
}

func (c *Catalog) targeted(kind Kind, mt ir.MethodType) (*Form, error) {
	params := append([]ir.BasicType{ir.L}, mt.BasicParams()...)
	ret := mt.BasicReturn()
	return c.memo(kind, ir.BasicSignature(params, ret), func() (*Form, error) {
		target := len(params)
		exprs := []Name{
			Expr(GetTarget(), 0),
			Expr(InvokeBasic(params, ret), forward(target, len(params))...),
		}
		return New(kind, params, exprs, resultOf(ret, target+1), nil)
	})
}

// Invoker returns the form (L,L,params...)ret that calls its first visible
// argument with the rest. The receiver is ignored.
func (c *Catalog) Invoker(mt ir.MethodType) (*Form, error) {
	params := append([]ir.BasicType{ir.L, ir.L}, mt.BasicParams()...)
	ret := mt.BasicReturn()
	return c.memo(KindInvoker, ir.BasicSignature(params, ret), func() (*Form, error) {
		callee := append([]ir.BasicType{ir.L}, mt.BasicParams()...)
		args := make([]int, 0, len(callee))
		for i := 1; i < len(params); i++ {
			args = append(args, i)
		}
		exprs := []Name{Expr(InvokeBasic(callee, ret), args...)}
		return New(KindInvoker, params, exprs, resultOf(ret, len(params)), nil)
	})
}

// forward lists the callee name followed by parameters 1..arity-1.
func forward(callee, arity int) []int {
	args := make([]int, 0, arity)
	args = append(args, callee)
	for i := 1; i < arity; i++ {
		args = append(args, i)
	}
	return args
}

func resultOf(ret ir.BasicType, idx int) int {
	if ret == ir.V {
		return -1
	}
	return idx
}
