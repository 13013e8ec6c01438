package invoke

import (
	"fmt"
	"reflect"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
)

// Func is a target function over erased arguments: int32 for I, int64
// for J, float32 for F, float64 for D, anything for L. It must return a
// value erased for its handle's return type, or nil for void.
type Func func(args []any) (any, error)

// InvokeBasic implements lform.Invocable.
func (f Func) InvokeBasic(args ...any) (any, error) { return f(args) }

// Direct returns a handle of type mt that calls fn. fn is held as the
// handle's single bound reference, so every direct handle of one erased
// signature shares one form.
func (r *Runtime) Direct(mt ir.MethodType, fn Func) (*BoundHandle, error) {
	if fn == nil {
		return nil, ir.NewContractError("direct handle", "target function is nil")
	}
	f, err := r.catalog.Direct(mt)
	if err != nil {
		return nil, err
	}
	l, err := r.registry.Find("L")
	if err != nil {
		return nil, err
	}
	rec, err := l.Factory()(mt, f, fn)
	if err != nil {
		return nil, err
	}
	return &BoundHandle{rt: r, rec: rec}, nil
}

// Simple returns a handle with no bound values running form f. f must not
// read bound fields and must take a receiver followed by mt's erased
// parameters.
func (r *Runtime) Simple(mt ir.MethodType, f *lform.Form) (*BoundHandle, error) {
	if c := f.Constraint(); c != nil && c != r.registry.Top() {
		return nil, ir.NewContractError("simple handle", fmt.Sprintf("form is constrained to species %q", c.Key()))
	}
	want := ir.BasicSignature(append([]ir.BasicType{ir.L}, mt.BasicParams()...), mt.BasicReturn())
	if got := f.BasicSignature(); got != want {
		return nil, ir.NewContractError("simple handle", fmt.Sprintf("form signature %s does not match %s", got, want))
	}
	rec, err := r.registry.Top().Factory()(mt, f)
	if err != nil {
		return nil, err
	}
	return &BoundHandle{rt: r, rec: rec}, nil
}

// Identity returns the handle (t)t that returns its argument. The
// identity of void is the zero of void.
func (r *Runtime) Identity(t ir.Type) (*BoundHandle, error) {
	if t == ir.Void {
		return r.Zero(ir.Void)
	}
	f, err := r.catalog.Identity(t.Basic())
	if err != nil {
		return nil, err
	}
	mt, err := ir.NewMethodType(t, t)
	if err != nil {
		return nil, err
	}
	return r.Simple(mt, f)
}

// Zero returns the handle ()t that returns the zero value of t.
func (r *Runtime) Zero(t ir.Type) (*BoundHandle, error) {
	f, err := r.catalog.Zero(t.Basic())
	if err != nil {
		return nil, err
	}
	return r.Simple(ir.MustMethodType(t), f)
}

// Delegate returns a handle that forwards to target.
func (r *Runtime) Delegate(target Handle) (*DelegatingHandle, error) {
	f, err := r.catalog.Delegate(target.Type())
	if err != nil {
		return nil, err
	}
	return &DelegatingHandle{rt: r, target: target, form: f}, nil
}

// Invoker returns the handle (any, params...)ret that calls the handle
// passed as its first argument with the rest, where mt is
// (params...)ret. The passed handle must accept mt's erased shape; a
// mismatch is a contract violation reported by the callee.
func (r *Runtime) Invoker(mt ir.MethodType) (*BoundHandle, error) {
	f, err := r.catalog.Invoker(mt)
	if err != nil {
		return nil, err
	}
	it, err := ir.NewMethodType(mt.Return(), append([]ir.Type{ir.Any}, mt.Params()...)...)
	if err != nil {
		return nil, err
	}
	return r.Simple(it, f)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// canonical Go types of the non-reference logical types.
var logicalGoTypes = map[ir.Type]reflect.Type{
	ir.Bool:    reflect.TypeOf(false),
	ir.Int8:    reflect.TypeOf(int8(0)),
	ir.Uint8:   reflect.TypeOf(uint8(0)),
	ir.Int16:   reflect.TypeOf(int16(0)),
	ir.Uint16:  reflect.TypeOf(uint16(0)),
	ir.Int32:   reflect.TypeOf(int32(0)),
	ir.Uint32:  reflect.TypeOf(uint32(0)),
	ir.Int:     reflect.TypeOf(int(0)),
	ir.Uint:    reflect.TypeOf(uint(0)),
	ir.Int64:   reflect.TypeOf(int64(0)),
	ir.Uint64:  reflect.TypeOf(uint64(0)),
	ir.Float32: reflect.TypeOf(float32(0)),
	ir.Float64: reflect.TypeOf(float64(0)),
}

func logicalType(t reflect.Type) ir.Type {
	switch t.Kind() {
	case reflect.Bool:
		return ir.Bool
	case reflect.Int8:
		return ir.Int8
	case reflect.Uint8:
		return ir.Uint8
	case reflect.Int16:
		return ir.Int16
	case reflect.Uint16:
		return ir.Uint16
	case reflect.Int32:
		return ir.Int32
	case reflect.Uint32:
		return ir.Uint32
	case reflect.Int:
		return ir.Int
	case reflect.Uint:
		return ir.Uint
	case reflect.Int64:
		return ir.Int64
	case reflect.Uint64:
		return ir.Uint64
	case reflect.Float32:
		return ir.Float32
	case reflect.Float64:
		return ir.Float64
	default:
		return ir.Any
	}
}

// FromFunc returns a direct handle calling an ordinary Go function. The
// function may return nothing, a value, an error, or a value and an error.
// Parameters of primitive kinds map to their logical types; everything
// else is a reference.
func (r *Runtime) FromFunc(fn any) (*BoundHandle, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, ir.NewContractError("from func", fmt.Sprintf("%T is not a function", fn))
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return nil, ir.NewContractError("from func", fmt.Sprintf("%s is variadic", ft))
	}

	params := make([]ir.Type, ft.NumIn())
	for i := range params {
		params[i] = logicalType(ft.In(i))
	}

	ret, hasErr := ir.Void, false
	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		hasErr = true
	case ft.NumOut() == 1:
		ret = logicalType(ft.Out(0))
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		ret, hasErr = logicalType(ft.Out(0)), true
	default:
		return nil, ir.NewContractError("from func", fmt.Sprintf("%s has an unsupported result list", ft))
	}

	mt, err := ir.NewMethodType(ret, params...)
	if err != nil {
		return nil, err
	}

	call := Func(func(args []any) (any, error) {
		if len(args) != len(params) {
			return nil, ir.NewContractError("invoke", fmt.Sprintf("%s takes %d arguments, got %d", ft, len(params), len(args)))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			rv, err := argValue(ft.In(i), params[i], a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in[i] = rv
		}
		out := v.Call(in)
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
		}
		if ret == ir.Void {
			return nil, nil
		}
		return resultValue(ret, out[0])
	})
	return r.Direct(mt, call)
}

func argValue(pt reflect.Type, t ir.Type, erased any) (reflect.Value, error) {
	if !ir.IsErased(t.Basic(), erased) {
		return reflect.Value{}, ir.NewContractError("invoke", fmt.Sprintf("got %T, want %s", erased, t.Basic()))
	}
	lv, err := ir.Narrow(t, erased)
	if err != nil {
		return reflect.Value{}, err
	}
	if t != ir.Any {
		return reflect.ValueOf(lv).Convert(pt), nil
	}
	if lv == nil {
		switch pt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, ir.NewContractError("invoke", fmt.Sprintf("nil is not a valid %s", pt))
	}
	rv := reflect.ValueOf(lv)
	if !rv.Type().AssignableTo(pt) {
		return reflect.Value{}, ir.NewContractError("invoke", fmt.Sprintf("%T is not assignable to %s", lv, pt))
	}
	return rv, nil
}

func resultValue(t ir.Type, rv reflect.Value) (any, error) {
	if t == ir.Any {
		if rv.Kind() == reflect.Interface && rv.IsNil() {
			return nil, nil
		}
		return rv.Interface(), nil
	}
	return ir.Widen(t, rv.Convert(logicalGoTypes[t]).Interface())
}
