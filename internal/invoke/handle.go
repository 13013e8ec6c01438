package invoke

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/species"
)

// Handle is an invocation handle.
type Handle interface {
	lform.Invocable

	// Type returns the externally visible call signature.
	Type() ir.MethodType

	// Form returns the pipeline the handle runs.
	Form() *lform.Form

	// Invoke calls the handle with logical argument values and returns
	// the logical result.
	Invoke(args ...any) (any, error)

	// Rebind returns a record-backed handle with the same behavior that
	// is simple enough to extend.
	Rebind() (*BoundHandle, error)

	// BindArgumentL binds a reference to parameter pos.
	BindArgumentL(pos int, v any) (Handle, error)
	// BindArgumentI binds a 32-bit int to parameter pos.
	BindArgumentI(pos int, v int32) (Handle, error)
	// BindArgumentJ binds a 64-bit int to parameter pos.
	BindArgumentJ(pos int, v int64) (Handle, error)
	// BindArgumentF binds a 32-bit float to parameter pos.
	BindArgumentF(pos int, v float32) (Handle, error)
	// BindArgumentD binds a 64-bit float to parameter pos.
	BindArgumentD(pos int, v float64) (Handle, error)

	// BindArgument binds a logical value to parameter pos. The value's
	// dynamic type must be the parameter's type.
	BindArgument(pos int, v any) (Handle, error)

	String() string
}

// BoundHandle is a handle backed by a bound-argument record.
type BoundHandle struct {
	rt  *Runtime
	rec *species.Record
}

var (
	_ Handle          = (*BoundHandle)(nil)
	_ lform.Receiver  = (*BoundHandle)(nil)
	_ Handle          = (*DelegatingHandle)(nil)
	_ lform.Delegator = (*DelegatingHandle)(nil)
)

// BoundRecord implements lform.Receiver.
func (h *BoundHandle) BoundRecord() *species.Record { return h.rec }

// SpeciesData returns the species of the handle's record.
func (h *BoundHandle) SpeciesData() *species.SpeciesData { return h.rec.Species() }

// Type implements Handle.
func (h *BoundHandle) Type() ir.MethodType { return h.rec.Type() }

// Form implements Handle.
func (h *BoundHandle) Form() *lform.Form { return h.rec.Form().(*lform.Form) }

// FieldAt returns bound field i in its erased representation.
func (h *BoundHandle) FieldAt(i int) (any, error) { return h.rec.FieldAt(i) }

// InvokeBasic implements lform.Invocable.
func (h *BoundHandle) InvokeBasic(args ...any) (any, error) {
	return h.rt.invokeForm(h.Form(), h, args)
}

// Invoke implements Handle.
func (h *BoundHandle) Invoke(args ...any) (any, error) {
	return invokeLogical(h, args)
}

// Rebind implements Handle. A handle within both thresholds is its own
// rebinding.
func (h *BoundHandle) Rebind() (*BoundHandle, error) {
	if !h.rt.tooComplex(h.rec, h.Form()) {
		return h, nil
	}
	return h.rt.reinvoker(h)
}

// BindArgumentL implements Handle.
func (h *BoundHandle) BindArgumentL(pos int, v any) (Handle, error) {
	return h.bind(pos, ir.L, v)
}

// BindArgumentI implements Handle.
func (h *BoundHandle) BindArgumentI(pos int, v int32) (Handle, error) {
	return h.bind(pos, ir.I, v)
}

// BindArgumentJ implements Handle.
func (h *BoundHandle) BindArgumentJ(pos int, v int64) (Handle, error) {
	return h.bind(pos, ir.J, v)
}

// BindArgumentF implements Handle.
func (h *BoundHandle) BindArgumentF(pos int, v float32) (Handle, error) {
	return h.bind(pos, ir.F, v)
}

// BindArgumentD implements Handle.
func (h *BoundHandle) BindArgumentD(pos int, v float64) (Handle, error) {
	return h.bind(pos, ir.D, v)
}

// BindArgument implements Handle.
func (h *BoundHandle) BindArgument(pos int, v any) (Handle, error) {
	t, err := paramType(h, pos)
	if err != nil {
		return nil, err
	}
	e, err := ir.Widen(t, v)
	if err != nil {
		return nil, err
	}
	return h.bind(pos, t.Basic(), e)
}

func (h *BoundHandle) bind(pos int, t ir.BasicType, v any) (Handle, error) {
	pt, err := paramType(h, pos)
	if err != nil {
		return nil, err
	}
	if pt.Basic() != t {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "bind argument",
			Key:     h.Type().String(),
			Message: fmt.Sprintf("parameter %d is %s, cannot bind %s", pos, pt, t),
		}
	}

	base, err := h.Rebind()
	if err != nil {
		return nil, err
	}
	mt, err := base.Type().DropParameter(pos)
	if err != nil {
		return nil, err
	}
	f, err := base.rt.catalog.BindArgument(base.Form(), pos, t)
	if err != nil {
		return nil, err
	}
	rec, err := base.rec.CopyWithExtend(mt, f, t, v)
	if err != nil {
		return nil, err
	}
	return &BoundHandle{rt: base.rt, rec: rec}, nil
}

// String renders the signature followed by the bound values, if any.
func (h *BoundHandle) String() string {
	if h.rec.FieldCount() == 0 {
		return h.Type().String()
	}
	return h.Type().String() + h.rec.String()
}

// DelegatingHandle forwards every call to a target handle through a
// delegate form.
type DelegatingHandle struct {
	rt     *Runtime
	target Handle
	form   *lform.Form
}

// Target implements lform.Delegator.
func (d *DelegatingHandle) Target() lform.Invocable { return d.target }

// Handle returns the target as a Handle.
func (d *DelegatingHandle) Handle() Handle { return d.target }

// Type implements Handle.
func (d *DelegatingHandle) Type() ir.MethodType { return d.target.Type() }

// Form implements Handle.
func (d *DelegatingHandle) Form() *lform.Form { return d.form }

// InvokeBasic implements lform.Invocable.
func (d *DelegatingHandle) InvokeBasic(args ...any) (any, error) {
	return d.rt.invokeForm(d.form, d, args)
}

// Invoke implements Handle.
func (d *DelegatingHandle) Invoke(args ...any) (any, error) {
	return invokeLogical(d, args)
}

// Rebind implements Handle by rebinding the target.
func (d *DelegatingHandle) Rebind() (*BoundHandle, error) {
	return d.target.Rebind()
}

// BindArgumentL implements Handle.
func (d *DelegatingHandle) BindArgumentL(pos int, v any) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentL(pos, v)
}

// BindArgumentI implements Handle.
func (d *DelegatingHandle) BindArgumentI(pos int, v int32) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentI(pos, v)
}

// BindArgumentJ implements Handle.
func (d *DelegatingHandle) BindArgumentJ(pos int, v int64) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentJ(pos, v)
}

// BindArgumentF implements Handle.
func (d *DelegatingHandle) BindArgumentF(pos int, v float32) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentF(pos, v)
}

// BindArgumentD implements Handle.
func (d *DelegatingHandle) BindArgumentD(pos int, v float64) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentD(pos, v)
}

// BindArgument implements Handle.
func (d *DelegatingHandle) BindArgument(pos int, v any) (Handle, error) {
	b, err := d.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgument(pos, v)
}

// String implements Handle.
func (d *DelegatingHandle) String() string {
	return "delegate" + d.target.String()
}

func paramType(h Handle, pos int) (ir.Type, error) {
	mt := h.Type()
	if pos < 0 || pos >= mt.ParamCount() {
		return 0, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "bind argument",
			Key:     mt.String(),
			Message: fmt.Sprintf("position %d out of range for %d parameters", pos, mt.ParamCount()),
		}
	}
	return mt.Param(pos), nil
}

// invokeLogical widens args, calls h and narrows the result.
func invokeLogical(h Handle, args []any) (any, error) {
	mt := h.Type()
	if len(args) != mt.ParamCount() {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "invoke",
			Key:     mt.String(),
			Message: fmt.Sprintf("handle takes %d arguments, got %d", mt.ParamCount(), len(args)),
		}
	}
	erased := make([]any, len(args))
	for i, a := range args {
		e, err := ir.Widen(mt.Param(i), a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		erased[i] = e
	}
	out, err := h.InvokeBasic(erased...)
	if err != nil {
		return nil, err
	}
	return ir.Narrow(mt.Return(), out)
}
