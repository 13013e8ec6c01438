package invoke

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
)

// CallSite is a handle whose target can be replaced while callers hold it.
// Each call reads the current target once; a concurrent SetTarget only
// affects later calls.
type CallSite struct {
	rt     *Runtime
	mt     ir.MethodType
	form   *lform.Form
	target atomic.Pointer[targetRef]
}

type targetRef struct {
	h Handle
}

var (
	_ Handle          = (*CallSite)(nil)
	_ lform.Delegator = (*CallSite)(nil)
)

// CallSite returns a call site of target's type, initially calling target.
func (r *Runtime) CallSite(target Handle) (*CallSite, error) {
	if target == nil {
		return nil, ir.NewContractError("call site", "target is nil")
	}
	f, err := r.catalog.CallSite(target.Type())
	if err != nil {
		return nil, err
	}
	cs := &CallSite{rt: r, mt: target.Type(), form: f}
	cs.target.Store(&targetRef{h: target})
	return cs, nil
}

// SetTarget replaces the target. The new target must have exactly the
// call site's type.
func (c *CallSite) SetTarget(h Handle) error {
	if h == nil {
		return ir.NewContractError("set target", "target is nil")
	}
	if !h.Type().Equal(c.mt) {
		return &ir.Error{
			Kind:    ir.KindContract,
			Op:      "set target",
			Key:     c.mt.String(),
			Message: fmt.Sprintf("target type %s does not match call site", h.Type()),
		}
	}
	c.target.Store(&targetRef{h: h})
	c.rt.logger.Debug("call site retargeted", "type", c.mt.String(), "target", h.String())
	return nil
}

// Handle returns the current target.
func (c *CallSite) Handle() Handle { return c.target.Load().h }

// Target implements lform.Delegator.
func (c *CallSite) Target() lform.Invocable { return c.Handle() }

// Type implements Handle.
func (c *CallSite) Type() ir.MethodType { return c.mt }

// Form implements Handle.
func (c *CallSite) Form() *lform.Form { return c.form }

// InvokeBasic implements lform.Invocable.
func (c *CallSite) InvokeBasic(args ...any) (any, error) {
	return c.rt.invokeForm(c.form, c, args)
}

// Invoke implements Handle.
func (c *CallSite) Invoke(args ...any) (any, error) {
	return invokeLogical(c, args)
}

// Rebind implements Handle. The reinvoker holds the call site itself, so
// handles derived from it follow later retargeting.
func (c *CallSite) Rebind() (*BoundHandle, error) {
	return c.rt.reinvoker(c)
}

// BindArgumentL implements Handle.
func (c *CallSite) BindArgumentL(pos int, v any) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentL(pos, v)
}

// BindArgumentI implements Handle.
func (c *CallSite) BindArgumentI(pos int, v int32) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentI(pos, v)
}

// BindArgumentJ implements Handle.
func (c *CallSite) BindArgumentJ(pos int, v int64) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentJ(pos, v)
}

// BindArgumentF implements Handle.
func (c *CallSite) BindArgumentF(pos int, v float32) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentF(pos, v)
}

// BindArgumentD implements Handle.
func (c *CallSite) BindArgumentD(pos int, v float64) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgumentD(pos, v)
}

// BindArgument implements Handle.
func (c *CallSite) BindArgument(pos int, v any) (Handle, error) {
	b, err := c.Rebind()
	if err != nil {
		return nil, err
	}
	return b.BindArgument(pos, v)
}

// String implements Handle.
func (c *CallSite) String() string {
	return "callsite" + c.Handle().String()
}
