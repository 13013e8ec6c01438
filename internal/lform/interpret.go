package lform

import (
	"fmt"

	"github.com/roach88/speciate/internal/ir"
)

// Invoker is an executable rendition of a form. It takes the same
// arguments as Interpret, receiver first.
type Invoker func(args []any) (any, error)

// Compiler turns a form into an Invoker. Implementations must be safe
// for concurrent use and should return the same Invoker for structurally
// identical forms.
type Compiler interface {
	Compile(f *Form) (Invoker, error)
}

// Interpret evaluates the program name by name.
func (f *Form) Interpret(args []any) (any, error) {
	if err := f.CheckArgs("interpret", args); err != nil {
		return nil, err
	}
	return f.interpret(args)
}

func (f *Form) interpret(args []any) (any, error) {
	values := make([]any, len(f.names))
	copy(values, args)

	var scratch []any
	for i := f.arity; i < len(f.names); i++ {
		n := f.names[i]
		scratch = scratch[:0]
		for _, a := range n.Args {
			scratch = append(scratch, values[a])
		}
		v, err := n.Fn.Apply(scratch)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	if f.result < 0 {
		return nil, nil
	}
	return values[f.result], nil
}

// CheckArgs verifies that args match the form's parameters in number and
// erased representation. A mismatch is the caller's fault.
func (f *Form) CheckArgs(op string, args []any) error {
	if len(args) != f.arity {
		return ir.NewContractError(op, fmt.Sprintf("%s form takes %d arguments, got %d", f.kind, f.arity, len(args)))
	}
	for i, a := range args {
		if t := f.names[i].Type; !ir.IsErased(t, a) {
			return ir.NewContractError(op, fmt.Sprintf("%s form argument %d: got %T, want %s", f.kind, i, a, t))
		}
	}
	return nil
}

// Invoke runs the form, switching from interpretation to a compiled unit
// once the form has been invoked more than threshold times. A threshold of
// zero compiles on the first call; a negative threshold or a nil compiler
// never compiles. A form the backend refuses to compile stays interpreted
// and is not offered to the compiler again.
func (f *Form) Invoke(c Compiler, threshold int, args []any) (any, error) {
	if err := f.CheckArgs("invoke", args); err != nil {
		return nil, err
	}
	if inv := f.compiled.Load(); inv != nil {
		return (*inv)(args)
	}
	n := f.invocations.Add(1)
	if c != nil && threshold >= 0 && n > int64(threshold) && !f.uncompilable.Load() {
		err := f.Compile(c)
		switch {
		case err == nil:
			return (*f.compiled.Load())(args)
		case ir.IsBackendError(err):
			f.uncompilable.Store(true)
		default:
			return nil, err
		}
	}
	return f.interpret(args)
}

// Uncompilable reports whether a backend has refused the form.
func (f *Form) Uncompilable() bool { return f.uncompilable.Load() }

// Compile installs a compiled unit for the form if none is installed.
// Concurrent callers converge on whichever unit is installed first.
func (f *Form) Compile(c Compiler) error {
	if f.compiled.Load() != nil {
		return nil
	}
	inv, err := c.Compile(f)
	if err != nil {
		return err
	}
	f.compiled.CompareAndSwap(nil, &inv)
	return nil
}
