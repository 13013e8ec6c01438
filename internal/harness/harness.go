package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/invoke"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/pregen"
)

// Harness executes the steps of one scenario.
type Harness struct {
	rt     *invoke.Runtime
	handle invoke.Handle
	seq    int64
	logger *slog.Logger
}

// Option configures Run.
type Option func(*config)

type config struct {
	runtime []invoke.Option
	bundle  *pregen.Bundle
}

// WithRuntimeOptions applies runtime options after the scenario's own
// threshold overrides.
func WithRuntimeOptions(opts ...invoke.Option) Option {
	return func(c *config) {
		c.runtime = append(c.runtime, opts...)
	}
}

// WithBundle preloads a pregenerated bundle before the first step. The
// scenario's bridge adopts the bundle's container.
func WithBundle(b *pregen.Bundle) Option {
	return func(c *config) {
		c.bundle = b
	}
}

// Run executes a scenario against a fresh runtime and returns the result.
//
// A step failing against its expectation fails the result; Run itself
// only returns an error when the scenario cannot start.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridgeOpts := []codegen.BridgeOption{codegen.WithLogger(logger)}
	if cfg.bundle != nil {
		bridgeOpts = append(bridgeOpts, codegen.WithContainer(cfg.bundle.Container))
	}
	bridge := codegen.NewBridge(bridgeOpts...)

	all := []invoke.Option{invoke.WithBridge(bridge), invoke.WithLogger(logger)}
	all = append(all, scenario.runtimeOptions()...)
	all = append(all, cfg.runtime...)
	rt := invoke.New(all...)

	if cfg.bundle != nil {
		if err := rt.Preload(cfg.bundle); err != nil {
			return nil, fmt.Errorf("failed to preload bundle: %w", err)
		}
	}

	target, err := NewTarget(rt, scenario.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	h := &Harness{rt: rt, handle: target, logger: logger}
	if scenario.Delegate {
		d, err := rt.Delegate(target)
		if err != nil {
			return nil, fmt.Errorf("failed to delegate target: %w", err)
		}
		h.handle = d
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.execute(i, step, result)
	}

	result.Type = h.handle.Type().String()
	result.Species = speciesOf(h.handle)
	result.Rebinds = rt.Rebinds()
	result.Units = rt.Bridge().Names()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step, records it and checks its expectation.
func (h *Harness) execute(index int, step Step, result *Result) {
	h.seq++
	event := TraceEvent{Seq: h.seq}

	var err error
	switch {
	case step.Bind != nil:
		event.Op = OpBind
		event.Pos = step.Bind.Pos
		event.Value = render(step.Bind.Value)
		err = h.bind(step.Bind)
	case step.Invoke != nil:
		event.Op = OpInvoke
		event.Args = make([]string, len(step.Invoke.Args))
		for i, a := range step.Invoke.Args {
			event.Args[i] = render(a)
		}
		var out any
		out, err = h.invoke(step.Invoke)
		event.Result = render(out)
	case step.Rebind:
		event.Op = OpRebind
		var next *invoke.BoundHandle
		if next, err = h.handle.Rebind(); err == nil {
			h.handle = next
		}
	}
	if err != nil {
		event.Error = errorKind(err)
		h.logger.Debug("step failed", "seq", h.seq, "op", event.Op, "error", err)
	}
	event.Type = h.handle.Type().String()
	event.Species = speciesOf(h.handle)
	result.Trace = append(result.Trace, event)

	for _, msg := range checkExpect(index, step.Expect, event, err) {
		result.AddError(msg)
	}
}

func (h *Harness) bind(b *BindStep) error {
	mt := h.handle.Type()
	v := b.Value
	if b.Pos >= 0 && b.Pos < mt.ParamCount() {
		var err error
		if v, err = coerce(mt.Param(b.Pos), v); err != nil {
			return ir.NewContractError("bind argument", err.Error())
		}
	}
	next, err := h.handle.BindArgument(b.Pos, v)
	if err != nil {
		return err
	}
	h.handle = next
	return nil
}

func (h *Harness) invoke(s *InvokeStep) (any, error) {
	mt := h.handle.Type()
	args := append([]any(nil), s.Args...)
	if len(args) == mt.ParamCount() {
		for i, a := range args {
			v, err := coerce(mt.Param(i), a)
			if err != nil {
				return nil, ir.NewContractError("invoke", fmt.Sprintf("argument %d: %v", i, err))
			}
			args[i] = v
		}
	}
	return h.handle.Invoke(args...)
}

// checkExpect compares a step outcome with its expectation.
func checkExpect(index int, expect *Expect, event TraceEvent, err error) []string {
	var errs []string
	wantErr := ""
	if expect != nil {
		wantErr = expect.Error
	}
	switch {
	case err != nil && wantErr == "":
		errs = append(errs, fmt.Sprintf("steps[%d]: unexpected error: %v", index, err))
	case err == nil && wantErr != "":
		errs = append(errs, fmt.Sprintf("steps[%d]: expected %s, got success", index, wantErr))
	case err != nil && event.Error != wantErr:
		errs = append(errs, fmt.Sprintf("steps[%d]: expected %s, got %s: %v", index, wantErr, event.Error, err))
	}
	if expect == nil {
		return errs
	}
	if expect.Result != nil && err == nil && render(expect.Result) != event.Result {
		errs = append(errs, fmt.Sprintf("steps[%d]: expected result %q, got %q", index, render(expect.Result), event.Result))
	}
	if expect.Species != nil && *expect.Species != event.Species {
		errs = append(errs, fmt.Sprintf("steps[%d]: expected species %q, got %q", index, *expect.Species, event.Species))
	}
	return errs
}

// errorKind returns the engine error kind of err, or ERROR for errors the
// engine did not classify.
func errorKind(err error) string {
	var e *ir.Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return "ERROR"
}

// speciesOf returns the signature key of a bound handle. Delegating
// handles report their target's key behind a "delegate:" prefix.
func speciesOf(h invoke.Handle) string {
	switch x := h.(type) {
	case *invoke.BoundHandle:
		return x.SpeciesData().Key()
	case *invoke.DelegatingHandle:
		return "delegate:" + speciesOf(x.Handle())
	}
	return ""
}
