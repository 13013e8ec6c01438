package invoke

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/species"
)

// Tuning defaults. They are the measured sweet spot between generated
// shape size and indirection depth on the original platform and should
// be re-measured rather than assumed elsewhere.
const (
	// DefaultFieldCountThreshold is the most fields a record may hold
	// before its handle is rebound.
	DefaultFieldCountThreshold = 12

	// DefaultExpressionThreshold is the most expressions a form may hold
	// before its handle is rebound.
	DefaultExpressionThreshold = 24

	// DefaultCompileThreshold is how many interpreted invocations a form
	// gets before it is compiled.
	DefaultCompileThreshold = 30
)

// Runtime owns the shared state handles are built from: the species
// registry, the form catalog and the codegen bridge.
//
// Thread-safety model: a Runtime and every handle it creates are safe for
// concurrent use.
type Runtime struct {
	registry *species.Registry
	catalog  *lform.Catalog
	bridge   *codegen.Bridge
	logger   *slog.Logger

	fieldThreshold   int
	exprThreshold    int
	compileThreshold int

	rebinds atomic.Int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFieldCountThreshold sets the field count above which a handle is
// rebound before binding.
//
// Default: 12 (DefaultFieldCountThreshold)
func WithFieldCountThreshold(n int) Option {
	return func(r *Runtime) {
		r.fieldThreshold = n
	}
}

// WithExpressionThreshold sets the expression count above which a handle
// is rebound before binding.
//
// Default: 24 (DefaultExpressionThreshold)
func WithExpressionThreshold(n int) Option {
	return func(r *Runtime) {
		r.exprThreshold = n
	}
}

// WithCompileThreshold sets how many interpreted invocations a form gets
// before compilation. Zero compiles on first use; negative never compiles.
//
// Default: 30 (DefaultCompileThreshold)
func WithCompileThreshold(n int) Option {
	return func(r *Runtime) {
		r.compileThreshold = n
	}
}

// WithRegistry sets the species registry.
//
// Default: species.Default()
func WithRegistry(reg *species.Registry) Option {
	return func(r *Runtime) {
		r.registry = reg
	}
}

// WithBridge sets the codegen bridge used for compilation.
//
// Default: a closure-backend bridge private to the runtime
func WithBridge(b *codegen.Bridge) Option {
	return func(r *Runtime) {
		r.bridge = b
	}
}

// WithLogger sets the logger for rebinding and compilation events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger:           slog.Default(),
		fieldThreshold:   DefaultFieldCountThreshold,
		exprThreshold:    DefaultExpressionThreshold,
		compileThreshold: DefaultCompileThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = species.Default()
	}
	if r.bridge == nil {
		r.bridge = codegen.NewBridge(codegen.WithLogger(r.logger))
	}
	r.catalog = lform.NewCatalog(r.registry)
	return r
}

// Registry returns the species registry.
func (r *Runtime) Registry() *species.Registry { return r.registry }

// Catalog returns the form catalog.
func (r *Runtime) Catalog() *lform.Catalog { return r.catalog }

// Bridge returns the codegen bridge.
func (r *Runtime) Bridge() *codegen.Bridge { return r.bridge }

// Rebinds returns how many reinvokers the runtime has created.
func (r *Runtime) Rebinds() int64 { return r.rebinds.Load() }

// FieldCountThreshold returns the configured field ceiling.
func (r *Runtime) FieldCountThreshold() int { return r.fieldThreshold }

// ExpressionThreshold returns the configured expression ceiling.
func (r *Runtime) ExpressionThreshold() int { return r.exprThreshold }

// CompileThreshold returns the configured compile threshold.
func (r *Runtime) CompileThreshold() int { return r.compileThreshold }

// Pregenerate emits every unit req names into the runtime's bridge, so
// the matching forms compile without generating on first use.
func (r *Runtime) Pregenerate(req pregen.Request) (*pregen.Bundle, error) {
	g := pregen.New(r.bridge, r.catalog, pregen.WithLogger(r.logger))
	return g.Generate(req)
}

// Warmup pregenerates the basic forms and the reinvoker and delegate
// units for the given call shapes into the runtime's bridge.
func (r *Runtime) Warmup(types []ir.MethodType) (*pregen.Bundle, error) {
	return r.Pregenerate(pregen.Request{BasicForms: true, Delegating: types})
}

// Preload installs the units of a bundle generated elsewhere. The bundle
// must verify and must target the bridge's container.
func (r *Runtime) Preload(b *pregen.Bundle) error {
	if err := b.Verify(); err != nil {
		return err
	}
	if b.Container != r.bridge.Container() {
		return &ir.Error{
			Kind:    ir.KindContract,
			Op:      "preload",
			Key:     b.ID,
			Message: fmt.Sprintf("bundle container %q does not match bridge container %q", b.Container, r.bridge.Container()),
		}
	}
	if err := r.bridge.Load(b.Units...); err != nil {
		return err
	}
	r.logger.Debug("bundle preloaded", "id", b.ID, "section", b.Section, "units", len(b.Units))
	return nil
}

func (r *Runtime) tooComplex(rec *species.Record, f *lform.Form) bool {
	return rec.FieldCount() > r.fieldThreshold || f.ExpressionCount() > r.exprThreshold
}

func (r *Runtime) compiler() lform.Compiler {
	return r.bridge
}

// invokeForm runs f with receiver prepended to args.
func (r *Runtime) invokeForm(f *lform.Form, receiver any, args []any) (any, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, receiver)
	full = append(full, args...)
	return f.Invoke(r.compiler(), r.compileThreshold, full)
}

// reinvoker wraps h in a single-field handle that calls it.
func (r *Runtime) reinvoker(h Handle) (*BoundHandle, error) {
	mt := h.Type()
	f, err := r.catalog.Reinvoker(mt)
	if err != nil {
		return nil, err
	}
	l, err := r.registry.Find("L")
	if err != nil {
		return nil, err
	}
	rec, err := l.Factory()(mt, f, h)
	if err != nil {
		return nil, err
	}
	if r.compileThreshold >= 0 {
		// A backend refusal leaves the rebound form interpreted.
		if err := h.Form().Compile(r.compiler()); err != nil && !ir.IsBackendError(err) {
			return nil, fmt.Errorf("compile rebound form: %w", err)
		}
	}
	r.rebinds.Add(1)
	r.logger.Debug("handle rebound",
		"type", mt.String(),
		"form", codegen.LocalName(h.Form()),
		"expressions", h.Form().ExpressionCount())
	return &BoundHandle{rt: r, rec: rec}, nil
}
