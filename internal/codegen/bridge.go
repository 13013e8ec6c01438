package codegen

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
)

// Bridge is the compute-once unit cache in front of a Backend.
//
// Thread-safety model:
//   - Emit, Compile and Load are safe from any goroutine
//   - at most one generation per unit name is in flight; concurrent
//     requests for the same name wait for and share its result
//   - generations for different names proceed in parallel
//
// INVARIANTS:
//   - a name, once cached, always maps to the same unit
//   - every cached unit's digest equals the digest of every form later
//     emitted under its name
type Bridge struct {
	container string
	backend   Backend
	units     sync.Map // name -> *Unit
	group     singleflight.Group
	generated atomic.Int64
	logger    *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithContainer sets the container prefix of unit names.
//
// Default: DefaultContainer
func WithContainer(name string) BridgeOption {
	return func(b *Bridge) {
		b.container = name
	}
}

// WithBackend sets the backend.
//
// Default: NewClosureBackend(DefaultNameLimit)
func WithBackend(be Backend) BridgeOption {
	return func(b *Bridge) {
		b.backend = be
	}
}

// WithLogger sets the logger for generation events.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l
	}
}

// NewBridge creates a bridge.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		container: DefaultContainer,
		backend:   NewClosureBackend(DefaultNameLimit),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Container returns the container prefix of unit names.
func (b *Bridge) Container() string { return b.container }

// Backend returns the backend.
func (b *Bridge) Backend() Backend { return b.backend }

// Compile implements lform.Compiler: it emits the form under its
// canonical unit name and returns the unit's invoker.
func (b *Bridge) Compile(f *lform.Form) (lform.Invoker, error) {
	name := UnitName(b.container, f)
	u, err := b.Emit(name, f)
	if err != nil {
		return nil, err
	}
	if u.Invoker == nil {
		return nil, ir.NewBackendError("compile", name,
			fmt.Errorf("backend %q produced no executable unit", u.Backend))
	}
	return u.Invoker, nil
}

// Emit returns the unit named name, generating it from f on first request.
func (b *Bridge) Emit(name string, f *lform.Form) (*Unit, error) {
	if v, ok := b.units.Load(name); ok {
		return checkDigest(v.(*Unit), f)
	}

	v, err, _ := b.group.Do(name, func() (any, error) {
		if v, ok := b.units.Load(name); ok {
			return v, nil
		}
		u, err := b.backend.Generate(name, f)
		if err != nil {
			b.logger.Warn("unit generation failed",
				"name", name,
				"backend", b.backend.Name(),
				"error", err)
			return nil, backendError(name, err)
		}
		b.units.Store(name, u)
		b.generated.Add(1)
		b.logger.Debug("unit generated",
			"name", name,
			"backend", b.backend.Name(),
			"expressions", f.ExpressionCount())
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return checkDigest(v.(*Unit), f)
}

func backendError(name string, err error) error {
	var ie *ir.Error
	if errors.As(err, &ie) && ie.Kind == ir.KindBackend {
		return err
	}
	return ir.NewBackendError("emit", name, err)
}

func checkDigest(u *Unit, f *lform.Form) (*Unit, error) {
	if u.Digest != f.Digest() {
		return nil, &ir.Error{
			Kind:    ir.KindInternal,
			Op:      "emit",
			Key:     u.Name,
			Message: fmt.Sprintf("unit holds form %.12s, requested form is %.12s", u.Digest, f.Digest()),
		}
	}
	return u, nil
}

// Load installs pregenerated units. A unit whose name is already cached
// with a different digest is an internal error; identical units are
// skipped.
func (b *Bridge) Load(units ...*Unit) error {
	for _, u := range units {
		actual, loaded := b.units.LoadOrStore(u.Name, u)
		if !loaded {
			continue
		}
		if existing := actual.(*Unit); existing.Digest != u.Digest {
			return &ir.Error{
				Kind:    ir.KindInternal,
				Op:      "load units",
				Key:     u.Name,
				Message: fmt.Sprintf("cached unit holds form %.12s, loaded unit holds %.12s", existing.Digest, u.Digest),
			}
		}
	}
	return nil
}

// Lookup returns the cached unit with the given name.
func (b *Bridge) Lookup(name string) (*Unit, bool) {
	v, ok := b.units.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Unit), true
}

// Len returns the number of cached units.
func (b *Bridge) Len() int {
	n := 0
	b.units.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Generated returns how many units the backend has generated.
func (b *Bridge) Generated() int64 { return b.generated.Load() }

// Names returns the cached unit names in sorted order.
func (b *Bridge) Names() []string {
	var names []string
	b.units.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}
