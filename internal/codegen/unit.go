package codegen

import (
	"github.com/roach88/speciate/internal/lform"
)

// DefaultContainer is the container prefix of unit names.
const DefaultContainer = "speciate.Holder"

// Unit is one generated implementation of a form.
type Unit struct {
	// Name is the stable unit name, see UnitName.
	Name string

	// Kind and Shape are the components of the name after the container.
	Kind  lform.Kind
	Shape string

	// Digest is the digest of the form the unit implements.
	Digest string

	// Backend names the backend that generated the unit.
	Backend string

	// Invoker executes the unit. Nil for source-only units.
	Invoker lform.Invoker

	// Source is the Go source of the unit. Empty for closure units.
	Source string
}

// UnitName returns <container>.<kind>_<shape> for a form.
func UnitName(container string, f *lform.Form) string {
	return container + "." + LocalName(f)
}

// LocalName returns the unit name without its container.
func LocalName(f *lform.Form) string {
	return string(f.Kind()) + "_" + f.ShapeKey()
}

// Backend generates units. Implementations must be safe for concurrent
// use. A returned error means the backend rejected the request; it is
// never retried.
type Backend interface {
	Name() string
	Generate(name string, f *lform.Form) (*Unit, error)
}

func newUnit(backend, name string, f *lform.Form) *Unit {
	return &Unit{
		Name:    name,
		Kind:    f.Kind(),
		Shape:   f.ShapeKey(),
		Digest:  f.Digest(),
		Backend: backend,
	}
}
