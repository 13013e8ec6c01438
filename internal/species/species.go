package species

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/speciate/internal/ir"
)

// Layout names for generated record shapes.
const (
	// SimpleName names the layout of the empty key.
	SimpleName = "invoke.SimpleHandle"

	// BoundNamePrefix prefixes every non-empty layout name.
	BoundNamePrefix = "invoke.BoundHandle$Species_"
)

// Getter reads one field of a record in its erased representation.
type Getter func(r *Record) any

// Factory constructs a record of one species from erased field values.
type Factory func(mt ir.MethodType, f Form, values ...any) (*Record, error)

// SpeciesData describes the layout of every record bound with one
// signature key.
//
// INVARIANTS:
//   - exactly one SpeciesData exists per key in a Registry
//   - fieldTypes, slots, getters and factory never change after publication
//   - extensions[t], once set, is the registry's species for key+t
type SpeciesData struct {
	key        string
	name       string
	fieldTypes []ir.BasicType
	slots      []int
	counts     [ir.ArgTypeLimit]int
	getters    []Getter
	factory    Factory
	registry   *Registry

	// Extension cache, one entry per basic type. V is never filled.
	extensions [ir.TypeLimit]atomic.Pointer[SpeciesData]
}

// newSpeciesData stages a complete species for key. Nothing is published.
func newSpeciesData(r *Registry, key string) *SpeciesData {
	s := &SpeciesData{
		key:        key,
		name:       layoutName(key),
		fieldTypes: ir.FieldTypes(key),
		registry:   r,
	}
	s.slots = make([]int, len(s.fieldTypes))
	for i, t := range s.fieldTypes {
		s.slots[i] = s.counts[t]
		s.counts[t]++
	}
	s.getters = make([]Getter, len(s.fieldTypes))
	for i := range s.fieldTypes {
		s.getters[i] = s.makeGetter(i)
	}
	s.factory = s.makeFactory()
	return s
}

func layoutName(key string) string {
	if key == "" {
		return SimpleName
	}
	return BoundNamePrefix + key
}

// Key returns the signature key.
func (s *SpeciesData) Key() string { return s.key }

// Name returns the generated layout name.
func (s *SpeciesData) Name() string { return s.name }

// FieldCount returns the number of fields.
func (s *SpeciesData) FieldCount() int { return len(s.fieldTypes) }

// FieldType returns the basic type of field i.
func (s *SpeciesData) FieldType(i int) ir.BasicType { return s.fieldTypes[i] }

// FieldTypes returns a copy of the field types.
func (s *SpeciesData) FieldTypes() []ir.BasicType {
	return append([]ir.BasicType(nil), s.fieldTypes...)
}

// Getter returns the accessor for field i.
func (s *SpeciesData) Getter(i int) Getter { return s.getters[i] }

// Factory returns the record constructor.
func (s *SpeciesData) Factory() Factory { return s.factory }

// SlotCounts reports how many slots each storable basic type occupies in
// this layout, indexed by basic type.
func (s *SpeciesData) SlotCounts() [ir.ArgTypeLimit]int { return s.counts }

// Slot returns the index of field i within its typed storage array.
func (s *SpeciesData) Slot(i int) int { return s.slots[i] }

// String implements fmt.Stringer.
func (s *SpeciesData) String() string {
	return fmt.Sprintf("SpeciesData<%s>", s.key)
}

// ExtendWith returns the species for this key plus one field of type t.
//
// The result is memoized per type: calling ExtendWith twice with the same
// t returns the identical *SpeciesData. A benign race may resolve the same
// extension twice; both resolutions are the registry's canonical species.
func (s *SpeciesData) ExtendWith(t ir.BasicType) (*SpeciesData, error) {
	if !t.IsArg() {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "extend species",
			Key:     s.key,
			Message: fmt.Sprintf("cannot extend with basic type %s", t),
		}
	}
	if ext := s.extensions[t].Load(); ext != nil {
		return ext, nil
	}

	want := s.key + string(t.Char())
	ext, err := s.registry.Find(want)
	if err != nil {
		return nil, err
	}
	if ext.key != want {
		return nil, &ir.Error{
			Kind:    ir.KindInternal,
			Op:      "extend species",
			Key:     want,
			Message: fmt.Sprintf("registry returned species %q", ext.key),
		}
	}
	s.extensions[t].CompareAndSwap(nil, ext)
	return s.extensions[t].Load(), nil
}

func (s *SpeciesData) makeGetter(i int) Getter {
	slot := s.slots[i]
	switch s.fieldTypes[i] {
	case ir.I:
		return func(r *Record) any { return r.ints[slot] }
	case ir.J:
		return func(r *Record) any { return r.longs[slot] }
	case ir.F:
		return func(r *Record) any { return r.floats[slot] }
	case ir.D:
		return func(r *Record) any { return r.doubles[slot] }
	default:
		return func(r *Record) any { return r.refs[slot] }
	}
}

func (s *SpeciesData) makeFactory() Factory {
	return func(mt ir.MethodType, f Form, values ...any) (*Record, error) {
		if len(values) != len(s.fieldTypes) {
			return nil, &ir.Error{
				Kind:    ir.KindContract,
				Op:      "construct record",
				Key:     s.key,
				Message: fmt.Sprintf("species takes %d values, got %d", len(s.fieldTypes), len(values)),
			}
		}
		if err := s.checkForm(f); err != nil {
			return nil, err
		}
		r := s.alloc(mt, f)
		for i, v := range values {
			if err := s.store(r, i, v); err != nil {
				return nil, err
			}
		}
		return r, nil
	}
}

// checkForm enforces that f's receiver constraint is this species.
// A form without a constraint is backed by the empty key.
func (s *SpeciesData) checkForm(f Form) error {
	if f == nil {
		return &ir.Error{Kind: ir.KindInternal, Op: "construct record", Key: s.key, Message: "record has no form"}
	}
	c := f.Constraint()
	if c == nil {
		c = s.registry.top
	}
	if c != s {
		return &ir.Error{
			Kind:    ir.KindInternal,
			Op:      "construct record",
			Key:     s.key,
			Message: fmt.Sprintf("form is constrained to species %q", c.key),
		}
	}
	return nil
}

func (s *SpeciesData) alloc(mt ir.MethodType, f Form) *Record {
	r := &Record{species: s, typ: mt, form: f}
	if n := s.counts[ir.L]; n > 0 {
		r.refs = make([]any, n)
	}
	if n := s.counts[ir.I]; n > 0 {
		r.ints = make([]int32, n)
	}
	if n := s.counts[ir.J]; n > 0 {
		r.longs = make([]int64, n)
	}
	if n := s.counts[ir.F]; n > 0 {
		r.floats = make([]float32, n)
	}
	if n := s.counts[ir.D]; n > 0 {
		r.doubles = make([]float64, n)
	}
	return r
}

func (s *SpeciesData) store(r *Record, i int, v any) error {
	t := s.fieldTypes[i]
	if !ir.IsErased(t, v) {
		return &ir.Error{
			Kind:    ir.KindContract,
			Op:      "construct record",
			Key:     s.key,
			Message: fmt.Sprintf("field %d is %s, got %T", i, t, v),
		}
	}
	slot := s.slots[i]
	switch t {
	case ir.I:
		r.ints[slot] = v.(int32)
	case ir.J:
		r.longs[slot] = v.(int64)
	case ir.F:
		r.floats[slot] = v.(float32)
	case ir.D:
		r.doubles[slot] = v.(float64)
	default:
		r.refs[slot] = v
	}
	return nil
}
