package species

import (
	"fmt"
	"strings"

	"github.com/roach88/speciate/internal/ir"
)

// Form is the pipeline a record realizes. It is implemented by the IR
// package; species only needs the receiver constraint.
type Form interface {
	// Constraint returns the species backing the form's receiver, or nil
	// for forms that read no bound fields.
	Constraint() *SpeciesData
}

// Record is an immutable instance of a species layout.
//
// Extension never mutates a record: CopyWithExtend allocates a new record
// of the extended species, so sibling pipelines bound from a common
// ancestor share its prefix values.
type Record struct {
	species *SpeciesData
	typ     ir.MethodType
	form    Form

	refs    []any
	ints    []int32
	longs   []int64
	floats  []float32
	doubles []float64
}

// Species returns the record's layout descriptor.
func (r *Record) Species() *SpeciesData { return r.species }

// Type returns the externally visible call signature.
func (r *Record) Type() ir.MethodType { return r.typ }

// Form returns the pipeline this record realizes.
func (r *Record) Form() Form { return r.form }

// FieldCount returns the number of bound fields.
func (r *Record) FieldCount() int { return r.species.FieldCount() }

// FieldAt returns field i in its erased representation: int32 for I,
// int64 for J, float32 for F, float64 for D.
func (r *Record) FieldAt(i int) (any, error) {
	if i < 0 || i >= r.species.FieldCount() {
		return nil, &ir.Error{
			Kind:    ir.KindContract,
			Op:      "field at",
			Key:     r.species.key,
			Message: fmt.Sprintf("field %d out of range [0,%d)", i, r.species.FieldCount()),
		}
	}
	return r.species.getters[i](r), nil
}

// Fields returns every field value in order.
func (r *Record) Fields() []any {
	out := make([]any, r.species.FieldCount())
	for i, g := range r.species.getters {
		out[i] = g(r)
	}
	return out
}

// CopyWith returns a record with the same species and values but a
// different signature and form. Storage is shared, never copied.
func (r *Record) CopyWith(mt ir.MethodType, f Form) (*Record, error) {
	if err := r.species.checkForm(f); err != nil {
		return nil, err
	}
	cp := *r
	cp.typ = mt
	cp.form = f
	return &cp, nil
}

// CopyWithExtend returns a record of the species extended by t, holding
// this record's values followed by v. v must already be erased for t.
func (r *Record) CopyWithExtend(mt ir.MethodType, f Form, t ir.BasicType, v any) (*Record, error) {
	ext, err := r.species.ExtendWith(t)
	if err != nil {
		return nil, err
	}
	values := append(r.Fields(), v)
	return ext.factory(mt, f, values...)
}

// String lists the bound values: inline for a single field, as an
// indexed block otherwise.
func (r *Record) String() string {
	n := r.species.FieldCount()
	if n == 1 {
		return fmt.Sprintf("[%v]", r.species.getters[0](r))
	}
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "\n  %d: ( %v )", i, r.species.getters[i](r))
	}
	b.WriteString("\n]")
	return b.String()
}
