package pregen

import (
	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
)

// Section names a kind of bundle.
type Section string

const (
	SectionBasicForms Section = "basic-forms"
	SectionDirect     Section = "direct-holder"
	SectionDelegating Section = "delegating-holder"
	SectionInvokers   Section = "invokers-holder"
	SectionSpecies    Section = "species"
	SectionAll        Section = "all"
)

// Layout is the generated source of one species record layout.
type Layout struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Skip records a unit the backend rejected.
type Skip struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Bundle is a ready-to-load set of uniquely named units.
type Bundle struct {
	ID        string
	Section   Section
	Container string
	Units     []*codegen.Unit
	Layouts   []Layout
	Skipped   []Skip
	Digest    string
}

// Names returns the unit names in emission order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Units))
	for i, u := range b.Units {
		names[i] = u.Name
	}
	return names
}

// Verify recomputes the digest and reports an internal error when it
// differs from the recorded one. The bundle is not modified.
func (b *Bundle) Verify() error {
	got, err := b.digest()
	if err != nil {
		return err
	}
	if got != b.Digest {
		return ir.NewInternalError("verify bundle",
			"digest "+got+" does not match recorded "+b.Digest)
	}
	return nil
}

// seal records the bundle digest.
func (b *Bundle) seal() error {
	d, err := b.digest()
	if err != nil {
		return err
	}
	b.Digest = d
	return nil
}

// digest hashes the bundle content. The id is excluded so that equal
// content hashes equally across runs.
func (b *Bundle) digest() (string, error) {
	units := make([]any, len(b.Units))
	for i, u := range b.Units {
		units[i] = map[string]any{"name": u.Name, "digest": u.Digest}
	}
	layouts := make([]any, len(b.Layouts))
	for i, l := range b.Layouts {
		layouts[i] = l.Key
	}
	skipped := make([]any, len(b.Skipped))
	for i, s := range b.Skipped {
		skipped[i] = s.Name
	}
	d, err := ir.DigestCanonical(ir.DomainBundle, map[string]any{
		"section":   string(b.Section),
		"container": b.Container,
		"units":     units,
		"layouts":   layouts,
		"skipped":   skipped,
	})
	if err != nil {
		return "", ir.NewInternalError("seal bundle", err.Error())
	}
	return d, nil
}
