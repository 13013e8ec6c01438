package store

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/pregen"
)

func TestReadBundle_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestBundle(t, "bundle-1")

	if err := s.WriteBundle(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadBundle(ctx, "bundle-1")
	if err != nil {
		t.Fatalf("ReadBundle() failed: %v", err)
	}

	if got.Digest != want.Digest {
		t.Errorf("digest = %s, want %s", got.Digest, want.Digest)
	}
	if got.Section != pregen.SectionAll || got.Container != want.Container {
		t.Errorf("header = %s %s, want %s %s", got.Section, got.Container, pregen.SectionAll, want.Container)
	}

	gotNames, wantNames := got.Names(), want.Names()
	if len(gotNames) != len(wantNames) {
		t.Fatalf("got %d units, want %d", len(gotNames), len(wantNames))
	}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Errorf("unit %d = %s, want %s", i, gotNames[i], wantNames[i])
		}
		u := got.Units[i]
		if u.Invoker != nil {
			t.Errorf("unit %s carries an invoker", u.Name)
		}
		if u.Source != want.Units[i].Source || u.Kind != want.Units[i].Kind {
			t.Errorf("unit %s differs after round trip", u.Name)
		}
	}

	if len(got.Layouts) != len(want.Layouts) {
		t.Fatalf("got %d layouts, want %d", len(got.Layouts), len(want.Layouts))
	}
	for i := range want.Layouts {
		if got.Layouts[i] != want.Layouts[i] {
			t.Errorf("layout %d = %+v, want %+v", i, got.Layouts[i], want.Layouts[i])
		}
	}
}

func TestReadBundle_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadBundle(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadBundle() error = %v, want ErrNotFound", err)
	}
}

func TestReadBundle_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestBundle(t, "bundle-1")
	if err := s.WriteBundle(ctx, b); err != nil {
		t.Fatal(err)
	}

	if _, err := s.DB().Exec("UPDATE units SET digest = 'x' WHERE bundle_id = ? AND ord = 0", b.ID); err != nil {
		t.Fatal(err)
	}

	_, err := s.ReadBundle(ctx, b.ID)
	if !ir.IsInternalError(err) {
		t.Errorf("ReadBundle() error = %v, want internal error", err)
	}
}

func TestReadBundles_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	gen := createTestGenerator("b-2", "b-1")

	first, err := gen.BasicForms()
	if err != nil {
		t.Fatal(err)
	}
	second, err := gen.ConcreteSpecies([]string{"LI"})
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []*pregen.Bundle{first, second} {
		if err := s.WriteBundle(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := s.ReadBundles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d bundles, want 2", len(infos))
	}
	if infos[0].ID != "b-2" || infos[1].ID != "b-1" {
		t.Errorf("order = %s, %s; want b-2, b-1", infos[0].ID, infos[1].ID)
	}
	if infos[0].Seq >= infos[1].Seq {
		t.Errorf("seq not increasing: %d, %d", infos[0].Seq, infos[1].Seq)
	}
	if infos[0].Section != pregen.SectionBasicForms || infos[1].Section != pregen.SectionSpecies {
		t.Errorf("sections = %s, %s", infos[0].Section, infos[1].Section)
	}
}

func TestReadUnits_DistinctAndSorted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	gen := createTestGenerator("b-1", "b-2")

	// Two generators share nothing, so the same basic forms land in two
	// bundles under the same names.
	a, err := gen.BasicForms()
	if err != nil {
		t.Fatal(err)
	}
	b, err := createTestGenerator("b-2").BasicForms()
	if err != nil {
		t.Fatal(err)
	}
	for _, bundle := range []*pregen.Bundle{a, b} {
		if err := s.WriteBundle(ctx, bundle); err != nil {
			t.Fatal(err)
		}
	}

	units, err := s.ReadUnits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != len(a.Units) {
		t.Fatalf("got %d units, want %d", len(units), len(a.Units))
	}
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("units not sorted: %v", names)
	}
}

func TestLookupUnit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestBundle(t, "bundle-1")
	if err := s.WriteBundle(ctx, b); err != nil {
		t.Fatal(err)
	}

	want := b.Units[0]
	got, err := s.LookupUnit(ctx, want.Name)
	if err != nil {
		t.Fatalf("LookupUnit() failed: %v", err)
	}
	if got.Digest != want.Digest || got.Shape != want.Shape {
		t.Errorf("LookupUnit() = %+v, want %+v", got, want)
	}

	if _, err := s.LookupUnit(ctx, "speciate.Holder.nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupUnit(missing) error = %v, want ErrNotFound", err)
	}
}
