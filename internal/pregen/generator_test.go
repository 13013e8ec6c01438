package pregen

import (
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/species"
)

// rejectingBackend rejects every form of one kind and generates the rest
// with the closure backend.
type rejectingBackend struct {
	kind  lform.Kind
	inner codegen.Backend
}

func (b rejectingBackend) Name() string { return "rejecting" }

func (b rejectingBackend) Generate(name string, f *lform.Form) (*codegen.Unit, error) {
	if f.Kind() == b.kind {
		return nil, errors.New("rejected")
	}
	return b.inner.Generate(name, f)
}

func newGenerator(t *testing.T, opts ...codegen.BridgeOption) (*Generator, *codegen.Bridge) {
	t.Helper()
	bridge := codegen.NewBridge(opts...)
	cat := lform.NewCatalog(species.NewRegistry())
	return New(bridge, cat, WithIDGenerator(NewFixedGenerator("bundle-1", "bundle-2", "bundle-3"))), bridge
}

func mustTypes(t *testing.T, sigs ...string) []ir.MethodType {
	t.Helper()
	out := make([]ir.MethodType, len(sigs))
	for i, s := range sigs {
		mt, err := ir.ParseMethodType(s)
		require.NoError(t, err)
		out[i] = mt
	}
	return out
}

func TestBasicForms(t *testing.T) {
	g, bridge := newGenerator(t)

	b, err := g.BasicForms()
	require.NoError(t, err)

	assert.Equal(t, "bundle-1", b.ID)
	assert.Equal(t, SectionBasicForms, b.Section)
	assert.Equal(t, []string{
		"speciate.Holder.zero_L", "speciate.Holder.identity_L",
		"speciate.Holder.zero_I", "speciate.Holder.identity_I",
		"speciate.Holder.zero_J", "speciate.Holder.identity_J",
		"speciate.Holder.zero_F", "speciate.Holder.identity_F",
		"speciate.Holder.zero_D", "speciate.Holder.identity_D",
		"speciate.Holder.zero_V",
	}, b.Names())
	assert.Empty(t, b.Skipped)
	assert.Equal(t, 11, bridge.Len())
}

func TestDirectHolder_DuplicateShapesEmitOneUnit(t *testing.T) {
	g, _ := newGenerator(t)

	b, err := g.DirectHolder(mustTypes(t, "(int)int", "(int)int"))
	require.NoError(t, err)

	assert.Equal(t, []string{"speciate.Holder.direct_L_LJ_J"}, b.Names())
}

func TestDirectHolder_ErasedCollisionsEmitOneUnit(t *testing.T) {
	g, _ := newGenerator(t)

	b, err := g.DirectHolder(mustTypes(t, "(int)int", "(int64)uint64", "(any)any", "(any)any"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"speciate.Holder.direct_L_LJ_J",
		"speciate.Holder.direct_L_LL_L",
	}, b.Names())
}

func TestDelegatingHolder(t *testing.T) {
	g, _ := newGenerator(t)

	b, err := g.DelegatingHolder(mustTypes(t, "(int32)void", "(any,float64)int32", "(int32)void"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"speciate.Holder.reinvoke_L_LI_V",
		"speciate.Holder.delegate_LI_V",
		"speciate.Holder.reinvoke_L_LLD_I",
		"speciate.Holder.delegate_LLD_I",
	}, b.Names())
}

func TestConcreteSpecies(t *testing.T) {
	g, _ := newGenerator(t)

	b, err := g.ConcreteSpecies([]string{"LIJ", "D", "LIJ"})
	require.NoError(t, err)

	require.Len(t, b.Layouts, 2)
	assert.Equal(t, "LIJ", b.Layouts[0].Key)
	assert.Equal(t, species.BoundNamePrefix+"LIJ", b.Layouts[0].Name)
	assert.Contains(t, b.Layouts[0].Source, "type Species_LIJ struct {")
	assert.Equal(t, "D", b.Layouts[1].Key)
	assert.Empty(t, b.Units)
}

func TestConcreteSpecies_RejectsNonFieldTypes(t *testing.T) {
	g, _ := newGenerator(t)

	for _, key := range []string{"LV", "LX", "li"} {
		_, err := g.ConcreteSpecies([]string{key})
		assert.True(t, ir.IsContractError(err), "key %q", key)
	}
}

func TestGenerate_NamesUniqueAcrossSections(t *testing.T) {
	g, _ := newGenerator(t)

	b, err := g.Generate(Request{
		BasicForms: true,
		Direct:     mustTypes(t, "(int32)int32", "(rune)int32"),
		Delegating: mustTypes(t, "(int32)int32"),
		Species:    []string{"LL"},
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, n := range b.Names() {
		assert.False(t, seen[n], "duplicate unit %s", n)
		seen[n] = true
	}
	assert.Len(t, b.Units, 11+1+2)
	assert.Len(t, b.Layouts, 1)

	goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, "generate_names", []byte(strings.Join(b.Names(), "\n")+"\n"))
}

func TestInvokersHolder(t *testing.T) {
	g, bridge := newGenerator(t)

	b, err := g.InvokersHolder(
		mustTypes(t, "(int64,int32)int64", "(int,int32)int", "(any)void"),
		mustTypes(t, "(any)any", "(any)any"))
	require.NoError(t, err)

	assert.Equal(t, SectionInvokers, b.Section)
	// (int64,int32)int64 and (int,int32)int erase to the same shape.
	assert.Equal(t, []string{
		"speciate.Holder.invoker_LLJI_J",
		"speciate.Holder.invoker_LLL_V",
		"speciate.Holder.callsite_LL_L",
	}, b.Names())
	assert.Empty(t, b.Skipped)
	assert.Equal(t, 3, bridge.Len())
}

func TestGenerate_SkipsRejectedUnits(t *testing.T) {
	g, bridge := newGenerator(t, codegen.WithBackend(rejectingBackend{
		kind:  lform.KindDelegate,
		inner: codegen.NewClosureBackend(0),
	}))

	b, err := g.DelegatingHolder(mustTypes(t, "(int32)int32", "(int64)int64"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"speciate.Holder.reinvoke_L_LI_I",
		"speciate.Holder.reinvoke_L_LJ_J",
	}, b.Names())
	require.Len(t, b.Skipped, 2)
	assert.Equal(t, "speciate.Holder.delegate_LI_I", b.Skipped[0].Name)
	assert.Contains(t, b.Skipped[0].Error, "rejected")
	assert.Equal(t, 2, bridge.Len())
}

func TestBundleDigest_IndependentOfID(t *testing.T) {
	g1, _ := newGenerator(t)
	g2, _ := newGenerator(t)

	a, err := g1.BasicForms()
	require.NoError(t, err)
	_, err = g2.DirectHolder(nil)
	require.NoError(t, err)
	b, err := g2.BasicForms()
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Digest, b.Digest)
	assert.Len(t, a.Digest, 64)
}

func TestBundleVerify(t *testing.T) {
	g, _ := newGenerator(t)
	b, err := g.BasicForms()
	require.NoError(t, err)
	require.NoError(t, b.Verify())

	recorded := b.Digest
	b.Units = b.Units[1:]
	err = b.Verify()
	require.Error(t, err)
	assert.True(t, ir.IsInternalError(err))
	assert.Equal(t, recorded, b.Digest)
}

func TestGeneratedUnitsServeRuntimeCompilation(t *testing.T) {
	g, bridge := newGenerator(t)
	_, err := g.BasicForms()
	require.NoError(t, err)
	generated := bridge.Generated()

	cat := lform.NewCatalog(species.NewRegistry())
	z, err := cat.Zero(ir.J)
	require.NoError(t, err)
	inv, err := bridge.Compile(z)
	require.NoError(t, err)

	v, err := inv([]any{nil})
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, generated, bridge.Generated(), "pregenerated unit reused")
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
