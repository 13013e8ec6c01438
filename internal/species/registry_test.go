package species

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speciate/internal/ir"
)

func TestNewRegistry_SeedsBootstrapSpecies(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"", "L"}, r.Keys())
	assert.Equal(t, 2, r.Len())

	top := r.Top()
	assert.Equal(t, "", top.Key())
	assert.Equal(t, SimpleName, top.Name())
	assert.Equal(t, 0, top.FieldCount())

	l, ok := r.Lookup("L")
	require.True(t, ok)
	assert.Equal(t, BoundNamePrefix+"L", l.Name())
}

func TestFind_Idempotent(t *testing.T) {
	r := NewRegistry()

	a, err := r.Find("LIJ")
	require.NoError(t, err)
	b, err := r.Find("LIJ")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, []ir.BasicType{ir.L, ir.I, ir.J}, a.FieldTypes())
}

func TestFind_ConcurrentCallersShareOneSpecies(t *testing.T) {
	r := NewRegistry()

	const workers = 32
	results := make([]*SpeciesData, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s, err := r.Find("LLL")
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i], "worker %d got a different species", i)
	}

	count := 0
	for _, k := range r.Keys() {
		if k == "LLL" {
			count++
		}
	}
	assert.Equal(t, 1, count, "registry must hold exactly one LLL entry")
	assert.Equal(t, 3, r.Len())
}

func TestFind_RejectsMalformedKeys(t *testing.T) {
	r := NewRegistry(WithMaxFields(4))

	_, err := r.Find("LQ")
	assert.True(t, ir.IsContractError(err))

	_, err = r.Find("LV")
	assert.True(t, ir.IsContractError(err))

	_, err = r.Find("LLLLL")
	assert.True(t, ir.IsContractError(err), "over-long key")

	_, ok := r.Lookup("LQ")
	assert.False(t, ok, "rejected keys must not be published")
}

func TestWithMaxFields_ClampsToOne(t *testing.T) {
	for _, n := range []int{0, -3} {
		r := NewRegistry(WithMaxFields(n))
		assert.Equal(t, 1, r.MaxFields())

		_, err := r.Find("I")
		require.NoError(t, err)
		_, err = r.Find("LL")
		assert.True(t, ir.IsContractError(err))
	}
}

func TestExtendWith_ReturnsIdenticalInstance(t *testing.T) {
	r := NewRegistry()

	for _, bt := range ir.ArgBasicTypes {
		first, err := r.Top().ExtendWith(bt)
		require.NoError(t, err)
		second, err := r.Top().ExtendWith(bt)
		require.NoError(t, err)

		assert.Same(t, first, second, "extend with %s", bt)
		assert.Equal(t, string(bt.Char()), first.Key())

		viaFind, err := r.Find(first.Key())
		require.NoError(t, err)
		assert.Same(t, first, viaFind, "extension must be the registry's canonical species")
	}
}

func TestExtendWith_BuildsLattice(t *testing.T) {
	r := NewRegistry()

	l, err := r.Top().ExtendWith(ir.L)
	require.NoError(t, err)
	li, err := l.ExtendWith(ir.I)
	require.NoError(t, err)
	lij, err := li.ExtendWith(ir.J)
	require.NoError(t, err)

	assert.Equal(t, "LIJ", lij.Key())
	assert.Equal(t, BoundNamePrefix+"LIJ", lij.Name())
}

func TestExtendWith_RejectsVoid(t *testing.T) {
	r := NewRegistry()
	_, err := r.Top().ExtendWith(ir.V)
	assert.True(t, ir.IsContractError(err))
}

func TestExtendWith_ConcurrentResolution(t *testing.T) {
	r := NewRegistry()
	li, err := r.Find("LI")
	require.NoError(t, err)

	var wg sync.WaitGroup
	got := make([]*SpeciesData, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = li.ExtendWith(ir.D)
		}(i)
	}
	wg.Wait()

	for i := range got {
		assert.Same(t, got[0], got[i])
	}
}

func TestSlotLayout(t *testing.T) {
	r := NewRegistry()
	s, err := r.Find("LILJI")
	require.NoError(t, err)

	counts := s.SlotCounts()
	assert.Equal(t, 2, counts[ir.L])
	assert.Equal(t, 2, counts[ir.I])
	assert.Equal(t, 1, counts[ir.J])

	assert.Equal(t, []int{0, 0, 1, 0, 1}, []int{s.Slot(0), s.Slot(1), s.Slot(2), s.Slot(3), s.Slot(4)})
}

func TestDefaultRegistryIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
