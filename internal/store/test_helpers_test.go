package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/species"
)

// createTestStore opens a catalogue in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestGenerator returns a generator emitting Go source units with
// the given bundle ids.
func createTestGenerator(ids ...string) *pregen.Generator {
	bridge := codegen.NewBridge(codegen.WithBackend(codegen.NewSourceBackend()))
	cat := lform.NewCatalog(species.NewRegistry())
	return pregen.New(bridge, cat, pregen.WithIDGenerator(pregen.NewFixedGenerator(ids...)))
}

// createTestBundle generates a bundle covering every section.
func createTestBundle(t *testing.T, id string) *pregen.Bundle {
	t.Helper()
	mt, err := ir.ParseMethodType("(any,int32)int64")
	if err != nil {
		t.Fatalf("ParseMethodType() failed: %v", err)
	}
	b, err := createTestGenerator(id).Generate(pregen.Request{
		BasicForms: true,
		Direct:     []ir.MethodType{mt},
		Delegating: []ir.MethodType{mt},
		Species:    []string{"LIJ", "LL"},
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	return b
}
