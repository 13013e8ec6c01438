package species

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/speciate/internal/ir"
)

// Registry is the process-wide cache of species keyed by signature key.
//
// Thread-safety model:
//   - Find: safe from any goroutine; concurrent first requests for a key
//     may each stage a candidate, but exactly one is published and
//     returned to all callers
//   - every other method is a read and never blocks writers
type Registry struct {
	species   sync.Map // string -> *SpeciesData
	count     atomic.Int64
	staged    atomic.Int64
	top       *SpeciesData
	maxFields int
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxFields bounds the length of signature keys the registry accepts.
// Values below 1 are raised to 1, the single reference field every
// reinvoker needs.
//
// Default: ir.DefaultMaxKeyLength
func WithMaxFields(n int) RegistryOption {
	return func(r *Registry) {
		r.maxFields = max(n, 1)
	}
}

// WithLogger sets the logger used for species creation events.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry seeded with the bootstrap species: the
// empty key and the single-reference key "L".
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		maxFields: ir.DefaultMaxKeyLength,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.top = newSpeciesData(r, "")
	r.species.Store("", r.top)
	r.count.Add(1)

	if _, err := r.Find("L"); err != nil {
		// Unreachable: maxFields is at least 1.
		panic(fmt.Sprintf("species: bootstrap failed: %v", err))
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry { return NewRegistry() })

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry()
}

// Top returns the species of the empty key.
func (r *Registry) Top() *SpeciesData {
	return r.top
}

// Find returns the species for key, creating and publishing it on first
// request.
//
// Construction is all-or-nothing: the candidate is fully built before it
// is offered to the map, so no caller can observe a partial species.
// A malformed or over-long key is a contract violation.
func (r *Registry) Find(key string) (*SpeciesData, error) {
	if v, ok := r.species.Load(key); ok {
		return v.(*SpeciesData), nil
	}
	if err := ir.ValidateKey(key, r.maxFields); err != nil {
		return nil, err
	}

	candidate := newSpeciesData(r, key)
	r.staged.Add(1)

	actual, loaded := r.species.LoadOrStore(key, candidate)
	if !loaded {
		r.count.Add(1)
		r.logger.Debug("species created", "key", key, "layout", candidate.name)
	}
	return actual.(*SpeciesData), nil
}

// Lookup returns the species for key without creating it.
func (r *Registry) Lookup(key string) (*SpeciesData, bool) {
	v, ok := r.species.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*SpeciesData), true
}

// Len returns the number of published species.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Staged returns the number of candidate species built by Find,
// including candidates discarded after losing a publication race.
func (r *Registry) Staged() int64 {
	return r.staged.Load()
}

// Keys returns the published keys, shortest first, then lexicographic.
func (r *Registry) Keys() []string {
	var keys []string
	r.species.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return keys
}

// MaxFields returns the longest key the registry accepts.
func (r *Registry) MaxFields() int {
	return r.maxFields
}
