// Package species implements the specialization registry and the
// bound-argument records it describes.
//
// A species is the layout for one signature key: an ordered list of basic
// field types. Go cannot define struct types at runtime, so a layout is a
// set of typed storage arrays (one per basic type) plus a per-field slot
// map; records of the same species share that map and differ only in their
// stored values.
//
// Species form a trie over signature keys rooted at the empty key. Each
// species memoizes its one-field extensions in a fixed table, so repeated
// single-argument binding never goes back to the registry.
//
// Thread-safety: the registry's create-or-find path is synchronized with
// sync.Map.LoadOrStore; species and records are immutable after
// publication and may be read without locking.
package species
