// Package pregen generates bundles of units ahead of time.
//
// A small catalogue of shapes is hot enough that generating it on demand
// is wasteful: the zero and identity forms of every basic type, and the
// single-field holders used by direct handles and by rebinding, plus the
// invoker and call site forms a profile asks for. A
// Generator emits those through a codegen bridge in bulk and returns them
// as a Bundle ready to load into another bridge or persist.
//
// Input call shapes are deduplicated before emission, then emitted units
// are deduplicated by name, since distinct logical signatures can erase
// to the same unit. A unit the backend rejects is logged and recorded in
// Bundle.Skipped; it falls back to on-demand generation later.
package pregen
