// Package lform implements pipeline forms: the small intermediate
// representation of one invocation chain.
//
// A Form is a straight-line program over names. Names 0..arity-1 are
// parameters; name 0 is always the receiver, a reference whose bound record
// (if any) must belong to the form's constraint species. Every later name
// is an expression applying a Function to earlier names. The form's
// result is one of its names, or none for a void form.
//
// Forms are immutable once built and safe to share across goroutines.
// The only mutable state a form carries is its invocation counter, its
// compiled unit, a flag set when a backend refuses it and its transform
// cache, all of which are published atomically.
//
// STRUCTURAL IDENTITY:
//
// Two forms with the same kind, parameter types, constraint key, expression
// sequence and result are interchangeable. Key() renders that structure as
// canonical JSON; Digest() hashes it under ir.DomainForm. The Catalog interns
// forms by Key() so recurring shapes resolve to one shared instance.
package lform
