// Package codegen turns pipeline forms into generated units.
//
// A Backend renders one form into a Unit: the closure backend produces an
// executable lform.Invoker, the source backend produces a Go source listing
// for ahead-of-time holders. The Bridge sits in front of a backend and
// caches units by name, so structurally identical forms are generated once
// per process no matter how many goroutines ask for them at the same time.
//
// NAMING:
//
// Every unit is named <container>.<kind>_<shape>, where shape is the
// form's ShapeKey. Names are stable across runs and unique per structure:
// two forms with the same name must have the same digest, and the Bridge
// treats a mismatch as an internal error.
package codegen
