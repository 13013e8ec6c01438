// Package invoke implements invocation handles: callable values that bind
// arguments, adapt signatures and delegate to other callables.
//
// Every handle built here is backed by a bound-argument record whose
// species describes the erased shape of its bound values, and by a pipeline
// form that reads those values and performs the call. Binding one more
// value extends the species by one field and edits the form; neither the
// old record nor the old form changes, so siblings bound from a common
// ancestor share its prefix.
//
// COMPLEXITY GUARD:
//
// A handle whose record holds more than the field-count threshold, or
// whose form holds more than the expression threshold, is rebound before
// it is extended further: it is wrapped in a fresh single-field reinvoker
// that calls it. Rebinding never changes behavior. It bounds the size of
// any single generated shape at the cost of one indirection per rebind.
//
// Forms are interpreted until they have been invoked more than the compile
// threshold, then switched to a unit generated by the runtime's codegen
// bridge. A form that triggers a rebind is compiled immediately. A form the
// backend refuses keeps being interpreted.
//
// CALL SITES:
//
// A CallSite is a handle whose target may be replaced at any time. Handles
// bound from a call site hold the call site, not its current target, so
// they follow every later SetTarget.
package invoke
