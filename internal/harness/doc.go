// Package harness runs bind and invoke scenarios against the runtime.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: format_bind_invoke
//	description: "Bind two leading values, then call"
//	target: format3
//	runtime:
//	  field_count: 12
//	steps:
//	  - bind: { pos: 0, value: "id" }
//	    expect: { species: "LL" }
//	  - invoke: { args: [3] }
//	    expect: { result: "id-3-7" }
//	  - rebind: true
//	assertions:
//	  - type: species
//	    key: LLJ
//	  - type: rebinds
//	    count: 0
//
// Each step does exactly one of bind, invoke or rebind. Values are
// converted to the parameter's logical type before they reach the
// handle, so a YAML 7 binds as an int32 to an int32 parameter.
//
// # Targets
//
// Targets are built-in Go functions wrapped with Runtime.FromFunc; see
// Targets for the list. Setting delegate: true wraps the target in a
// delegating handle first.
//
// # Assertion Types
//
//   - species: The final handle has the given signature key
//   - rebinds: The runtime rebound exactly count handles
//   - unit_exists: The bridge holds a unit with the given name
//   - unit_count: The bridge holds exactly count units
//
// # Golden Snapshots
//
// RunWithGolden renders the step trace as canonical JSON and compares it
// with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
