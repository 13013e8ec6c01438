// Package store provides SQLite-backed persistence for pregenerated
// bundles.
//
// The catalogue holds:
//   - Bundles: one row per pregenerated bundle, keyed by its id
//   - Units: the generated units of each bundle in emission order
//   - Skipped: units the backend rejected while the bundle was built
//   - Species: record layout source, shared by every bundle that names it
//
// # Ordering
//
// Reads are deterministic. Bundles come back in insertion order (seq),
// units in emission order (ord), and catalogue-wide listings sort by name
// with COLLATE BINARY.
//
// # Idempotency
//
// Writing a bundle whose id is already stored is a no-op. Species layouts
// are keyed by signature key; a second write of the same key keeps the
// first row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Units read back from the store carry their source but no invoker; they
// describe what was generated rather than something that can run.
package store
