// Package ir provides the foundational value model for speciate.
//
// This package contains the basic-type taxonomy, logical call signatures,
// signature keys, canonical encoding and the error taxonomy shared by every
// other package. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - Every storable value erases to exactly one BasicType (L, I, J, F, D)
//   - Void is a return type only, never a field or parameter
//   - Narrow integer kinds are stored widened and restored at the call boundary
//   - Canonical encodings are RFC 8785 JSON, hashed with domain separation
package ir
