// Package ir provides the wire and identity layer for filibuster.
//
// It holds the instrumentation event and fault directive types exchanged
// between middleware and the engine, the canonical JSON encoder used for
// every digest and map key, and the domain-separated hash helpers.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in canonical values - use int64 for numbers
//   - All JSON tags use snake_case
//   - Faults compare by canonical value, never by pointer identity
package ir
