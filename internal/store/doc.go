// Package store provides SQLite-backed durable storage for explorations.
//
// The store is an append-only log with three tables:
//   - explorations: one row per Engine lifetime (search or replay)
//   - iterations: the archived summary of each finished iteration
//   - events: every instrumentation event the engine received
//
// # Ordering
//
// Events are ordered by generated_id, the engine's logical clock, and
// iterations by their number. Wall-clock time is never stored or used for
// ordering, so a log read back always yields the order the engine saw.
//
// # Idempotency
//
// Every insert uses ON CONFLICT DO NOTHING. Writing the same event or
// iteration twice leaves the log unchanged.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
