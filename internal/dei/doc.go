// Package dei implements the Distributed Execution Index.
//
// An Index is a stack of frames, one per nested call site on the current
// path through a distributed call tree. Each frame holds a chain value and
// an occurrence count:
//
//   - The chain value digests the Callsite pushed at that depth together
//     with every chain value below it, so the same Callsite reached through
//     different paths never collides.
//   - The count is 1 the first time a chain value is produced by an Index
//     and increments each later time the same chain value is produced,
//     across intervening pops. Loop iteration N of a call is therefore
//     addressable on its own while its chain value stays stable.
//
// The canonical serialized form is a JSON array of [chain, count] pairs.
// Indexes cross process boundaries in that form, and equality is defined on
// it.
//
// An Index is not safe for concurrent use. Callers that share one across
// goroutines must guard it (see internal/instrument).
package dei
