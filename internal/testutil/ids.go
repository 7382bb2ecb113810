// Package testutil holds fixtures shared by package tests: deterministic
// exploration IDs, execution-index builders and stub upstream services.
package testutil

// StaticID generates the same exploration ID every time.
//
// Unlike engine.FixedGenerator, which hands out a list of IDs once each,
// StaticID never runs out, so one value can back any number of engines in
// a test and golden output stays byte-identical.
//
// Thread-safety: StaticID is stateless and safe for concurrent use.
type StaticID string

// DefaultExplorationID is returned by an empty StaticID.
const DefaultExplorationID = "exploration-test"

// Generate returns the fixed ID. It implements engine.IDGenerator.
func (s StaticID) Generate() string {
	if s == "" {
		return DefaultExplorationID
	}
	return string(s)
}
