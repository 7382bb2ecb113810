package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/filibuster/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestExploration writes an exploration row so iterations and events
// can reference it.
func createTestExploration(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.WriteExploration(context.Background(), ir.ExplorationRecord{
		ID:            id,
		Config:        "{}",
		EngineVersion: ir.EngineVersion,
	})
	if err != nil {
		t.Fatalf("WriteExploration() failed: %v", err)
	}
}

// createTestEvent creates an invocation event with minimal required fields.
func createTestEvent(executionIndex string, generatedID int64) ir.Event {
	p := ir.StringPayload("req")
	return ir.Event{
		Type:           ir.InstrumentationInvocation,
		ExecutionIndex: executionIndex,
		VClock:         map[string]int64{"client": 1},
		OriginVClock:   map[string]int64{},
		RequestID:      "req-1",
		GeneratedID:    generatedID,
		Service:        "cart",
		Method:         "GetItems",
		CallType:       ir.CallTypeHTTP,
		Payload:        &p,
	}
}
