package store

import (
	"context"
	"fmt"

	"github.com/roach88/filibuster/internal/ir"
)

// WriteExploration inserts an exploration record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteExploration(ctx context.Context, x ir.ExplorationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO explorations (id, config, engine_version, replay)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		x.ID,
		x.Config,
		x.EngineVersion,
		boolToInt(x.Replay),
	)
	if err != nil {
		return fmt.Errorf("write exploration: %w", err)
	}
	return nil
}

// WriteIteration inserts the summary of a finished iteration.
// The exploration must already exist (foreign key constraint).
// Writing the same (exploration, number) twice is silently ignored.
func (s *Store) WriteIteration(ctx context.Context, it ir.IterationRecord) error {
	faultsJSON, err := marshalFaults(it.Faults)
	if err != nil {
		return fmt.Errorf("write iteration: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO iterations
		(exploration_id, number, outcome, faults, scheduled, injected, events, proposed, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		it.ExplorationID,
		it.Number,
		string(it.Outcome),
		faultsJSON,
		it.Scheduled,
		it.Injected,
		it.Events,
		it.Proposed,
		it.Failure,
	)
	if err != nil {
		return fmt.Errorf("write iteration: %w", err)
	}
	return nil
}

// WriteEvent appends an instrumentation event.
// The event's GeneratedID must be set; it is the ordering key.
func (s *Store) WriteEvent(ctx context.Context, rec ir.EventRecord) error {
	if rec.Event.GeneratedID <= 0 {
		return fmt.Errorf("write event: generated_id is required")
	}

	body, err := marshalEvent(rec.Event)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(exploration_id, iteration, generated_id, instrumentation_type, execution_index, request_id, service, method, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ExplorationID,
		rec.Iteration,
		rec.Event.GeneratedID,
		string(rec.Event.Type),
		rec.Event.ExecutionIndex,
		rec.Event.RequestID,
		rec.Event.Service,
		rec.Event.Method,
		body,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
