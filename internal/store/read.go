package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/filibuster/internal/ir"
)

// ReadExploration retrieves a single exploration by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadExploration(ctx context.Context, id string) (ir.ExplorationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, config, engine_version, replay
		FROM explorations
		WHERE id = ?
	`, id)
	return scanExploration(row)
}

// ReadLatestExploration returns the most recently created exploration.
// Exploration IDs are UUIDv7, so the greatest ID is the newest.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) ReadLatestExploration(ctx context.Context) (ir.ExplorationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, config, engine_version, replay
		FROM explorations
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`)
	return scanExploration(row)
}

// ReadExplorations returns all explorations ordered by ID.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadExplorations(ctx context.Context) ([]ir.ExplorationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, config, engine_version, replay
		FROM explorations
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query explorations: %w", err)
	}
	defer rows.Close()

	explorations := []ir.ExplorationRecord{}
	for rows.Next() {
		x, err := scanExploration(rows)
		if err != nil {
			return nil, err
		}
		explorations = append(explorations, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate explorations: %w", err)
	}
	return explorations, nil
}

// ReadIterations returns every archived iteration of an exploration,
// ordered by iteration number.
func (s *Store) ReadIterations(ctx context.Context, explorationID string) ([]ir.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exploration_id, number, outcome, faults, scheduled, injected, events, proposed, failure
		FROM iterations
		WHERE exploration_id = ?
		ORDER BY number ASC
	`, explorationID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	iterations := []ir.IterationRecord{}
	for rows.Next() {
		it, err := scanIteration(rows)
		if err != nil {
			return nil, err
		}
		iterations = append(iterations, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return iterations, nil
}

// ReadIteration retrieves one archived iteration.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadIteration(ctx context.Context, explorationID string, number int) (ir.IterationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT exploration_id, number, outcome, faults, scheduled, injected, events, proposed, failure
		FROM iterations
		WHERE exploration_id = ? AND number = ?
	`, explorationID, number)
	return scanIteration(row)
}

// ReadEvents returns the events of one iteration in generated_id order.
// Returns an empty slice (not nil) if the iteration has no events.
func (s *Store) ReadEvents(ctx context.Context, explorationID string, iteration int) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM events
		WHERE exploration_id = ? AND iteration = ?
		ORDER BY generated_id ASC
	`, explorationID, iteration)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := unmarshalEvent(body)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEventsForIndex returns every event recorded for one execution index
// across all iterations of an exploration, in generated_id order.
func (s *Store) ReadEventsForIndex(ctx context.Context, explorationID, executionIndex string) ([]ir.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, body
		FROM events
		WHERE exploration_id = ? AND execution_index = ?
		ORDER BY generated_id ASC
	`, explorationID, executionIndex)
	if err != nil {
		return nil, fmt.Errorf("query events for index: %w", err)
	}
	defer rows.Close()

	records := []ir.EventRecord{}
	for rows.Next() {
		var (
			iteration int
			body      string
		)
		if err := rows.Scan(&iteration, &body); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := unmarshalEvent(body)
		if err != nil {
			return nil, err
		}
		records = append(records, ir.EventRecord{ExplorationID: explorationID, Iteration: iteration, Event: ev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExploration(row scanner) (ir.ExplorationRecord, error) {
	var (
		x      ir.ExplorationRecord
		replay int
	)
	if err := row.Scan(&x.ID, &x.Config, &x.EngineVersion, &replay); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.ExplorationRecord{}, err
		}
		return ir.ExplorationRecord{}, fmt.Errorf("scan exploration: %w", err)
	}
	x.Replay = replay != 0
	return x, nil
}

func scanIteration(row scanner) (ir.IterationRecord, error) {
	var (
		it         ir.IterationRecord
		outcome    string
		faultsJSON string
	)
	err := row.Scan(
		&it.ExplorationID,
		&it.Number,
		&outcome,
		&faultsJSON,
		&it.Scheduled,
		&it.Injected,
		&it.Events,
		&it.Proposed,
		&it.Failure,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.IterationRecord{}, err
		}
		return ir.IterationRecord{}, fmt.Errorf("scan iteration: %w", err)
	}

	it.Outcome = ir.Outcome(outcome)
	it.Faults, err = unmarshalFaults(faultsJSON)
	if err != nil {
		return ir.IterationRecord{}, err
	}
	return it, nil
}
