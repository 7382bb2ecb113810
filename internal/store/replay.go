package store

import (
	"context"
	"fmt"

	"github.com/roach88/filibuster/internal/ir"
)

// Counterexample extracts the fault assignment of an archived iteration so
// it can be replayed in isolation.
func (s *Store) Counterexample(ctx context.Context, explorationID string, number int) (ir.Counterexample, error) {
	it, err := s.ReadIteration(ctx, explorationID, number)
	if err != nil {
		return ir.Counterexample{}, fmt.Errorf("read iteration %d: %w", number, err)
	}
	return ir.Counterexample{
		ExplorationID: explorationID,
		Iteration:     number,
		Faults:        it.Faults,
	}, nil
}

// FailedIterations returns the iterations whose outcome is failed or
// fault_not_injected, ordered by number. These are the candidates for
// counterexample replay.
func (s *Store) FailedIterations(ctx context.Context, explorationID string) ([]ir.IterationRecord, error) {
	all, err := s.ReadIterations(ctx, explorationID)
	if err != nil {
		return nil, err
	}
	failed := []ir.IterationRecord{}
	for _, it := range all {
		if it.Outcome == ir.OutcomeFailed || it.Outcome == ir.OutcomeFaultNotInjected {
			failed = append(failed, it)
		}
	}
	return failed, nil
}
