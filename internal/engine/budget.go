package engine

// IterationBudget enforces the max_iterations cap.
//
// The baseline iteration counts against the budget. A limit of zero means
// unbounded: exploration then ends only at the fixpoint.
//
// Only the Run goroutine touches the budget.
type IterationBudget struct {
	limit int
	used  int
}

// NewIterationBudget creates a budget with the given limit.
func NewIterationBudget(limit int) *IterationBudget {
	return &IterationBudget{limit: limit}
}

// Spend records that one iteration started.
func (b *IterationBudget) Spend() {
	b.used++
}

// Exhausted reports whether no further iteration may start.
func (b *IterationBudget) Exhausted() bool {
	return b.limit > 0 && b.used >= b.limit
}

// Used returns the number of iterations started.
func (b *IterationBudget) Used() int {
	return b.used
}

// Limit returns the configured cap (zero when unbounded).
func (b *IterationBudget) Limit() int {
	return b.limit
}

// Remaining returns how many iterations may still start, or -1 when unbounded.
func (b *IterationBudget) Remaining() int {
	if b.limit <= 0 {
		return -1
	}
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}
